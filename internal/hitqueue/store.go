package hitqueue

import "context"

// Store is a single hit database holding one or more tables.
type Store interface {
	CreateTable(ctx context.Context, table string, columns []Column) error
	// TableColumns returns the column names of table, or nil when it does not exist.
	TableColumns(ctx context.Context, table string) ([]string, error)
	Insert(ctx context.Context, table string, values map[string]any) error
	Query(ctx context.Context, q *Query) ([]Row, error)
	Count(ctx context.Context, q *Query) (int64, error)
	Update(ctx context.Context, table string, values map[string]any, where string, args ...any) error
	Delete(ctx context.Context, table string, where string, args ...any) error
	DropTable(ctx context.Context, table string) error
	// MigrateTable rebuilds table with columns, keeping the values of the
	// columns present in both layouts.
	MigrateTable(ctx context.Context, table string, columns []Column) error
	Close() error
}

// Service opens and deletes named hit databases.
type Service interface {
	OpenDatabase(name string) (Store, error)
	DeleteDatabase(name string) error
}
