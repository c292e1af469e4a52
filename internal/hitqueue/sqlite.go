package hitqueue

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
)

// SQLiteService stores each hit database as a file under Dir.
// An empty Dir keeps databases in memory for the life of the process.
type SQLiteService struct {
	Dir string

	mu     sync.Mutex
	memory map[string]*SQLiteStore
}

// NewSQLiteService returns a service rooted at dir, creating it if needed.
func NewSQLiteService(dir string) (*SQLiteService, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &SQLiteService{Dir: dir}, nil
}

func (s *SQLiteService) path(name string) string {
	return filepath.Join(s.Dir, name+".sqlite")
}

// OpenDatabase opens or creates the named database.
func (s *SQLiteService) OpenDatabase(name string) (Store, error) {
	if name == "" {
		return nil, fmt.Errorf("open database: empty name")
	}
	if s.Dir == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if st, ok := s.memory[name]; ok && !st.isClosed() {
			return st, nil
		}
		st, err := NewSQLiteStore("file:" + name + "?mode=memory&cache=shared")
		if err != nil {
			return nil, err
		}
		if s.memory == nil {
			s.memory = make(map[string]*SQLiteStore)
		}
		s.memory[name] = st
		return st, nil
	}
	return NewSQLiteStore(s.path(name))
}

// DeleteDatabase removes the named database file. A missing file is not an error.
func (s *SQLiteService) DeleteDatabase(name string) error {
	if s.Dir == "" {
		s.mu.Lock()
		st, ok := s.memory[name]
		delete(s.memory, name)
		s.mu.Unlock()
		if ok {
			return st.Close()
		}
		return nil
	}
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(s.path(name) + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete database %s: %w", name, err)
		}
	}
	return nil
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens a SQLite database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps shared-cache memory databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func columnDefinition(c Column) string {
	var b strings.Builder
	b.WriteString(quote(c.Name))
	switch c.Type {
	case ColumnInteger:
		b.WriteString(" INTEGER")
	case ColumnReal:
		b.WriteString(" REAL")
	default:
		b.WriteString(" TEXT")
	}
	for _, con := range c.Constraints {
		switch con {
		case NotNull:
			b.WriteString(" NOT NULL")
		case Unique:
			b.WriteString(" UNIQUE")
		case PrimaryKey:
			b.WriteString(" PRIMARY KEY")
		case Autoincrement:
			b.WriteString(" AUTOINCREMENT")
		}
	}
	return b.String()
}

func createStatement(table string, columns []Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = columnDefinition(c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(defs, ", "))
}

// CreateTable creates table if it does not already exist.
func (s *SQLiteStore) CreateTable(ctx context.Context, table string, columns []Column) error {
	if len(columns) == 0 {
		return fmt.Errorf("create table %s: no columns", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, createStatement(table, columns)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// TableColumns returns the column names of table in declaration order.
func (s *SQLiteStore) TableColumns(ctx context.Context, table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tableColumns(ctx, s.db, table)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) tableColumns(ctx context.Context, q queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return names, nil
}

// sortedKeys keeps generated SQL stable for a given value map.
func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Insert adds one row.
func (s *SQLiteStore) Insert(ctx context.Context, table string, values map[string]any) error {
	if len(values) == 0 {
		return fmt.Errorf("insert into %s: no values", table)
	}
	keys := sortedKeys(values)
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		cols[i] = quote(k)
		marks[i] = "?"
		args[i] = values[k]
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table), strings.Join(cols, ", "), strings.Join(marks, ", "))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		if isConstraintViolation(err) {
			return errors.WrapError(err, errors.CategoryHitQueue, ErrConstraintViolation.Message()).WithContext("table", table).Build()
		}
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// isConstraintViolation reports a failed PRIMARY KEY, UNIQUE, NOT NULL or
// CHECK constraint. The extended result code keeps the primary one in its
// low byte.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	return stderrors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func selectStatement(q *Query, projection string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", projection, quote(q.table))
	if q.selection != "" {
		b.WriteString(" WHERE " + q.selection)
	}
	if q.groupBy != "" {
		b.WriteString(" GROUP BY " + q.groupBy)
	}
	if q.having != "" {
		b.WriteString(" HAVING " + q.having)
	}
	if q.orderBy != "" {
		b.WriteString(" ORDER BY " + q.orderBy)
	}
	if q.limit != "" {
		b.WriteString(" LIMIT " + q.limit)
	}
	return b.String()
}

// Query runs q and returns every matching row.
func (s *SQLiteStore) Query(ctx context.Context, q *Query) ([]Row, error) {
	projection := "*"
	if len(q.columns) > 0 {
		quoted := make([]string, len(q.columns))
		for i, c := range q.columns {
			quoted[i] = quote(c)
		}
		projection = strings.Join(quoted, ", ")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, selectStatement(q, projection), q.selectionArgs...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Count returns the number of rows matching q. Columns, ordering and limit are ignored.
func (s *SQLiteStore) Count(ctx context.Context, q *Query) (int64, error) {
	stmt := selectStatement(&Query{table: q.table, selection: q.selection}, "COUNT(*)")
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	if err := s.db.QueryRowContext(ctx, stmt, q.selectionArgs...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.table, err)
	}
	return n, nil
}

// Update sets values on every row matching where. An empty where updates all rows.
func (s *SQLiteStore) Update(ctx context.Context, table string, values map[string]any, where string, args ...any) error {
	if len(values) == 0 {
		return nil
	}
	keys := sortedKeys(values)
	sets := make([]string, len(keys))
	params := make([]any, 0, len(keys)+len(args))
	for i, k := range keys {
		sets[i] = quote(k) + " = ?"
		params = append(params, values[k])
	}
	params = append(params, args...)
	stmt := fmt.Sprintf("UPDATE %s SET %s", quote(table), strings.Join(sets, ", "))
	if where != "" {
		stmt += " WHERE " + where
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, stmt, params...); err != nil {
		if isConstraintViolation(err) {
			return errors.WrapError(err, errors.CategoryHitQueue, ErrConstraintViolation.Message()).WithContext("table", table).Build()
		}
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

// Delete removes rows matching where. An empty where removes all rows.
func (s *SQLiteStore) Delete(ctx context.Context, table string, where string, args ...any) error {
	stmt := "DELETE FROM " + quote(table)
	if where != "" {
		stmt += " WHERE " + where
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

// DropTable removes table if it exists.
func (s *SQLiteStore) DropTable(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

// MigrateTable rebuilds table inside a transaction.
func (s *SQLiteStore) MigrateTable(ctx context.Context, table string, columns []Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.tableColumns(ctx, tx, table)
	if err != nil {
		return err
	}
	tmp := table + "_migration"
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(tmp)); err != nil {
		return fmt.Errorf("drop %s: %w", tmp, err)
	}
	if _, err := tx.ExecContext(ctx, createStatement(tmp, columns)); err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	var common []string
	for _, c := range columns {
		if slices.Contains(existing, c.Name) {
			common = append(common, quote(c.Name))
		}
	}
	if len(common) > 0 {
		cols := strings.Join(common, ", ")
		copyStmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", quote(tmp), cols, cols, quote(table))
		if _, err := tx.ExecContext(ctx, copyStmt); err != nil {
			return fmt.Errorf("copy rows into %s: %w", tmp, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(tmp), quote(table))); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Close closes the database connection. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
