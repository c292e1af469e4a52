package hitqueue

import "git.home.luguber.info/inful/mobilecore/internal/foundation/errors"

// ErrQueryAlreadyBuilt is returned when a QueryBuilder is built twice.
var ErrQueryAlreadyBuilt = errors.ContractError("query builder already built").Build()

// Query selects rows from a hit table. Build one with NewQueryBuilder.
type Query struct {
	table         string
	columns       []string
	selection     string
	selectionArgs []any
	groupBy       string
	having        string
	orderBy       string
	limit         string
}

func (q *Query) Table() string { return q.table }
func (q *Query) Columns() []string { return append([]string(nil), q.columns...) }
func (q *Query) Selection() string { return q.selection }
func (q *Query) SelectionArgs() []any { return append([]any(nil), q.selectionArgs...) }
func (q *Query) GroupBy() string { return q.groupBy }
func (q *Query) Having() string { return q.having }
func (q *Query) OrderBy() string { return q.orderBy }
func (q *Query) Limit() string { return q.limit }

// QueryBuilder assembles a Query. It is single use.
type QueryBuilder struct {
	q     Query
	built bool
}

// NewQueryBuilder starts a query over table returning columns. An empty
// column list selects every column.
func NewQueryBuilder(table string, columns ...string) *QueryBuilder {
	return &QueryBuilder{q: Query{table: table, columns: append([]string(nil), columns...)}}
}

// Selection sets the WHERE clause; use ? placeholders for args.
func (b *QueryBuilder) Selection(selection string, args ...any) *QueryBuilder {
	b.q.selection = selection
	b.q.selectionArgs = append([]any(nil), args...)
	return b
}

func (b *QueryBuilder) GroupBy(groupBy string) *QueryBuilder {
	b.q.groupBy = groupBy
	return b
}

func (b *QueryBuilder) Having(having string) *QueryBuilder {
	b.q.having = having
	return b
}

func (b *QueryBuilder) OrderBy(orderBy string) *QueryBuilder {
	b.q.orderBy = orderBy
	return b
}

func (b *QueryBuilder) Limit(limit string) *QueryBuilder {
	b.q.limit = limit
	return b
}

// Build returns the query. A second call returns ErrQueryAlreadyBuilt.
func (b *QueryBuilder) Build() (*Query, error) {
	if b.built {
		return nil, ErrQueryAlreadyBuilt
	}
	b.built = true
	q := b.q
	return &q, nil
}
