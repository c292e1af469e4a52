package hitqueue

import (
	"strconv"
	"time"
)

// Columns every hit table carries.
const (
	ColumnID        = "ID"
	ColumnTimestamp = "TIMESTAMP"
)

// oldestFirst orders rows by creation time, breaking ties by insertion order.
const oldestFirst = ColumnTimestamp + " ASC, rowid ASC"

// ColumnType is the storage class of a column.
type ColumnType int

const (
	ColumnInteger ColumnType = iota
	ColumnReal
	ColumnText
)

// Constraint is a column constraint.
type Constraint int

const (
	NotNull Constraint = iota
	Unique
	PrimaryKey
	Autoincrement
)

// Column describes one column of a hit table.
type Column struct {
	Name        string
	Type        ColumnType
	Constraints []Constraint
}

// BaseColumns returns the identifier and timestamp columns shared by all hits.
func BaseColumns() []Column {
	return []Column{
		{Name: ColumnID, Type: ColumnText, Constraints: []Constraint{PrimaryKey}},
		{Name: ColumnTimestamp, Type: ColumnInteger, Constraints: []Constraint{NotNull}},
	}
}

// HitBase holds the fields common to every persisted hit.
type HitBase struct {
	Identifier string
	Timestamp  int64 // seconds since the Unix epoch
}

// Base returns h; concrete hits get it by embedding HitBase.
func (h *HitBase) Base() *HitBase { return h }

// CreatedAt converts Timestamp to a time.Time.
func (h *HitBase) CreatedAt() time.Time { return time.Unix(h.Timestamp, 0) }

// Hit is implemented by pointers to structs embedding HitBase.
type Hit interface {
	Base() *HitBase
}

// Schema maps a hit type to and from table rows.
type Schema[T Hit] interface {
	DatabaseName() string
	TableName() string
	// Columns must start with BaseColumns().
	Columns() []Column
	GenerateHit(row Row) (T, error)
	GenerateDataMap(hit T) map[string]any
}

// BaseDataMap returns the column values for the shared fields.
func BaseDataMap(h *HitBase) map[string]any {
	return map[string]any{
		ColumnID:        h.Identifier,
		ColumnTimestamp: h.Timestamp,
	}
}

// Row is one result row keyed by column name.
type Row map[string]any

// Base reads the shared hit fields from the row.
func (r Row) Base() HitBase {
	return HitBase{Identifier: r.String(ColumnID), Timestamp: r.Int64(ColumnTimestamp)}
}

// String returns the column as text. NULL and missing columns read as "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int64 returns the column as an integer. NULL and missing columns read as 0.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// Float64 returns the column as a float.
func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// Bool interprets an INTEGER column as a boolean.
func (r Row) Bool(col string) bool { return r.Int64(col) != 0 }

// IsNull reports whether the column is NULL or missing.
func (r Row) IsNull(col string) bool { return r[col] == nil }

// columnNames returns the names of cols in order.
func columnNames(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}
