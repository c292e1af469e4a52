package rules

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/normalization"
)

// Op is a matcher operator.
type Op string

const (
	OpEquals             Op = "eq"
	OpNotEquals          Op = "ne"
	OpGreaterThan        Op = "gt"
	OpGreaterThanOrEqual Op = "ge"
	OpLessThan           Op = "lt"
	OpLessThanOrEqual    Op = "le"
	OpContains           Op = "co"
	OpNotContains        Op = "nc"
	OpStartsWith         Op = "sw"
	OpEndsWith           Op = "ew"
	OpExists             Op = "ex"
	OpNotExists          Op = "nx"
)

var opNormalizer = normalization.NewNormalizer(map[string]Op{
	"eq": OpEquals, "ne": OpNotEquals,
	"gt": OpGreaterThan, "ge": OpGreaterThanOrEqual,
	"lt": OpLessThan, "le": OpLessThanOrEqual,
	"co": OpContains, "nc": OpNotContains,
	"sw": OpStartsWith, "ew": OpEndsWith,
	"ex": OpExists, "nx": OpNotExists,
}, "")

// ParseOp returns the operator named by s, or "" when unknown.
func ParseOp(s string) Op { return opNormalizer.Normalize(s) }

// needsValues reports whether the operator compares against values.
func (o Op) needsValues() bool { return o != OpExists && o != OpNotExists }

var fold = cases.Fold()

// Matcher compares the expansion of Key with Values. It matches when any
// value satisfies the operator; negated operators require that none do.
type Matcher struct {
	Key    string
	Op     Op
	Values []any
}

// Evaluate implements Condition.
func (m *Matcher) Evaluate(ctx *Context) bool {
	value, found := ctx.Parser.ExpandKey(m.Key, ctx.Event)
	switch m.Op {
	case OpExists:
		return found
	case OpNotExists:
		return !found
	case OpNotEquals:
		return !found || !m.any(value, equals)
	case OpNotContains:
		return !found || !m.any(value, contains)
	}
	if !found {
		return false
	}
	switch m.Op {
	case OpEquals:
		return m.any(value, equals)
	case OpContains:
		return m.any(value, contains)
	case OpStartsWith:
		return m.any(value, func(v, want any) bool {
			return strings.HasPrefix(fold.String(toString(v)), fold.String(toString(want)))
		})
	case OpEndsWith:
		return m.any(value, func(v, want any) bool {
			return strings.HasSuffix(fold.String(toString(v)), fold.String(toString(want)))
		})
	case OpGreaterThan:
		return m.any(value, numeric(func(a, b float64) bool { return a > b }))
	case OpGreaterThanOrEqual:
		return m.any(value, numeric(func(a, b float64) bool { return a >= b }))
	case OpLessThan:
		return m.any(value, numeric(func(a, b float64) bool { return a < b }))
	case OpLessThanOrEqual:
		return m.any(value, numeric(func(a, b float64) bool { return a <= b }))
	default:
		return false
	}
}

func (m *Matcher) any(value any, match func(v, want any) bool) bool {
	for _, want := range m.Values {
		if match(value, want) {
			return true
		}
	}
	return false
}

// equals compares numerically when both sides are numbers, as booleans when
// both are booleans, and otherwise as case-insensitive strings.
func equals(v, want any) bool {
	if a, ok := toFloat(v); ok {
		if b, ok := toFloat(want); ok {
			return a == b
		}
	}
	if a, ok := v.(bool); ok {
		if b, ok := toBool(want); ok {
			return a == b
		}
	}
	return fold.String(toString(v)) == fold.String(toString(want))
}

func contains(v, want any) bool {
	return strings.Contains(fold.String(toString(v)), fold.String(toString(want)))
}

func numeric(cmp func(a, b float64) bool) func(v, want any) bool {
	return func(v, want any) bool {
		a, ok := toFloat(v)
		if !ok {
			return false
		}
		b, ok := toFloat(want)
		return ok && cmp(a, b)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	default:
		return false, false
	}
}
