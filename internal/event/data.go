package event

import (
	"maps"
	"sort"
	"strconv"
)

// Data is the payload carried by an event or published as shared state.
// Values are JSON-compatible: nil, bool, numbers, string, []any and map[string]any.
type Data map[string]any

// Copy returns a deep copy of d. Nested maps and slices are copied too.
func (d Data) Copy() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case Data:
		return t.Copy()
	case map[string]any:
		return map[string]any(Data(t).Copy())
	case map[string]string:
		return maps.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Merge returns a copy of d with other's top-level keys applied over it.
func (d Data) Merge(other Data) Data {
	out := d.Copy()
	if out == nil {
		out = Data{}
	}
	for k, v := range other {
		out[k] = copyValue(v)
	}
	return out
}

// Has reports whether key is present.
func (d Data) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// GetString returns the string at key.
func (d Data) GetString(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// StringOr returns the string at key or fallback.
func (d Data) StringOr(key, fallback string) string {
	if s, ok := d.GetString(key); ok {
		return s
	}
	return fallback
}

// GetBool returns the bool at key.
func (d Data) GetBool(key string) (bool, bool) {
	b, ok := d[key].(bool)
	return b, ok
}

// GetInt64 returns the integer at key, accepting any numeric representation.
func (d Data) GetInt64(key string) (int64, bool) {
	switch n := d[key].(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case string:
		v, err := strconv.ParseInt(n, 10, 64)
		return v, err == nil
	default:
		return 0, false
	}
}

// GetMap returns the nested map at key.
func (d Data) GetMap(key string) (Data, bool) {
	switch m := d[key].(type) {
	case Data:
		return m, true
	case map[string]any:
		return Data(m), true
	default:
		return nil, false
	}
}

// Flatten returns a single-level map whose keys join nested map keys with ".".
// {"a": {"b": 1}} becomes {"a.b": 1}. Slices are kept as values.
func (d Data) Flatten() map[string]any {
	out := make(map[string]any, len(d))
	flattenInto("", d, out)
	return out
}

func flattenInto(prefix string, d Data, out map[string]any) {
	for k, v := range d {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch nested := v.(type) {
		case Data:
			flattenInto(key, nested, out)
		case map[string]any:
			flattenInto(key, Data(nested), out)
		case map[string]string:
			for nk, nv := range nested {
				out[key+"."+nk] = nv
			}
		default:
			out[key] = v
		}
	}
}

// Keys returns the top-level keys in sorted order.
func (d Data) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
