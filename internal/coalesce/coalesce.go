// Package coalesce merges raw per-source records that describe the same
// (chain, address) key into one canonical record.
//
// Merging is order-dependent: the first row wins every conflict and later rows
// only fill columns the earlier rows left empty. Callers feed rows in
// source-priority order (see Priority).
package coalesce

import "reflect"

// Fields is a column-name to value map for one stored row.
// A nil value is SQL NULL.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the string value of col, or "" if it is absent or not a string.
func (f Fields) String(col string) string {
	s, _ := f[col].(string)
	return s
}

// IsEmpty reports whether v counts as missing when coalescing.
// nil, "" and empty maps/slices are missing; 0 and false are real values.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	}
	return false
}

// Coalesce merges rows into one. An empty input yields an empty Fields and a
// single row is returned as is. Otherwise the result starts as a copy of the
// first row and each empty column is taken from the first later row that has
// a value for it. The input rows are never modified.
func Coalesce(rows []Fields) Fields {
	switch len(rows) {
	case 0:
		return Fields{}
	case 1:
		return rows[0]
	}

	merged := rows[0].Clone()
	for _, row := range rows[1:] {
		for col, v := range row {
			if IsEmpty(merged[col]) && !IsEmpty(v) {
				merged[col] = v
			}
		}
	}
	return merged
}
