package storage

import (
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
)

// InsertOutcome tags the result of a single-row insert.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Conflict
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Conflict:
		return "conflict"
	}
	return fmt.Sprintf("InsertOutcome(%d)", int(o))
}

// InsertResult is returned by AddressStore.InsertRow.
type InsertResult struct {
	Outcome  InsertOutcome
	Existing coalesce.Fields // stored row holding the key; set on Conflict
}

// ColumnDiff is one differing column between a stored and an incoming row.
type ColumnDiff struct {
	Column   string
	Stored   any
	Incoming any
}

func (d ColumnDiff) String() string {
	return fmt.Sprintf("%s: %v -> %v", d.Column, d.Stored, d.Incoming)
}

// InsertStats summarizes a batch insert.
type InsertStats struct {
	Written    int  // rows persisted
	Identical  int  // conflicts whose non-volatile columns matched
	Collisions int  // conflicts with differing values
	FellBack   bool // bulk insert fell back to one row at a time
}

// Add accumulates o into s.
func (s *InsertStats) Add(o InsertStats) {
	s.Written += o.Written
	s.Identical += o.Identical
	s.Collisions += o.Collisions
	s.FellBack = s.FellBack || o.FellBack
}

// Diff compares every non-volatile schema column of stored and incoming.
// Empty values compare equal to each other, and integer and time values are
// compared after normalization so that driver representations do not matter.
func Diff(schema domain.Schema, stored, incoming coalesce.Fields) []ColumnDiff {
	var diffs []ColumnDiff
	for _, col := range schema.Columns {
		if schema.IsVolatile(col) {
			continue
		}
		a, b := stored[col], incoming[col]
		if equalValues(a, b) {
			continue
		}
		diffs = append(diffs, ColumnDiff{Column: col, Stored: a, Incoming: b})
	}
	return diffs
}

// FormatDiff renders diffs on one line for logs.
func FormatDiff(diffs []ColumnDiff) string {
	parts := make([]string, len(diffs))
	for i, d := range diffs {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

func equalValues(a, b any) bool {
	if coalesce.IsEmpty(a) || coalesce.IsEmpty(b) {
		return coalesce.IsEmpty(a) && coalesce.IsEmpty(b)
	}
	a, b = normalizeValue(a), normalizeValue(b)
	if am, ok := a.(map[string]any); ok {
		bm, ok := b.(map[string]any)
		return ok && maps.EqualFunc(am, bm, equalValues)
	}
	return reflect.DeepEqual(a, b)
}

func normalizeValue(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
	if n, ok := domain.ToInt64(v); ok {
		return n
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Truncate(time.Microsecond)
	}
	return v
}
