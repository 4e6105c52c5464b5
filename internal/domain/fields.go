package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"chain-addresses/internal/coalesce"
)

// Field accessors tolerate the value types produced by the different storage
// drivers (int32 from pgx, int from memory, json.Number from decoders).

func stringField(f coalesce.Fields, col string) *string {
	s, ok := f[col].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func int64Field(f coalesce.Fields, col string) int64 {
	n, ok := ToInt64(f[col])
	if !ok {
		return 0
	}
	return n
}

func intField(f coalesce.Fields, col string) *int {
	n, ok := ToInt64(f[col])
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

func boolField(f coalesce.Fields, col string) *bool {
	b, ok := f[col].(bool)
	if !ok {
		return nil
	}
	return &b
}

func timeField(f coalesce.Fields, col string) time.Time {
	switch v := f[col].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	}
	return time.Time{}
}

// ToInt64 converts the integer representations drivers return.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func asStringPtr(v any) (*string, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func asInt(v any) (int, error) {
	if s, ok := v.(string); ok {
		return strconv.Atoi(strings.TrimSpace(s))
	}
	n, ok := ToInt64(v)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
	return int(n), nil
}

func asBoolPtr(v any) (*bool, error) {
	switch b := v.(type) {
	case bool:
		return &b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	}
	return nil, fmt.Errorf("expected bool, got %T", v)
}
