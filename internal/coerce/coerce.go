// Package coerce holds the value coercion rules shared by the validation and
// condition engines. Form data arrives as untyped JSON, so every comparison
// goes through these helpers to stay consistent across engines.
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// IsEmpty reports whether value is nil, the exact empty string or an empty
// slice/array. Whitespace-only strings and empty maps are not empty.
func IsEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case json.RawMessage:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.IsNil() || rv.Len() == 0
	case reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsEmpty(rv.Elem().Interface())
	default:
		return false
	}
}

// String renders value the way a form input would show it. Whole floats are
// printed without a fractional part so 18.0 renders as "18".
func String(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return FormatNumber(v)
	case float32:
		return FormatNumber(float64(v))
	case json.Number:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(value)
	}
}

// FormatNumber prints f in its shortest round-tripping form.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Number converts value to a float64. ok is false when the value has no
// numeric reading; callers treat that as NaN.
func Number(value any) (float64, bool) {
	if value == nil {
		return math.NaN(), false
	}
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), !math.IsNaN(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return math.NaN(), false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return math.NaN(), false
		}
		return f, true
	default:
		return math.NaN(), false
	}
}

// LooksNumeric reports whether value has a numeric reading.
func LooksNumeric(value any) bool {
	_, ok := Number(value)
	return ok
}

// LooseEqual compares numerically when both sides look numeric and falls back
// to string equality otherwise.
func LooseEqual(a, b any) bool {
	if af, ok := Number(a); ok {
		if bf, ok := Number(b); ok {
			return af == bf
		}
	}
	return String(a) == String(b)
}
