package utils

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// ParseValue turns a text cell into an int, a float64 or the trimmed string.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)

	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// IsNumber reports whether v holds a Go numeric value.
func IsNumber(v any) bool {
	switch v.(type) {
	case json.Number:
		return true
	case string, bool, nil:
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k >= reflect.Int && k <= reflect.Float64
}

// Numeric converts supported types to float64; anything else is 0.
func Numeric(v any) float64 {
	f, _ := ToFloat(v)
	return f
}

// ToFloat converts numbers and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	case nil, bool:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Float64 {
		return rv.Convert(reflect.TypeOf(float64(0))).Float(), true
	}
	return 0, false
}
