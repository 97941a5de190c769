package normalize

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// Number validates that v is a finite number and returns it as float64.
//
// Accepted: Go integer and float kinds, and json.Number (bodies decoded with
// UseNumber). Rejected: nil, bool, strings, NaN and ±Inf. field names the
// operator-facing field for the error message.
func Number(field string, v any) (float64, error) {
	if v == nil {
		return 0, invalid(field, ErrMissing)
	}

	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, invalid(field, ErrNotNumber)
		}
		f = parsed
	case bool, string:
		return 0, invalid(field, ErrNotNumber)
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, invalid(field, ErrNotNumber)
		}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid(field, ErrNotNumber)
	}
	return f, nil
}

// Integer validates that v is an integral number without a fractional or
// exponent part. Floats are rejected even when integral (2.0 is not an int).
func Integer(field string, v any) (int, error) {
	if v == nil {
		return 0, invalid(field, ErrMissing)
	}

	switch n := v.(type) {
	case json.Number:
		if strings.ContainsAny(n.String(), ".eE") {
			return 0, invalid(field, ErrNotInteger)
		}
		i, err := n.Int64()
		if err != nil {
			return 0, invalid(field, ErrNotInteger)
		}
		return int(i), nil
	case bool:
		return 0, invalid(field, ErrNotInteger)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int(rv.Uint()), nil
	default:
		return 0, invalid(field, ErrNotInteger)
	}
}
