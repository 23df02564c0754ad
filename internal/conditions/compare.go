package conditions

import (
	"encoding/json"
	"reflect"
)

// normalize converts Go numeric types to float64 and typed slices to []any so
// reflect.DeepEqual works across YAML, JSON and native Go sources.
func normalize(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []string:
		return stringsToAny(val)
	default:
		return v
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// equal compares two values numerically when both are numbers, otherwise deeply.
func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// order compares two numbers or two strings. ok is false for any other pairing.
func order(a, b any) (cmp int, ok bool) {
	if fa, aok := toFloat(a); aok {
		fb, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case sa < sb:
		return -1, true
	case sa > sb:
		return 1, true
	default:
		return 0, true
	}
}

// asList returns v as a []any when it is any slice or array kind.
func asList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		return stringsToAny(val), true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// memberOf reports whether actual is contained in the expected list. When
// actual is itself a list, any shared element counts.
func memberOf(actual any, expected []any) bool {
	if items, ok := asList(actual); ok {
		for _, item := range items {
			if memberOf(item, expected) {
				return true
			}
		}
		return false
	}
	for _, e := range expected {
		if equal(actual, e) {
			return true
		}
	}
	return false
}
