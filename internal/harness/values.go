package harness

import (
	"math"
	"reflect"

	"github.com/roach88/tstate/internal/equal"
)

// normalize converts decoded numbers to int when integral and float64
// otherwise, recursively, so YAML, CUE and expression results compare and
// encode the same way.
func normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, string:
		return val
	case map[string]any:
		return normalizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f)
		}
		return f
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

// normalizeMap normalizes every value of m. A nil map stays nil.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

// valuesEqual compares two normalized values structurally.
func valuesEqual(a, b any) bool {
	return equal.Deep(normalize(a), normalize(b))
}

// matchSubset reports whether actual holds every key of expected with an
// equal value. It returns the first mismatching key.
func matchSubset(actual, expected map[string]any) (string, bool) {
	for _, key := range sortedKeys(expected) {
		got, ok := actual[key]
		if !ok || !valuesEqual(got, expected[key]) {
			return key, false
		}
	}
	return "", true
}
