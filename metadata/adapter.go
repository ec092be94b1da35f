package metadata

import (
	"fmt"
	"math"
)

// FromAny converts a plain Go value into a typed Value. It is the
// adapter between source parsers (which produce untyped scalars) and
// the table's tagged representation.
//
// All signed and unsigned integer widths collapse to Int; float32
// widens to Float. A nil converts to the Null sentinel, not an error.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		if x > uint64(math.MaxInt64) {
			// Refuse rather than silently wrap.
			return Value{}, fmt.Errorf("metadata uint64 out of range: %d", x)
		}
		return Int(int64(x)), nil
	case []Value:
		return Array(x), nil
	case []string:
		return Array(mapSlice(x, String)), nil
	case []int:
		return Array(mapSlice(x, func(i int) Value { return Int(int64(i)) })), nil
	case []float64:
		return Array(mapSlice(x, Float)), nil
	case []any:
		arr := make([]Value, len(x))
		for i := range x {
			vv, err := FromAny(x[i])
			if err != nil {
				return Value{}, err
			}
			arr[i] = vv
		}
		return Array(arr), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata value type %T", v)
	}
}

func mapSlice[T any](in []T, f func(T) Value) []Value {
	out := make([]Value, len(in))
	for i := range in {
		out[i] = f(in[i])
	}
	return out
}

// DocumentFromAny converts a map[string]any document to a typed
// Document, applying FromAny to every field.
func DocumentFromAny(m map[string]any) (Document, error) {
	d := make(Document, len(m))
	for k, v := range m {
		vv, err := FromAny(v)
		if err != nil {
			return nil, err
		}
		d[k] = vv
	}
	return d, nil
}
