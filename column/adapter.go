package column

import (
	"fmt"
	"time"
)

// FromAny converts a Go value into a typed cell Value.
//
// This exists as an adapter layer for untyped row data coming from the
// collaborator. Numeric types widen to float64; time.Time becomes DateTime.
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
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case time.Time:
		return DateTime(x), nil
	case *time.Time:
		if x == nil {
			return Null(), nil
		}
		return DateTime(*x), nil
	default:
		return Value{}, fmt.Errorf("column: unsupported cell type %T", v)
	}
}

// MapAccessor returns an Accessor over map[string]any rows, converting cells
// with FromAny. Unconvertible or missing cells read as null. Intended for
// tests and simple collaborators; real deployments inject their own Accessor.
func MapAccessor() Accessor {
	return func(row any, path string) Value {
		m, ok := row.(map[string]any)
		if !ok {
			return Null()
		}
		raw, ok := m[path]
		if !ok {
			return Null()
		}
		v, err := FromAny(raw)
		if err != nil {
			return Null()
		}
		return v
	}
}
