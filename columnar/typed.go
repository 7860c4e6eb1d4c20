package columnar

import "fmt"

// NativeType is the closed set of Go types that map onto the physical types
// of a column. []byte maps onto [colmd.PhysicalTypeByteArray]; use
// [FixedLenByteArrayValue] directly for fixed-length columns.
type NativeType interface {
	int32 | int64 | float32 | float64 | bool | []byte
}

// ValueOf returns the [Value] variant for a native value.
func ValueOf[T NativeType](v T) Value {
	switch v := any(v).(type) {
	case int32:
		return Int32Value(v)
	case int64:
		return Int64Value(v)
	case float32:
		return Float32Value(v)
	case float64:
		return Float64Value(v)
	case bool:
		return BooleanValue(v)
	case []byte:
		return ByteArrayValue(v)
	default:
		panic(fmt.Sprintf("columnar.ValueOf: unexpected type %T", v))
	}
}

// Native returns v's value as the native type T. It panics if v does not
// hold a T.
func Native[T NativeType](v Value) T {
	switch any(*new(T)).(type) {
	case int32:
		return any(v.Int32()).(T)
	case int64:
		return any(v.Int64()).(T)
	case float32:
		return any(v.Float32()).(T)
	case float64:
		return any(v.Float64()).(T)
	case bool:
		return any(v.Boolean()).(T)
	case []byte:
		return any(v.ByteArray()).(T)
	default:
		panic(fmt.Sprintf("columnar.Native: unexpected type %T", *new(T)))
	}
}

// MakeValues appends the [Value] variants of src to dst and returns the
// extended slice.
func MakeValues[T NativeType](dst []Value, src []T) []Value {
	for _, v := range src {
		dst = append(dst, ValueOf(v))
	}
	return dst
}

// CopyNative converts values into dst, stopping at the shorter of the two
// slices, and returns the number of values converted. CopyNative panics if a
// value does not hold a T.
func CopyNative[T NativeType](dst []T, src []Value) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = Native[T](src[i])
	}
	return n
}
