// Package columnar implements the building blocks of the colobj file format:
// a tagged-variant value type, level and presence streams, value encodings,
// pages, and column chunk builders and readers.
package columnar

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/colobj/colobj/colmd"
)

// Helper types for pointer-based variants.
type (
	bytearray      *byte
	fixedbytearray *byte
)

// A Value represents a single value within a column. Unlike [any], Values can
// be constructed from numeric types without allocations. The zero Value
// corresponds to NULL.
type Value struct {
	// The internal representation is based on log/slog.Value: num holds the
	// bits of numeric values or the length of byte array values, while any
	// discriminates the variant. Wrapping a [colmd.PhysicalType] or a pointer
	// in an any does not allocate.

	_ [0]func() // Disallow equality checking of two Values

	num uint64
	any any
}

// Int32Value returns a [Value] for an int32.
func Int32Value(v int32) Value {
	return Value{num: uint64(v), any: colmd.PhysicalTypeInt32}
}

// Int64Value returns a [Value] for an int64.
func Int64Value(v int64) Value {
	return Value{num: uint64(v), any: colmd.PhysicalTypeInt64}
}

// Float32Value returns a [Value] for a float32.
func Float32Value(v float32) Value {
	return Value{num: uint64(math.Float32bits(v)), any: colmd.PhysicalTypeFloat32}
}

// Float64Value returns a [Value] for a float64.
func Float64Value(v float64) Value {
	return Value{num: math.Float64bits(v), any: colmd.PhysicalTypeFloat64}
}

// BooleanValue returns a [Value] for a bool.
func BooleanValue(v bool) Value {
	var num uint64
	if v {
		num = 1
	}
	return Value{num: num, any: colmd.PhysicalTypeBoolean}
}

// ByteArrayValue returns a [Value] for a variable-length byte slice.
func ByteArrayValue(v []byte) Value {
	return Value{num: uint64(len(v)), any: (bytearray)(unsafe.SliceData(v))}
}

// FixedLenByteArrayValue returns a [Value] for a fixed-length byte slice.
func FixedLenByteArrayValue(v []byte) Value {
	return Value{num: uint64(len(v)), any: (fixedbytearray)(unsafe.SliceData(v))}
}

// IsNil returns whether v is NULL.
func (v Value) IsNil() bool {
	return v.any == nil
}

// Type returns the [colmd.PhysicalType] of v. If v is NULL, Type returns
// [colmd.PhysicalTypeInvalid].
func (v Value) Type() colmd.PhysicalType {
	switch t := v.any.(type) {
	case nil:
		return colmd.PhysicalTypeInvalid
	case colmd.PhysicalType:
		return t
	case bytearray:
		return colmd.PhysicalTypeByteArray
	case fixedbytearray:
		return colmd.PhysicalTypeFixedLenByteArray
	default:
		panic(fmt.Sprintf("columnar.Value has unexpected type %T", t))
	}
}

func (v Value) check(expect colmd.PhysicalType) {
	if actual := v.Type(); actual != expect {
		panic(fmt.Sprintf("columnar.Value type is %s, not %s", actual, expect))
	}
}

// Int32 returns v's value as an int32. It panics if v is not a
// [colmd.PhysicalTypeInt32].
func (v Value) Int32() int32 {
	v.check(colmd.PhysicalTypeInt32)
	return int32(v.num)
}

// Int64 returns v's value as an int64. It panics if v is not a
// [colmd.PhysicalTypeInt64].
func (v Value) Int64() int64 {
	v.check(colmd.PhysicalTypeInt64)
	return int64(v.num)
}

// Float32 returns v's value as a float32. It panics if v is not a
// [colmd.PhysicalTypeFloat32].
func (v Value) Float32() float32 {
	v.check(colmd.PhysicalTypeFloat32)
	return math.Float32frombits(uint32(v.num))
}

// Float64 returns v's value as a float64. It panics if v is not a
// [colmd.PhysicalTypeFloat64].
func (v Value) Float64() float64 {
	v.check(colmd.PhysicalTypeFloat64)
	return math.Float64frombits(v.num)
}

// Boolean returns v's value as a bool. It panics if v is not a
// [colmd.PhysicalTypeBoolean].
func (v Value) Boolean() bool {
	v.check(colmd.PhysicalTypeBoolean)
	return v.num != 0
}

// ByteArray returns v's value as a byte slice. It panics if v is neither a
// [colmd.PhysicalTypeByteArray] nor a [colmd.PhysicalTypeFixedLenByteArray].
func (v Value) ByteArray() []byte {
	switch ptr := v.any.(type) {
	case bytearray:
		return unsafe.Slice((*byte)(ptr), v.num)
	case fixedbytearray:
		return unsafe.Slice((*byte)(ptr), v.num)
	default:
		panic(fmt.Sprintf("columnar.Value type is %s, not a byte array", v.Type()))
	}
}

// String returns a debug representation of v.
func (v Value) String() string {
	switch v.Type() {
	case colmd.PhysicalTypeInvalid:
		return "NULL"
	case colmd.PhysicalTypeInt32:
		return fmt.Sprint(v.Int32())
	case colmd.PhysicalTypeInt64:
		return fmt.Sprint(v.Int64())
	case colmd.PhysicalTypeFloat32:
		return fmt.Sprint(v.Float32())
	case colmd.PhysicalTypeFloat64:
		return fmt.Sprint(v.Float64())
	case colmd.PhysicalTypeBoolean:
		return fmt.Sprint(v.Boolean())
	default:
		return fmt.Sprintf("%x", v.ByteArray())
	}
}
