package columnar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/internal/streamio"
)

func init() {
	// Plain encoding is supported for every physical type.
	for _, physical := range []colmd.PhysicalType{
		colmd.PhysicalTypeInt32,
		colmd.PhysicalTypeInt64,
		colmd.PhysicalTypeFloat32,
		colmd.PhysicalTypeFloat64,
		colmd.PhysicalTypeBoolean,
		colmd.PhysicalTypeByteArray,
		colmd.PhysicalTypeFixedLenByteArray,
	} {
		physical := physical
		registerValueEncoding(physical, colmd.EncodingTypePlain, registryEntry{
			NewEncoder: func(w streamio.Writer) valueEncoder { return newPlainEncoder(physical, w) },
			NewDecoder: func(r streamio.Reader) valueDecoder { return newPlainDecoder(physical, r) },
		})
	}
}

// plainEncoder encodes values in their natural binary representation:
// integers as varints, floats as fixed-width little-endian words, booleans
// as single bytes, and byte arrays length-prefixed.
type plainEncoder struct {
	physical colmd.PhysicalType
	w        streamio.Writer
	buf      [8]byte
}

var _ valueEncoder = (*plainEncoder)(nil)

func newPlainEncoder(physical colmd.PhysicalType, w streamio.Writer) *plainEncoder {
	return &plainEncoder{physical: physical, w: w}
}

// PhysicalType returns the physical type the encoder was created for.
func (enc *plainEncoder) PhysicalType() colmd.PhysicalType { return enc.physical }

// EncodingType returns [colmd.EncodingTypePlain].
func (enc *plainEncoder) EncodingType() colmd.EncodingType { return colmd.EncodingTypePlain }

// Encode encodes a new value.
func (enc *plainEncoder) Encode(v Value) error {
	if v.Type() != enc.physical {
		return fmt.Errorf("plain: invalid value type %v, expected %v", v.Type(), enc.physical)
	}

	switch enc.physical {
	case colmd.PhysicalTypeInt32:
		return streamio.WriteVarint(enc.w, int64(v.Int32()))
	case colmd.PhysicalTypeInt64:
		return streamio.WriteVarint(enc.w, v.Int64())
	case colmd.PhysicalTypeFloat32:
		binary.LittleEndian.PutUint32(enc.buf[:4], math.Float32bits(v.Float32()))
		_, err := enc.w.Write(enc.buf[:4])
		return err
	case colmd.PhysicalTypeFloat64:
		binary.LittleEndian.PutUint64(enc.buf[:8], math.Float64bits(v.Float64()))
		_, err := enc.w.Write(enc.buf[:8])
		return err
	case colmd.PhysicalTypeBoolean:
		var b byte
		if v.Boolean() {
			b = 1
		}
		return enc.w.WriteByte(b)
	case colmd.PhysicalTypeByteArray, colmd.PhysicalTypeFixedLenByteArray:
		data := v.ByteArray()
		if err := streamio.WriteUvarint(enc.w, uint64(len(data))); err != nil {
			return err
		}
		_, err := enc.w.Write(data)
		return err
	default:
		return fmt.Errorf("plain: unsupported physical type %v", enc.physical)
	}
}

// Flush implements [valueEncoder]. It is a no-op for plainEncoder.
func (enc *plainEncoder) Flush() error { return nil }

// Reset discards state and resets the encoder to write to w.
func (enc *plainEncoder) Reset(w streamio.Writer) { enc.w = w }

// plainDecoder decodes values encoded by [plainEncoder].
type plainDecoder struct {
	physical colmd.PhysicalType
	r        streamio.Reader
	buf      [8]byte
}

var _ valueDecoder = (*plainDecoder)(nil)

func newPlainDecoder(physical colmd.PhysicalType, r streamio.Reader) *plainDecoder {
	return &plainDecoder{physical: physical, r: r}
}

// PhysicalType returns the physical type the decoder was created for.
func (dec *plainDecoder) PhysicalType() colmd.PhysicalType { return dec.physical }

// EncodingType returns [colmd.EncodingTypePlain].
func (dec *plainDecoder) EncodingType() colmd.EncodingType { return colmd.EncodingTypePlain }

// Decode decodes up to len(s) values, storing the results into s.
func (dec *plainDecoder) Decode(s []Value) (int, error) {
	if len(s) == 0 {
		return 0, nil
	}

	for i := range s {
		v, err := dec.decode()
		if errors.Is(err, io.EOF) {
			if i == 0 {
				return 0, io.EOF
			}
			return i, nil
		} else if err != nil {
			return i, err
		}
		s[i] = v
	}
	return len(s), nil
}

func (dec *plainDecoder) decode() (Value, error) {
	switch dec.physical {
	case colmd.PhysicalTypeInt32:
		v, err := streamio.ReadVarint(dec.r)
		if err != nil {
			return Value{}, err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return Value{}, fmt.Errorf("plain: int32 value %d out of range", v)
		}
		return Int32Value(int32(v)), nil
	case colmd.PhysicalTypeInt64:
		v, err := streamio.ReadVarint(dec.r)
		if err != nil {
			return Value{}, err
		}
		return Int64Value(v), nil
	case colmd.PhysicalTypeFloat32:
		if _, err := io.ReadFull(dec.r, dec.buf[:4]); err != nil {
			return Value{}, err
		}
		return Float32Value(math.Float32frombits(binary.LittleEndian.Uint32(dec.buf[:4]))), nil
	case colmd.PhysicalTypeFloat64:
		if _, err := io.ReadFull(dec.r, dec.buf[:8]); err != nil {
			return Value{}, err
		}
		return Float64Value(math.Float64frombits(binary.LittleEndian.Uint64(dec.buf[:8]))), nil
	case colmd.PhysicalTypeBoolean:
		b, err := dec.r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		return BooleanValue(b != 0), nil
	case colmd.PhysicalTypeByteArray, colmd.PhysicalTypeFixedLenByteArray:
		length, err := streamio.ReadUvarint(dec.r)
		if err != nil {
			return Value{}, err
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(dec.r, data); err != nil {
			return Value{}, err
		}
		if dec.physical == colmd.PhysicalTypeFixedLenByteArray {
			return FixedLenByteArrayValue(data), nil
		}
		return ByteArrayValue(data), nil
	default:
		return Value{}, fmt.Errorf("plain: unsupported physical type %v", dec.physical)
	}
}

// Reset discards state and resets the decoder to read from r.
func (dec *plainDecoder) Reset(r streamio.Reader) { dec.r = r }
