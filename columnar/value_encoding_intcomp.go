package columnar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ronanh/intcomp"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/internal/streamio"
)

func init() {
	registerValueEncoding(colmd.PhysicalTypeInt64, colmd.EncodingTypeIntComp, registryEntry{
		NewEncoder: func(w streamio.Writer) valueEncoder { return newIntCompEncoder(w) },
		NewDecoder: func(r streamio.Reader) valueDecoder { return newIntCompDecoder(r) },
	})
}

// intCompEncoder encodes int64s using a mix of delta, zigzag and bitpacking
// techniques.
type intCompEncoder struct {
	w streamio.Writer
	// inputBuf buffers int64 values before they are compressed in a batch.
	// The size of this buffer controls how often the encoder flushes.
	inputBuf []int64
	// compressedBuf is a reusable slice to compress the int64 values into.
	compressedBuf []uint64
	// outputBuf is a reusable slice for the final bytes, translated from the
	// uint64s in compressedBuf.
	outputBuf []byte
}

var _ valueEncoder = (*intCompEncoder)(nil)

// newIntCompEncoder creates an intCompEncoder that writes encoded numbers to
// w.
func newIntCompEncoder(w streamio.Writer) *intCompEncoder {
	var enc intCompEncoder
	enc.inputBuf = make([]int64, 0, 256)
	enc.compressedBuf = make([]uint64, 0, 256)
	enc.outputBuf = make([]byte, 300*8)
	enc.Reset(w)
	return &enc
}

// PhysicalType returns [colmd.PhysicalTypeInt64].
func (enc *intCompEncoder) PhysicalType() colmd.PhysicalType {
	return colmd.PhysicalTypeInt64
}

// EncodingType returns [colmd.EncodingTypeIntComp].
func (enc *intCompEncoder) EncodingType() colmd.EncodingType {
	return colmd.EncodingTypeIntComp
}

// Encode encodes a new value.
func (enc *intCompEncoder) Encode(v Value) error {
	if v.Type() != colmd.PhysicalTypeInt64 {
		return fmt.Errorf("intcomp: invalid value type %v", v.Type())
	}

	enc.inputBuf = append(enc.inputBuf, v.Int64())
	if len(enc.inputBuf) == cap(enc.inputBuf) {
		return enc.Flush()
	}
	return nil
}

// Flush compresses and writes out any buffered values.
func (enc *intCompEncoder) Flush() error {
	if len(enc.inputBuf) == 0 {
		return nil
	}

	enc.compressedBuf = intcomp.CompressInt64(enc.inputBuf, enc.compressedBuf)

	if need := len(enc.compressedBuf) * 8; need > len(enc.outputBuf) {
		enc.outputBuf = make([]byte, need)
	}
	for i, in := range enc.compressedBuf {
		binary.LittleEndian.PutUint64(enc.outputBuf[i*8:], in)
	}

	if err := streamio.WriteUvarint(enc.w, uint64(len(enc.compressedBuf)*8)); err != nil {
		return err
	}
	if _, err := enc.w.Write(enc.outputBuf[:len(enc.compressedBuf)*8]); err != nil {
		return err
	}

	enc.inputBuf = enc.inputBuf[:0]
	enc.compressedBuf = enc.compressedBuf[:0]
	return nil
}

// Reset resets the encoder to its initial state, writing to w.
func (enc *intCompEncoder) Reset(w streamio.Writer) {
	enc.inputBuf = enc.inputBuf[:0]
	enc.compressedBuf = enc.compressedBuf[:0]
	enc.w = w
}

// intCompDecoder decodes int64s encoded by [intCompEncoder].
type intCompDecoder struct {
	r streamio.Reader
	// valueBuf holds a batch of decoded int64 values.
	valueBuf []int64
	readBuf  []byte
	compBuf  []uint64
	valueIdx int
}

var _ valueDecoder = (*intCompDecoder)(nil)

// newIntCompDecoder creates an intCompDecoder that reads encoded numbers
// from r.
func newIntCompDecoder(r streamio.Reader) *intCompDecoder {
	var dec intCompDecoder
	dec.valueBuf = make([]int64, 0, 256)
	dec.readBuf = make([]byte, 300*8)
	dec.compBuf = make([]uint64, 300)
	dec.Reset(r)
	return &dec
}

// PhysicalType returns [colmd.PhysicalTypeInt64].
func (dec *intCompDecoder) PhysicalType() colmd.PhysicalType {
	return colmd.PhysicalTypeInt64
}

// EncodingType returns [colmd.EncodingTypeIntComp].
func (dec *intCompDecoder) EncodingType() colmd.EncodingType {
	return colmd.EncodingTypeIntComp
}

// Decode decodes up to len(s) values, storing the results into s.
func (dec *intCompDecoder) Decode(s []Value) (int, error) {
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

// decode reads the next int64 value from the stream.
func (dec *intCompDecoder) decode() (Value, error) {
	// If there are values in the value buffer, return the next value
	// immediately. Otherwise, decode a new block of values from the stream.
	if dec.valueIdx < len(dec.valueBuf) {
		v := dec.valueBuf[dec.valueIdx]
		dec.valueIdx++
		return Int64Value(v), nil
	}
	dec.valueBuf = dec.valueBuf[:0]
	dec.valueIdx = 0

	bufLen, err := streamio.ReadUvarint(dec.r)
	if err != nil {
		return Value{}, err
	}
	if bufLen%8 != 0 {
		return Value{}, fmt.Errorf("intcomp: block size %d is not a multiple of 8", bufLen)
	}

	if need := int(bufLen); need > len(dec.readBuf) {
		dec.readBuf = make([]byte, need)
		dec.compBuf = make([]uint64, need/8)
	}
	if _, err := io.ReadFull(dec.r, dec.readBuf[:bufLen]); err != nil {
		return Value{}, unexpectedEOF(err)
	}

	numUint64s := int(bufLen) / 8
	for i := 0; i < numUint64s; i++ {
		dec.compBuf[i] = binary.LittleEndian.Uint64(dec.readBuf[i*8 : i*8+8])
	}

	dec.valueBuf = intcomp.UncompressInt64(dec.compBuf[:numUint64s], dec.valueBuf)
	if len(dec.valueBuf) == 0 {
		return Value{}, fmt.Errorf("intcomp: block decoded to no values")
	}

	v := dec.valueBuf[dec.valueIdx]
	dec.valueIdx++
	return Int64Value(v), nil
}

// Reset resets the intCompDecoder to its initial state, reading from r.
func (dec *intCompDecoder) Reset(r streamio.Reader) {
	dec.valueBuf = dec.valueBuf[:0]
	dec.valueIdx = 0
	dec.r = r
}
