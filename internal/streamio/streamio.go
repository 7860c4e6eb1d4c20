// Package streamio defines interfaces and helpers for working with streams of
// bytes, combining the stdlib byte-level and slice-level interfaces that the
// varint helpers in [encoding/binary] require.
package streamio

import (
	"encoding/binary"
	"io"
	"math/bits"
)

// Writer combines an [io.Writer] with an [io.ByteWriter], allowing both bulk
// and byte-at-a-time writes without wrapping.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// Reader combines an [io.Reader] with an [io.ByteReader], allowing both bulk
// and byte-at-a-time reads without wrapping.
type Reader interface {
	io.Reader
	io.ByteReader
}

// WriteUvarint writes v to w as an unsigned varint.
func WriteUvarint(w io.ByteWriter, v uint64) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

// WriteVarint writes v to w as a signed varint using zigzag encoding.
func WriteVarint(w io.ByteWriter, v int64) error {
	uv := uint64(v) << 1
	if v < 0 {
		uv = ^uv
	}
	return WriteUvarint(w, uv)
}

// ReadUvarint reads an unsigned varint from r.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// ReadVarint reads a signed varint from r.
func ReadVarint(r io.ByteReader) (int64, error) {
	return binary.ReadVarint(r)
}

// UvarintSize returns the number of bytes needed to encode v as an unsigned
// varint.
func UvarintSize(v uint64) int {
	return (bits.Len64(v|1) + 6) / 7
}

// VarintSize returns the number of bytes needed to encode v as a signed
// varint.
func VarintSize(v int64) int {
	uv := uint64(v) << 1
	if v < 0 {
		uv = ^uv
	}
	return UvarintSize(uv)
}
