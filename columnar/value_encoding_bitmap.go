package columnar

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/colobj/colobj/internal/streamio"
)

// The bitmap encoding is a hybrid of run-length encoding and bit-packing for
// sequences of unsigned integers, used for the repetition level, definition
// level, and presence streams of a page. The stream is a sequence of runs,
// each starting with a uvarint header:
//
//   - header&1 == 0: an RLE run of header>>1 copies of the uvarint value
//     that follows.
//   - header&1 == 1: header>>1 bit-packed groups of 8 values each, prefixed
//     by a single byte giving the bit width. Values are packed LSB-first.
//
// Values that do not fill a complete group of 8 are flushed as RLE runs, so
// the stream never contains padding values.

const bitmapGroupSize = 8

// bitmapEncoder encodes uint64s with the hybrid RLE/bit-packing scheme.
type bitmapEncoder struct {
	w streamio.Writer

	group  [bitmapGroupSize]uint64 // Values not yet forming a complete group.
	groupN int

	runValue uint64 // Pending RLE run; valid when runCount > 0.
	runCount uint64

	packed [][bitmapGroupSize]uint64 // Pending bit-packed groups.
}

// newBitmapEncoder creates a bitmapEncoder that writes encoded values to w.
func newBitmapEncoder(w streamio.Writer) *bitmapEncoder {
	return &bitmapEncoder{w: w}
}

// Encode buffers a new value to encode.
func (enc *bitmapEncoder) Encode(v uint64) error {
	enc.group[enc.groupN] = v
	enc.groupN++
	if enc.groupN < bitmapGroupSize {
		return nil
	}
	enc.groupN = 0
	return enc.appendGroup(enc.group)
}

func (enc *bitmapEncoder) appendGroup(group [bitmapGroupSize]uint64) error {
	uniform := true
	for _, v := range group[1:] {
		if v != group[0] {
			uniform = false
			break
		}
	}

	switch {
	case uniform && enc.runCount > 0 && enc.runValue == group[0]:
		enc.runCount += bitmapGroupSize
		return nil

	case uniform:
		// Starting a new RLE run; any pending state must be flushed first.
		if err := enc.flushPending(); err != nil {
			return err
		}
		enc.runValue = group[0]
		enc.runCount = bitmapGroupSize
		return nil

	default:
		// A mixed group extends the pending bit-packed run; a pending RLE
		// run ends here.
		if enc.runCount > 0 {
			if err := enc.flushRLE(); err != nil {
				return err
			}
		}
		enc.packed = append(enc.packed, group)
		return nil
	}
}

func (enc *bitmapEncoder) flushPending() error {
	if enc.runCount > 0 {
		if err := enc.flushRLE(); err != nil {
			return err
		}
	}
	if len(enc.packed) > 0 {
		if err := enc.flushPacked(); err != nil {
			return err
		}
	}
	return nil
}

func (enc *bitmapEncoder) flushRLE() error {
	if err := streamio.WriteUvarint(enc.w, enc.runCount<<1); err != nil {
		return err
	}
	if err := streamio.WriteUvarint(enc.w, enc.runValue); err != nil {
		return err
	}
	enc.runCount = 0
	enc.runValue = 0
	return nil
}

func (enc *bitmapEncoder) flushPacked() error {
	width := 1
	for _, group := range enc.packed {
		for _, v := range group {
			if w := bits.Len64(v); w > width {
				width = w
			}
		}
	}

	if err := streamio.WriteUvarint(enc.w, uint64(len(enc.packed))<<1|1); err != nil {
		return err
	}
	if err := enc.w.WriteByte(byte(width)); err != nil {
		return err
	}

	for _, group := range enc.packed {
		var (
			acc   byte
			nbits int
		)
		for _, v := range group {
			rem := width
			for rem > 0 {
				take := min(8-nbits, rem)
				acc |= byte(v&(1<<take-1)) << nbits
				v >>= take
				nbits += take
				rem -= take
				if nbits == 8 {
					if err := enc.w.WriteByte(acc); err != nil {
						return err
					}
					acc, nbits = 0, 0
				}
			}
		}
		// 8 values of width bits always fill whole bytes.
	}

	enc.packed = enc.packed[:0]
	return nil
}

// Flush writes all buffered values to the underlying writer. Values that do
// not fill a complete group are written as RLE runs.
func (enc *bitmapEncoder) Flush() error {
	if err := enc.flushPending(); err != nil {
		return err
	}

	for i := 0; i < enc.groupN; {
		j := i + 1
		for j < enc.groupN && enc.group[j] == enc.group[i] {
			j++
		}
		enc.runValue = enc.group[i]
		enc.runCount = uint64(j - i)
		if err := enc.flushRLE(); err != nil {
			return err
		}
		i = j
	}
	enc.groupN = 0
	return nil
}

// Reset discards any state and resets the encoder to write to w.
func (enc *bitmapEncoder) Reset(w streamio.Writer) {
	enc.w = w
	enc.groupN = 0
	enc.runValue = 0
	enc.runCount = 0
	enc.packed = enc.packed[:0]
}

// bitmapDecoder decodes uint64s encoded by [bitmapEncoder].
type bitmapDecoder struct {
	r streamio.Reader

	runValue uint64 // Remaining RLE run; valid while runCount > 0.
	runCount uint64

	packed    []uint64 // Unpacked values not yet returned.
	packedOff int
}

// newBitmapDecoder creates a bitmapDecoder that reads encoded values from r.
func newBitmapDecoder(r streamio.Reader) *bitmapDecoder {
	return &bitmapDecoder{r: r}
}

// Decode decodes up to len(s) values, storing the results into s. The number
// of decoded values is returned, followed by an error (if any). At the end
// of the stream, Decode returns 0, [io.EOF].
func (dec *bitmapDecoder) Decode(s []uint64) (int, error) {
	if len(s) == 0 {
		return 0, nil
	}

	for i := range s {
		v, err := dec.decode()
		if err == io.EOF {
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

// decode returns the next value in the stream.
func (dec *bitmapDecoder) decode() (uint64, error) {
	if dec.runCount > 0 {
		dec.runCount--
		return dec.runValue, nil
	}
	if dec.packedOff < len(dec.packed) {
		v := dec.packed[dec.packedOff]
		dec.packedOff++
		return v, nil
	}

	header, err := streamio.ReadUvarint(dec.r)
	if err != nil {
		return 0, err
	}

	if header&1 == 0 {
		count := header >> 1
		if count == 0 {
			return 0, fmt.Errorf("bitmap: zero-length RLE run")
		}
		value, err := streamio.ReadUvarint(dec.r)
		if err != nil {
			return 0, unexpectedEOF(err)
		}
		dec.runValue, dec.runCount = value, count-1
		return value, nil
	}

	groups := int(header >> 1)
	if groups == 0 {
		return 0, fmt.Errorf("bitmap: zero-length bit-packed run")
	}
	widthByte, err := dec.r.ReadByte()
	if err != nil {
		return 0, unexpectedEOF(err)
	}
	width := int(widthByte)
	if width < 1 || width > 64 {
		return 0, fmt.Errorf("bitmap: invalid bit width %d", width)
	}

	dec.packed = dec.packed[:0]
	dec.packedOff = 0
	for g := 0; g < groups; g++ {
		var (
			acc   byte
			nbits int
		)
		for i := 0; i < bitmapGroupSize; i++ {
			var (
				v    uint64
				have int
			)
			for have < width {
				if nbits == 0 {
					if acc, err = dec.r.ReadByte(); err != nil {
						return 0, unexpectedEOF(err)
					}
					nbits = 8
				}
				take := min(nbits, width-have)
				v |= uint64(acc&(1<<take-1)) << have
				acc >>= take
				nbits -= take
				have += take
			}
			dec.packed = append(dec.packed, v)
		}
	}

	dec.packedOff = 1
	return dec.packed[0], nil
}

// Reset discards any state and resets the decoder to read from r.
func (dec *bitmapDecoder) Reset(r streamio.Reader) {
	dec.r = r
	dec.runValue = 0
	dec.runCount = 0
	dec.packed = dec.packed[:0]
	dec.packedOff = 0
}

// unexpectedEOF converts io.EOF to io.ErrUnexpectedEOF for reads that occur
// past a run header, where the stream ending mid-run indicates truncation.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
