package columnar

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrInvalidArgument is returned when buffer lengths or offsets passed to
	// a batch operation are inconsistent with each other.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange is returned when a requested batch size is negative.
	ErrOutOfRange = errors.New("out of range")
)

// A ValidityBitmap is a packed sequence of bits marking which occurrences of a
// batch hold a non-NULL value. Bits are LSB-first within each byte: bit i of
// the bitmap is bit i%8 of byte i/8.
type ValidityBitmap []byte

// Bits returns the number of addressable bits in the bitmap.
func (b ValidityBitmap) Bits() int { return len(b) * 8 }

// Get returns whether bit i is set.
func (b ValidityBitmap) Get(i int) bool {
	return b[i>>3]&(1<<uint(i&7)) != 0
}

// Set sets bit i if v is true and clears it otherwise.
func (b ValidityBitmap) Set(i int, v bool) {
	if v {
		b[i>>3] |= 1 << uint(i&7)
	} else {
		b[i>>3] &^= 1 << uint(i&7)
	}
}

// SetBits returns the number of set bits among the n bits starting at
// offset.
func (b ValidityBitmap) SetBits(offset, n int) int {
	var count int
	for i := offset; i < offset+n; {
		if i%8 == 0 && n-(i-offset) >= 8 {
			count += bits.OnesCount8(b[i>>3])
			i += 8
			continue
		}
		if b.Get(i) {
			count++
		}
		i++
	}
	return count
}

// checkLevels validates a batch of definition levels against maxDef and
// returns the index just past the last occurrence with definition level equal
// to maxDef, or 0 when no occurrence reaches it.
func checkLevels(defLevels []uint16, maxDef uint16) (int, error) {
	var end int
	for i, def := range defLevels {
		if def > maxDef {
			return 0, fmt.Errorf("%w: definition level %d at occurrence %d exceeds maximum %d", ErrInvalidArgument, def, i, maxDef)
		}
		if def == maxDef {
			end = i + 1
		}
	}
	return end, nil
}

// CompactSpaced appends the non-NULL values of a spaced buffer to dst,
// returning the extended slice and the number of values appended.
//
// spaced holds one slot per occurrence and validity one bit per occurrence,
// starting at validityOffset. An occurrence whose definition level equals
// maxDef consults its validity bit: a set bit copies the occurrence's spaced
// slot, a clear bit marks a NULL and copies nothing. Occurrences with a lower
// definition level consult neither their bit nor their slot, and their slot
// contents are never read.
//
// CompactSpaced validates its arguments before touching dst, so on error no
// partial output is produced.
func CompactSpaced(dst []Value, spaced []Value, defLevels []uint16, maxDef uint16, validity ValidityBitmap, validityOffset int) ([]Value, int, error) {
	end, err := checkLevels(defLevels, maxDef)
	if err != nil {
		return dst, 0, err
	}
	if validityOffset < 0 {
		return dst, 0, fmt.Errorf("%w: negative validity offset %d", ErrInvalidArgument, validityOffset)
	}
	if len(spaced) < end {
		return dst, 0, fmt.Errorf("%w: spaced buffer has %d slots, need %d", ErrInvalidArgument, len(spaced), end)
	}
	if validityOffset+end > validity.Bits() {
		return dst, 0, fmt.Errorf("%w: validity bitmap has %d bits, need %d", ErrInvalidArgument, validity.Bits(), validityOffset+end)
	}

	var values int
	for i, def := range defLevels {
		if def != maxDef {
			continue
		}
		if validity.Get(validityOffset + i) {
			dst = append(dst, spaced[i])
			values++
		}
	}
	return dst, values, nil
}

// ExpandSpaced is the inverse of [CompactSpaced]: it appends one slot per
// occurrence to dst, copying the next dense value at occurrences whose
// definition level equals maxDef and whose validity bit is set, and a zero
// (NULL) Value everywhere else. It returns the extended slice and the number
// of dense values consumed.
func ExpandSpaced(dst []Value, dense []Value, defLevels []uint16, maxDef uint16, validity ValidityBitmap, validityOffset int) ([]Value, int, error) {
	end, err := checkLevels(defLevels, maxDef)
	if err != nil {
		return dst, 0, err
	}
	if validityOffset < 0 {
		return dst, 0, fmt.Errorf("%w: negative validity offset %d", ErrInvalidArgument, validityOffset)
	}
	if validityOffset+end > validity.Bits() {
		return dst, 0, fmt.Errorf("%w: validity bitmap has %d bits, need %d", ErrInvalidArgument, validity.Bits(), validityOffset+end)
	}

	need := 0
	for i, def := range defLevels {
		if def == maxDef && validity.Get(validityOffset+i) {
			need++
		}
	}
	if len(dense) < need {
		return dst, 0, fmt.Errorf("%w: dense buffer has %d values, need %d", ErrInvalidArgument, len(dense), need)
	}

	var values int
	for i, def := range defLevels {
		if def == maxDef && validity.Get(validityOffset+i) {
			dst = append(dst, dense[values])
			values++
		} else {
			dst = append(dst, Value{})
		}
	}
	return dst, values, nil
}
