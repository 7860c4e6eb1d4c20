package columnar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// The nested-list example: five occurrences where occurrence 1 is a NULL at
// the value level and every other occurrence holds a value.
var (
	spacedDefLevels = []uint16{3, 2, 3, 3, 3}
	spacedRepLevels = []uint16{0, 1, 1, 1, 1}
	spacedMaxDef    = uint16(3)
	spacedValidity  = ValidityBitmap{0b11101}
	spacedInput     = []Value{
		Int32Value(1),
		Int32Value(-999), // Slot at the NULL occurrence; never read.
		Int32Value(2),
		Int32Value(3),
		Int32Value(4),
	}
)

func Test_CompactSpaced(t *testing.T) {
	dense, values, err := CompactSpaced(nil, spacedInput, spacedDefLevels, spacedMaxDef, spacedValidity, 0)
	require.NoError(t, err)
	require.Equal(t, 4, values)

	var actual []int32
	for _, v := range dense {
		actual = append(actual, v.Int32())
	}
	require.Equal(t, []int32{1, 2, 3, 4}, actual)
}

func Test_CompactSpaced_nullBit(t *testing.T) {
	// A clear validity bit at a value-level occurrence makes it NULL even
	// though its definition level reaches the maximum.
	var (
		defLevels = []uint16{1, 1, 1}
		validity  = ValidityBitmap{0b101}
		spaced    = []Value{Int64Value(10), Int64Value(-1), Int64Value(30)}
	)

	dense, values, err := CompactSpaced(nil, spaced, defLevels, 1, validity, 0)
	require.NoError(t, err)
	require.Equal(t, 2, values)
	require.Equal(t, int64(10), dense[0].Int64())
	require.Equal(t, int64(30), dense[1].Int64())
}

func Test_CompactSpaced_offset(t *testing.T) {
	// Batched calls share one bitmap through the validity offset.
	var (
		defLevels = []uint16{1, 1}
		validity  = ValidityBitmap{0b1001}
		spaced    = []Value{Int64Value(1), Int64Value(2)}
	)

	dense, values, err := CompactSpaced(nil, spaced, defLevels, 1, validity, 2)
	require.NoError(t, err)
	require.Equal(t, 1, values)
	require.Equal(t, int64(2), dense[0].Int64())
}

func Test_CompactSpaced_empty(t *testing.T) {
	dense, values, err := CompactSpaced(nil, nil, nil, 3, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, values)
	require.Empty(t, dense)
}

func Test_CompactSpaced_errors(t *testing.T) {
	t.Run("level above maximum", func(t *testing.T) {
		_, _, err := CompactSpaced(nil, spacedInput, []uint16{3, 4, 3, 3, 3}, spacedMaxDef, spacedValidity, 0)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("short spaced buffer", func(t *testing.T) {
		_, _, err := CompactSpaced(nil, spacedInput[:3], spacedDefLevels, spacedMaxDef, spacedValidity, 0)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, _, err := CompactSpaced(nil, spacedInput, spacedDefLevels, spacedMaxDef, spacedValidity, -1)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("bitmap too small", func(t *testing.T) {
		_, _, err := CompactSpaced(nil, spacedInput, spacedDefLevels, spacedMaxDef, spacedValidity, 6)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func Test_ExpandSpaced(t *testing.T) {
	dense := []Value{Int32Value(1), Int32Value(2), Int32Value(3), Int32Value(4)}

	spaced, values, err := ExpandSpaced(nil, dense, spacedDefLevels, spacedMaxDef, spacedValidity, 0)
	require.NoError(t, err)
	require.Equal(t, 4, values)
	require.Len(t, spaced, len(spacedDefLevels))

	require.Equal(t, int32(1), spaced[0].Int32())
	require.True(t, spaced[1].IsNil())
	require.Equal(t, int32(2), spaced[2].Int32())
	require.Equal(t, int32(3), spaced[3].Int32())
	require.Equal(t, int32(4), spaced[4].Int32())
}

func Test_ExpandSpaced_shortDense(t *testing.T) {
	dense := []Value{Int32Value(1), Int32Value(2)}

	_, _, err := ExpandSpaced(nil, dense, spacedDefLevels, spacedMaxDef, spacedValidity, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func Test_CompactExpand_roundTrip(t *testing.T) {
	dense, values, err := CompactSpaced(nil, spacedInput, spacedDefLevels, spacedMaxDef, spacedValidity, 0)
	require.NoError(t, err)

	spaced, expanded, err := ExpandSpaced(nil, dense, spacedDefLevels, spacedMaxDef, spacedValidity, 0)
	require.NoError(t, err)
	require.Equal(t, values, expanded)

	// Compacting the expanded buffer again reproduces the dense buffer.
	again, _, err := CompactSpaced(nil, spaced, spacedDefLevels, spacedMaxDef, spacedValidity, 0)
	require.NoError(t, err)
	require.Equal(t, len(dense), len(again))
	for i := range dense {
		require.Equal(t, dense[i].Int32(), again[i].Int32())
	}
}

func Test_ValidityBitmap_SetBits(t *testing.T) {
	bm := make(ValidityBitmap, 4)
	for _, i := range []int{0, 3, 8, 9, 15, 30} {
		bm.Set(i, true)
	}

	require.Equal(t, 6, bm.SetBits(0, 32))
	require.Equal(t, 2, bm.SetBits(0, 8))
	require.Equal(t, 3, bm.SetBits(3, 8))
	require.Equal(t, 0, bm.SetBits(16, 14))
	require.Equal(t, 1, bm.SetBits(16, 15))

	bm.Set(3, false)
	require.Equal(t, 5, bm.SetBits(0, 32))
}
