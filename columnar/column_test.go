package columnar

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colobj/colobj/colmd"
)

// columnTestStrings contains enough strings to span multiple pages.
var columnTestStrings = []string{
	"column reader string 1",
	"column reader string 2",
	"",
	"column reader string 4",
	"column reader string 5",
	"column reader string 1",
	"column reader string 2",
	"",
	"column reader string 4",
	"column reader string 5",
	"column reader string 1",
	"column reader string 2",
	"",
	"column reader string 4",
	"column reader string 5",
}

func Test_ColumnReader_ReadAll(t *testing.T) {
	col := buildMultiPageColumn(t, columnTestStrings)
	require.Greater(t, len(col.Pages), 1, "test requires multiple pages")

	cr := NewColumnReader(col)
	actualValues, err := readColumn(cr, 4)
	require.NoError(t, err)

	actual := convertToStrings(t, actualValues)
	require.Equal(t, columnTestStrings, actual)
}

func Test_ColumnReader_SeekAcrossPages(t *testing.T) {
	col := buildMultiPageColumn(t, columnTestStrings)
	require.Greater(t, len(col.Pages), 1, "test requires multiple pages")

	// Find a position near the end of the first page.
	endFirstPage := int(col.Pages[0].Desc.RowsCount) - 2

	cr := NewColumnReader(col)
	_, err := cr.Seek(int64(endFirstPage), io.SeekStart)
	require.NoError(t, err)

	// Read enough occurrences to span into the second page.
	var (
		repLevels = make([]uint16, 4)
		defLevels = make([]uint16, 4)
		values    = make([]Value, 4)
	)
	levels, vals, err := cr.ReadBatch(context.Background(), 4, repLevels, defLevels, values)
	require.NoError(t, err)
	require.Equal(t, 4, levels)

	actual := convertToStrings(t, values[:vals])
	expected := columnTestStrings[endFirstPage : endFirstPage+4]
	require.Equal(t, expected, actual)
}

func Test_ColumnReader_SeekToStart(t *testing.T) {
	col := buildMultiPageColumn(t, columnTestStrings)

	cr := NewColumnReader(col)

	// First read everything.
	_, err := readColumn(cr, 4)
	require.NoError(t, err)

	// Seek back to start and read again.
	_, err = cr.Seek(0, io.SeekStart)
	require.NoError(t, err)

	actualValues, err := readColumn(cr, 4)
	require.NoError(t, err)

	actual := convertToStrings(t, actualValues)
	require.Equal(t, columnTestStrings, actual)
}

func Test_ColumnReader_Reset(t *testing.T) {
	col := buildMultiPageColumn(t, columnTestStrings)

	cr := NewColumnReader(col)

	// First read everything.
	_, err := readColumn(cr, 4)
	require.NoError(t, err)

	// Reset and read again.
	cr.Reset(col)

	actualValues, err := readColumn(cr, 4)
	require.NoError(t, err)

	actual := convertToStrings(t, actualValues)
	require.Equal(t, columnTestStrings, actual)
}

func Test_ColumnReader_batchSizes(t *testing.T) {
	col := buildMultiPageColumn(t, columnTestStrings)

	for _, size := range []int{1, 2, 7, len(columnTestStrings), len(columnTestStrings) * 2} {
		cr := NewColumnReader(col)
		actualValues, err := readColumn(cr, size)
		require.NoError(t, err)
		require.Equal(t, columnTestStrings, convertToStrings(t, actualValues))
	}
}

func Test_ColumnReader_negativeBatchSize(t *testing.T) {
	col := buildMultiPageColumn(t, columnTestStrings)

	cr := NewColumnReader(col)
	_, _, err := cr.ReadBatch(context.Background(), -1, nil, nil, nil)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func Test_ColumnReader_nulls(t *testing.T) {
	// A flat optional column: NULL occurrences carry definition level 0.
	builder, err := NewColumnBuilder("", BuilderOptions{
		PageSizeHint:       1024,
		Value:              colmd.PhysicalTypeInt64,
		Compression:        colmd.CompressionTypeNone,
		Encoding:           colmd.EncodingTypeIntComp,
		MaxDefinitionLevel: 1,
	})
	require.NoError(t, err)

	var (
		repLevels = []uint16{0, 0, 0, 0, 0}
		defLevels = []uint16{1, 0, 1, 0, 1}
		values    = []Value{Int64Value(10), {}, Int64Value(20), {}, Int64Value(30)}
	)
	require.NoError(t, builder.Append(repLevels, defLevels, values))

	col, err := builder.Flush()
	require.NoError(t, err)
	require.Equal(t, uint64(5), col.Desc.RowsCount)
	require.Equal(t, uint64(3), col.Desc.ValuesCount)

	var (
		cr      = NewColumnReader(col)
		gotRep  = make([]uint16, 8)
		gotDef  = make([]uint16, 8)
		gotVals = make([]Value, 8)
	)
	levels, vals, err := cr.ReadBatch(context.Background(), 8, gotRep, gotDef, gotVals)
	require.NoError(t, err)
	require.Equal(t, 5, levels)
	require.Equal(t, 3, vals)
	require.Equal(t, defLevels, gotDef[:levels])
	require.Equal(t, int64(10), gotVals[0].Int64())
	require.Equal(t, int64(20), gotVals[1].Int64())
	require.Equal(t, int64(30), gotVals[2].Int64())
}

func Test_ColumnBuilder_levelValidation(t *testing.T) {
	builder, err := NewColumnBuilder("", BuilderOptions{
		PageSizeHint:       1024,
		Value:              colmd.PhysicalTypeInt64,
		Compression:        colmd.CompressionTypeNone,
		Encoding:           colmd.EncodingTypeIntComp,
		MaxDefinitionLevel: 1,
	})
	require.NoError(t, err)

	err = builder.Append([]uint16{0}, []uint16{2}, []Value{{}})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, 0, builder.Rows())

	err = builder.Append([]uint16{1}, []uint16{1}, []Value{Int64Value(1)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// buildMultiPageColumn creates a column with multiple pages by using a small
// page size.
func buildMultiPageColumn(t *testing.T, values []string) *MemColumn {
	t.Helper()

	builder, err := NewColumnBuilder("", BuilderOptions{
		PageSizeHint:       128, // Small page size to force multiple pages.
		Value:              colmd.PhysicalTypeByteArray,
		Compression:        colmd.CompressionTypeSnappy,
		Encoding:           colmd.EncodingTypePlain,
		MaxDefinitionLevel: 1,
	})
	require.NoError(t, err)

	var (
		repLevels = make([]uint16, len(values))
		defLevels = make([]uint16, len(values))
		batch     = make([]Value, len(values))
	)
	for i, v := range values {
		defLevels[i] = 1
		batch[i] = ByteArrayValue([]byte(v))
	}
	require.NoError(t, builder.Append(repLevels, defLevels, batch))

	col, err := builder.Flush()
	require.NoError(t, err)
	return col
}

// readColumn reads all values of a column in batches of size batchSize.
func readColumn(cr *ColumnReader, batchSize int) ([]Value, error) {
	var (
		out []Value

		repLevels = make([]uint16, batchSize)
		defLevels = make([]uint16, batchSize)
		values    = make([]Value, batchSize)
	)
	for {
		levels, vals, err := cr.ReadBatch(context.Background(), batchSize, repLevels, defLevels, values)
		if errors.Is(err, io.EOF) {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, values[:vals]...)
		if levels == 0 {
			return out, nil
		}
	}
}

func convertToStrings(t *testing.T, values []Value) []string {
	t.Helper()

	out := make([]string, 0, len(values))
	for _, v := range values {
		require.Equal(t, colmd.PhysicalTypeByteArray, v.Type())
		out = append(out, string(v.ByteArray()))
	}
	return out
}
