package colobj

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/grafana/dskit/flagext"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/columnar"
)

func testBuilderConfig() BuilderConfig {
	return BuilderConfig{
		TargetPageSize:   flagext.Bytes(32 * 1024),
		TargetObjectSize: flagext.Bytes(1024 * 1024),
	}
}

// The nested-list example: a list column with three levels of nesting, where
// the second occurrence is a NULL at the value level.
var (
	nestedDefLevels = []uint16{3, 2, 3, 3, 3}
	nestedRepLevels = []uint16{0, 1, 1, 1, 1}
	nestedValidity  = ValidityBitmap{0b11101}
	nestedSpaced    = []Value{
		columnar.Int32Value(1),
		columnar.Int32Value(-999), // Slot at the NULL occurrence; never read.
		columnar.Int32Value(2),
		columnar.Int32Value(3),
		columnar.Int32Value(4),
	}
)

func buildNestedFile(t *testing.T) *bytes.Buffer {
	t.Helper()

	builder, err := NewBuilder(testBuilderConfig())
	require.NoError(t, err)

	writer, err := builder.OpenColumn(ColumnSchema{
		Name:               "values",
		Type:               colmd.PhysicalTypeInt32,
		MaxDefinitionLevel: 3,
		MaxRepetitionLevel: 1,
		Compression:        colmd.CompressionTypeSnappy,
	})
	require.NoError(t, err)

	levels, values, err := writer.WriteBatchSpaced(nestedRepLevels, nestedDefLevels, nestedValidity, 0, nestedSpaced)
	require.NoError(t, err)
	require.Equal(t, 5, levels)
	require.Equal(t, 4, values)

	var buf bytes.Buffer
	stats, err := builder.Flush(&buf)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Columns)
	require.Equal(t, uint64(5), stats.Rows)
	require.Equal(t, uint64(4), stats.Values)
	require.Equal(t, buf.Len(), stats.OutputBytes)

	return &buf
}

func Test_roundTrip(t *testing.T) {
	buf := buildNestedFile(t)

	obj, err := FromReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	columns := obj.Columns()
	require.Len(t, columns, 1)
	require.Equal(t, "values", columns[0].Name())
	require.Equal(t, colmd.PhysicalTypeInt32, columns[0].Type())

	var (
		reader    = columns[0].Reader()
		repLevels = make([]uint16, 8)
		defLevels = make([]uint16, 8)
		values    = make([]Value, 8)
	)
	defer reader.Close()

	levels, vals, err := reader.ReadBatch(context.Background(), 8, repLevels, defLevels, values)
	require.NoError(t, err)
	require.Equal(t, 5, levels)
	require.Equal(t, 4, vals)
	require.Equal(t, nestedDefLevels, defLevels[:levels])
	require.Equal(t, nestedRepLevels, repLevels[:levels])

	var dense []int32
	for _, v := range values[:vals] {
		dense = append(dense, v.Int32())
	}
	require.Equal(t, []int32{1, 2, 3, 4}, dense)

	// All occurrences consumed; the next read reports the end of the column.
	_, _, err = reader.ReadBatch(context.Background(), 8, repLevels, defLevels, values)
	require.ErrorIs(t, err, io.EOF)
}

func Test_roundTrip_partialBatch(t *testing.T) {
	buf := buildNestedFile(t)

	obj, err := FromReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var (
		reader    = obj.Columns()[0].Reader()
		repLevels = make([]uint16, 3)
		defLevels = make([]uint16, 3)
		values    = make([]Value, 3)
	)
	defer reader.Close()

	// The first three occurrences hold two non-NULL values: occurrence 1 is
	// NULL at the value level.
	levels, vals, err := reader.ReadBatch(context.Background(), 3, repLevels, defLevels, values)
	require.NoError(t, err)
	require.Equal(t, 3, levels)
	require.Equal(t, 2, vals)
	require.Equal(t, int32(1), values[0].Int32())
	require.Equal(t, int32(2), values[1].Int32())

	// Requesting more than the two remaining occurrences returns the
	// remainder, not an error.
	levels, vals, err = reader.ReadBatch(context.Background(), 3, repLevels, defLevels, values)
	require.NoError(t, err)
	require.Equal(t, 2, levels)
	require.Equal(t, 2, vals)
	require.Equal(t, int32(3), values[0].Int32())
	require.Equal(t, int32(4), values[1].Int32())
}

func Test_roundTrip_spaced(t *testing.T) {
	buf := buildNestedFile(t)

	obj, err := FromReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var (
		reader    = obj.Columns()[0].Reader()
		repLevels = make([]uint16, 8)
		defLevels = make([]uint16, 8)
		validity  = make(ValidityBitmap, 1)
		spaced    = make([]Value, 8)
	)
	defer reader.Close()

	levels, vals, err := reader.ReadBatchSpaced(context.Background(), 5, repLevels, defLevels, validity, 0, spaced)
	require.NoError(t, err)
	require.Equal(t, 5, levels)
	require.Equal(t, 4, vals)
	require.Equal(t, nestedValidity, validity)

	require.Equal(t, int32(1), spaced[0].Int32())
	require.True(t, spaced[1].IsNil())
	require.Equal(t, int32(2), spaced[2].Int32())
	require.Equal(t, int32(3), spaced[3].Int32())
	require.Equal(t, int32(4), spaced[4].Int32())
}

func Test_roundTrip_bucket(t *testing.T) {
	buf := buildNestedFile(t)
	ctx := context.Background()

	bucket := objstore.NewInMemBucket()
	require.NoError(t, bucket.Upload(ctx, "file", bytes.NewReader(buf.Bytes())))

	obj, err := FromBucket(ctx, bucket, "file")
	require.NoError(t, err)

	var (
		reader    = obj.Columns()[0].Reader()
		repLevels = make([]uint16, 8)
		defLevels = make([]uint16, 8)
		values    = make([]Value, 8)
	)
	defer reader.Close()

	levels, vals, err := reader.ReadBatch(ctx, 8, repLevels, defLevels, values)
	require.NoError(t, err)
	require.Equal(t, 5, levels)
	require.Equal(t, 4, vals)
}

func Test_ColumnReader_negativeBatch(t *testing.T) {
	buf := buildNestedFile(t)

	obj, err := FromReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	reader := obj.Columns()[0].Reader()
	defer reader.Close()

	_, _, err = reader.ReadBatch(context.Background(), -5, nil, nil, nil)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func Test_WriteBatchSpaced_sharedBitmap(t *testing.T) {
	// Batched writes share one larger bitmap through the validity offset.
	builder, err := NewBuilder(testBuilderConfig())
	require.NoError(t, err)

	writer, err := builder.OpenColumn(ColumnSchema{
		Name:               "values",
		Type:               colmd.PhysicalTypeInt64,
		MaxDefinitionLevel: 1,
	})
	require.NoError(t, err)

	var (
		validity = ValidityBitmap{0b1011, 0}
		batch1   = []Value{columnar.Int64Value(1), columnar.Int64Value(2)}
		batch2   = []Value{columnar.Int64Value(3), columnar.Int64Value(4)}
		flat     = []uint16{1, 1}
		reps     = []uint16{0, 0}
	)

	_, vals, err := writer.WriteBatchSpaced(reps, flat, validity, 0, batch1)
	require.NoError(t, err)
	require.Equal(t, 2, vals)

	_, vals, err = writer.WriteBatchSpaced(reps, flat, validity, 2, batch2)
	require.NoError(t, err)
	require.Equal(t, 1, vals) // Bit 2 is clear: batch2[0] is NULL.

	var buf bytes.Buffer
	_, err = builder.Flush(&buf)
	require.NoError(t, err)

	obj, err := FromReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var (
		reader    = obj.Columns()[0].Reader()
		repLevels = make([]uint16, 8)
		defLevels = make([]uint16, 8)
		values    = make([]Value, 8)
	)
	defer reader.Close()

	levels, vals, err := reader.ReadBatch(context.Background(), 8, repLevels, defLevels, values)
	require.NoError(t, err)
	require.Equal(t, 4, levels)
	require.Equal(t, 3, vals)
	require.Equal(t, int64(1), values[0].Int64())
	require.Equal(t, int64(2), values[1].Int64())
	require.Equal(t, int64(4), values[2].Int64())
}

func Test_WriteBatch_dense(t *testing.T) {
	builder, err := NewBuilder(testBuilderConfig())
	require.NoError(t, err)

	writer, err := builder.OpenColumn(ColumnSchema{
		Name: "flat",
		Type: colmd.PhysicalTypeFloat64,
	})
	require.NoError(t, err)

	// A flat required column: every occurrence is a value.
	var (
		levels = []uint16{0, 0, 0}
		values = []Value{columnar.Float64Value(1.5), columnar.Float64Value(2.5), columnar.Float64Value(3.5)}
	)
	require.NoError(t, writer.WriteBatch(levels, levels, values))

	var buf bytes.Buffer
	_, err = builder.Flush(&buf)
	require.NoError(t, err)

	obj, err := FromReaderAt(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var (
		reader = obj.Columns()[0].Reader()
		rep    = make([]uint16, 4)
		def    = make([]uint16, 4)
		out    = make([]Value, 4)
	)
	defer reader.Close()

	nLevels, nValues, err := reader.ReadBatch(context.Background(), 4, rep, def, out)
	require.NoError(t, err)
	require.Equal(t, 3, nLevels)
	require.Equal(t, 3, nValues)
	require.Equal(t, 2.5, out[1].Float64())
}

func Test_Builder_emptyFlush(t *testing.T) {
	builder, err := NewBuilder(testBuilderConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = builder.Flush(&buf)
	require.ErrorIs(t, err, ErrBuilderEmpty)
}

func Test_WriteBatchSpaced_invalid(t *testing.T) {
	builder, err := NewBuilder(testBuilderConfig())
	require.NoError(t, err)

	writer, err := builder.OpenColumn(ColumnSchema{
		Name:               "values",
		Type:               colmd.PhysicalTypeInt32,
		MaxDefinitionLevel: 3,
		MaxRepetitionLevel: 1,
	})
	require.NoError(t, err)

	t.Run("mismatched levels", func(t *testing.T) {
		_, _, err := writer.WriteBatchSpaced(nestedRepLevels[:4], nestedDefLevels, nestedValidity, 0, nestedSpaced)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("bitmap too small", func(t *testing.T) {
		_, _, err := writer.WriteBatchSpaced(nestedRepLevels, nestedDefLevels, nestedValidity, 5, nestedSpaced)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	require.Equal(t, 0, writer.Rows())
}

func Test_BuilderConfig_Validate(t *testing.T) {
	cfg := testBuilderConfig()
	require.NoError(t, cfg.Validate())

	cfg.TargetPageSize = 0
	require.Error(t, cfg.Validate())

	cfg = testBuilderConfig()
	cfg.TargetPageSize = cfg.TargetObjectSize
	require.Error(t, cfg.Validate())
}
