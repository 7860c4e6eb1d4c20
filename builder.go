package colobj

import (
	"bytes"
	"errors"
	"flag"
	"fmt"

	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/columnar"
	"github.com/colobj/colobj/internal/encoding"
)

var (
	// ErrBuilderFull is returned by write methods when the builder has reached
	// its target size; call [Builder.Flush] to flush it.
	ErrBuilderFull = errors.New("builder full")

	// ErrBuilderEmpty is returned by [Builder.Flush] when there is no buffered
	// data to flush.
	ErrBuilderEmpty = errors.New("builder empty")
)

// BuilderConfig configures a colobj [Builder].
type BuilderConfig struct {
	// TargetPageSize configures a target size for encoded pages within
	// columns. TargetPageSize accounts for encoding, but not for compression.
	TargetPageSize flagext.Bytes `yaml:"target_page_size"`

	// TargetObjectSize configures a target size for built files. Writes start
	// reporting [ErrBuilderFull] once the estimated size exceeds it.
	TargetObjectSize flagext.Bytes `yaml:"target_object_size"`
}

// RegisterFlagsWithPrefix registers flags with the given prefix.
func (cfg *BuilderConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	_ = cfg.TargetPageSize.Set("2MB")
	_ = cfg.TargetObjectSize.Set("1GB")

	f.Var(&cfg.TargetPageSize, prefix+"target-page-size", "The target size of encoded pages within columns.")
	f.Var(&cfg.TargetObjectSize, prefix+"target-object-size", "The target size of built files.")
}

// Validate validates the BuilderConfig.
func (cfg *BuilderConfig) Validate() error {
	var errs []error

	if cfg.TargetPageSize <= 0 {
		errs = append(errs, errors.New("TargetPageSize must be greater than 0"))
	} else if cfg.TargetPageSize >= cfg.TargetObjectSize {
		errs = append(errs, errors.New("TargetPageSize must be less than TargetObjectSize"))
	}

	if cfg.TargetObjectSize <= 0 {
		errs = append(errs, errors.New("TargetObjectSize must be greater than 0"))
	}

	return errors.Join(errs...)
}

// ColumnSchema describes one column to be written to a file.
type ColumnSchema struct {
	// Name is the caller-assigned name of the column.
	Name string

	// Type is the physical type of the column's values.
	Type colmd.PhysicalType

	// FixedLength is the length of each value for
	// [colmd.PhysicalTypeFixedLenByteArray] columns and zero otherwise.
	FixedLength uint32

	// MaxDefinitionLevel and MaxRepetitionLevel bound the definition and
	// repetition levels of the column's occurrences. Both are zero for flat
	// required columns.
	MaxDefinitionLevel uint16
	MaxRepetitionLevel uint16

	// Compression applied to value data. Defaults to no compression.
	Compression colmd.CompressionType

	// Encoding used for value data. The zero value selects a default based on
	// Type.
	Encoding colmd.EncodingType
}

// defaultEncoding returns the value encoding used for a physical type when
// the schema does not name one.
func defaultEncoding(ty colmd.PhysicalType) colmd.EncodingType {
	if ty == colmd.PhysicalTypeInt64 {
		return colmd.EncodingTypeIntComp
	}
	return colmd.EncodingTypePlain
}

// A Builder builds colobj files from a set of columns. Open each column with
// [Builder.OpenColumn], write batches of occurrences through the returned
// [ColumnWriter], and flush the file with [Builder.Flush].
//
// Methods on Builder are not goroutine-safe; callers are responsible for
// synchronizing calls.
type Builder struct {
	cfg     BuilderConfig
	metrics *metrics

	writers []*ColumnWriter

	state builderState
}

type builderState int

const (
	// builderStateEmpty indicates the builder is empty and ready to accept new data.
	builderStateEmpty builderState = iota

	// builderStateDirty indicates the builder has been modified since the last flush.
	builderStateDirty
)

// FlushStats summarizes a successful [Builder.Flush].
type FlushStats struct {
	Columns     int // Number of columns written.
	Rows        uint64
	Values      uint64
	OutputBytes int // Size of the built file.
}

// NewBuilder creates a new Builder. NewBuilder returns an error if
// BuilderConfig is invalid.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	metrics := newMetrics()
	metrics.ObserveConfig(cfg)

	return &Builder{
		cfg:     cfg,
		metrics: metrics,
	}, nil
}

// OpenColumn opens a new column in the builder. Columns are written to the
// file in the order they were opened. OpenColumn returns an error if the
// schema names an unsupported type or encoding combination.
func (b *Builder) OpenColumn(schema ColumnSchema) (*ColumnWriter, error) {
	if !schema.Type.Valid() {
		return nil, fmt.Errorf("%w: invalid column type %s", ErrInvalidArgument, schema.Type)
	}

	enc := schema.Encoding
	if enc == colmd.EncodingTypeInvalid {
		enc = defaultEncoding(schema.Type)
	}

	inner, err := columnar.NewColumnBuilder(schema.Name, columnar.BuilderOptions{
		PageSizeHint: int(b.cfg.TargetPageSize),
		Value:        schema.Type,
		FixedLength:  schema.FixedLength,
		Encoding:     enc,
		Compression:  schema.Compression,

		MaxDefinitionLevel: schema.MaxDefinitionLevel,
		MaxRepetitionLevel: schema.MaxRepetitionLevel,
	})
	if err != nil {
		return nil, err
	}

	writer := &ColumnWriter{
		builder: b,
		schema:  schema,
		inner:   inner,
	}
	b.writers = append(b.writers, writer)
	return writer, nil
}

func (b *Builder) estimatedSize() int {
	var size int
	for _, w := range b.writers {
		size += w.inner.EstimatedSize()
	}
	b.metrics.sizeEstimate.Set(float64(size))
	return size
}

// Flush flushes all buffered data to the buffer provided. Calling Flush can
// result in a no-op if there is no buffered data to flush.
//
// [Builder.Reset] is called after a successful Flush to discard any pending
// data and allow new data to be appended.
func (b *Builder) Flush(output *bytes.Buffer) (FlushStats, error) {
	if b.state == builderStateEmpty {
		return FlushStats{}, ErrBuilderEmpty
	}

	stats, err := b.buildObject(output)
	if err != nil {
		b.metrics.flushFailures.Inc()
		return FlushStats{}, fmt.Errorf("building object: %w", err)
	}

	b.Reset()
	return stats, nil
}

func (b *Builder) buildObject(output *bytes.Buffer) (FlushStats, error) {
	timer := prometheus.NewTimer(b.metrics.buildTime)
	defer timer.ObserveDuration()

	initialBufferSize := output.Len()

	enc := encoderPool.Get().(*encoding.Encoder)
	enc.Reset(output)
	defer encoderPool.Put(enc)

	var stats FlushStats
	for _, w := range b.writers {
		column, err := w.inner.Flush()
		if err != nil {
			return FlushStats{}, fmt.Errorf("flushing column %q: %w", w.schema.Name, err)
		}
		if err := enc.AppendColumn(column); err != nil {
			return FlushStats{}, fmt.Errorf("encoding column %q: %w", w.schema.Name, err)
		}

		stats.Columns++
		stats.Rows += column.Desc.RowsCount
		stats.Values += column.Desc.ValuesCount
	}
	if err := enc.Flush(); err != nil {
		return FlushStats{}, fmt.Errorf("encoding object: %w", err)
	}

	stats.OutputBytes = output.Len() - initialBufferSize
	b.metrics.builtSize.Observe(float64(stats.OutputBytes))
	return stats, nil
}

// Reset discards pending data and resets the builder to an empty state.
// Columns must be reopened after a Reset.
func (b *Builder) Reset() {
	b.writers = nil

	b.metrics.sizeEstimate.Set(0)
	b.state = builderStateEmpty
}

// RegisterMetrics registers metrics about the builder to report to reg.
//
// If multiple Builders are running in the same process, reg must contain
// additional labels to differentiate between them.
func (b *Builder) RegisterMetrics(reg prometheus.Registerer) error {
	return b.metrics.Register(reg)
}

// UnregisterMetrics unregisters metrics about the builder from reg.
func (b *Builder) UnregisterMetrics(reg prometheus.Registerer) {
	b.metrics.Unregister(reg)
}

// A ColumnWriter writes batches of occurrences to one column of a [Builder].
type ColumnWriter struct {
	builder *Builder
	schema  ColumnSchema
	inner   *columnar.ColumnBuilder

	occValues []columnar.Value // Reusable occurrence-aligned value buffer.
}

// WriteBatch writes a batch of occurrences whose values are densely packed:
// repLevels and defLevels hold one level per occurrence, and values holds one
// entry per occurrence whose definition level equals the column maximum, in
// occurrence order. All values are treated as non-NULL; use
// [ColumnWriter.WriteBatchSpaced] to write NULLs at the value level.
//
// WriteBatch is all-or-nothing: on error the column is left unchanged.
func (w *ColumnWriter) WriteBatch(repLevels, defLevels []uint16, values []Value) error {
	if len(repLevels) != len(defLevels) {
		return fmt.Errorf("%w: mismatched batch lengths: %d repetition levels, %d definition levels", ErrInvalidArgument, len(repLevels), len(defLevels))
	}
	if err := w.checkFull(); err != nil {
		return err
	}

	maxDef := w.schema.MaxDefinitionLevel

	var present int
	for i, def := range defLevels {
		if def > maxDef {
			return fmt.Errorf("%w: definition level %d at occurrence %d exceeds maximum %d", ErrInvalidArgument, def, i, maxDef)
		}
		if def == maxDef {
			present++
		}
	}
	if len(values) < present {
		return fmt.Errorf("%w: dense buffer has %d values, need %d", ErrInvalidArgument, len(values), present)
	}

	occValues := w.occValues[:0]
	var next int
	for _, def := range defLevels {
		if def == maxDef {
			occValues = append(occValues, values[next])
			next++
		} else {
			occValues = append(occValues, columnar.Value{})
		}
	}
	w.occValues = occValues

	if err := w.inner.Append(repLevels, defLevels, occValues); err != nil {
		return err
	}
	w.finishWrite(len(defLevels), next)
	return nil
}

// WriteBatchSpaced writes a batch of occurrences whose values are spaced out:
// spaced holds one slot per occurrence and validity one bit per occurrence,
// starting at validityOffset. An occurrence whose definition level equals the
// column maximum consults its validity bit: a set bit stores the occurrence's
// spaced slot, a clear bit stores a NULL. Occurrences with a lower definition
// level consult neither their bit nor their slot.
//
// WriteBatchSpaced returns the number of occurrences written and the number
// of non-NULL values stored. It is all-or-nothing: on error the column is
// left unchanged.
func (w *ColumnWriter) WriteBatchSpaced(repLevels, defLevels []uint16, validity ValidityBitmap, validityOffset int, spaced []Value) (levelsWritten, valuesWritten int, err error) {
	if len(repLevels) != len(defLevels) {
		return 0, 0, fmt.Errorf("%w: mismatched batch lengths: %d repetition levels, %d definition levels", ErrInvalidArgument, len(repLevels), len(defLevels))
	}
	if err := w.checkFull(); err != nil {
		return 0, 0, err
	}

	maxDef := w.schema.MaxDefinitionLevel

	// CompactSpaced validates the batch in full before producing any output,
	// keeping this method all-or-nothing.
	_, values, err := columnar.CompactSpaced(nil, spaced, defLevels, maxDef, validity, validityOffset)
	if err != nil {
		return 0, 0, err
	}

	occValues := w.occValues[:0]
	for i, def := range defLevels {
		if def == maxDef && validity.Get(validityOffset+i) {
			occValues = append(occValues, spaced[i])
		} else {
			occValues = append(occValues, columnar.Value{})
		}
	}
	w.occValues = occValues

	if err := w.inner.Append(repLevels, defLevels, occValues); err != nil {
		return 0, 0, err
	}
	w.finishWrite(len(defLevels), values)
	return len(defLevels), values, nil
}

// Rows returns the total number of occurrences written to the column.
func (w *ColumnWriter) Rows() int { return w.inner.Rows() }

func (w *ColumnWriter) checkFull() error {
	if w.builder.state != builderStateEmpty && w.builder.estimatedSize() > int(w.builder.cfg.TargetObjectSize) {
		return ErrBuilderFull
	}
	return nil
}

func (w *ColumnWriter) finishWrite(rows, values int) {
	w.builder.state = builderStateDirty
	w.builder.metrics.appendedRows.Add(float64(rows))
	w.builder.metrics.appendedValues.Add(float64(values))
	w.builder.estimatedSize()
}
