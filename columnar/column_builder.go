package columnar

import (
	"fmt"

	"github.com/colobj/colobj/colmd"
)

// BuilderOptions configures common settings for building a column.
type BuilderOptions struct {
	// PageSizeHint is the soft limit for the size of a page within a column.
	PageSizeHint int

	// Value is the physical type of values in the column.
	Value colmd.PhysicalType

	// FixedLength is the length of each value for
	// [colmd.PhysicalTypeFixedLenByteArray] columns and zero otherwise.
	FixedLength uint32

	// Encoding is the encoding used for values in the column.
	Encoding colmd.EncodingType

	// Compression is the compression applied to value data in the column's
	// pages.
	Compression colmd.CompressionType

	// CompressionOptions customizes the compressor.
	CompressionOptions CompressionOptions

	// MaxDefinitionLevel and MaxRepetitionLevel bound the definition and
	// repetition levels of every occurrence appended to the column. Both are
	// zero for flat required columns.
	MaxDefinitionLevel uint16
	MaxRepetitionLevel uint16
}

// A ColumnBuilder accumulates a sequence of occurrences, cutting a new page
// whenever the active one reaches the configured size hint. Call
// [ColumnBuilder.Flush] to produce the final [MemColumn].
type ColumnBuilder struct {
	name string
	opts BuilderOptions

	rows   int // Total number of occurrences in the column.
	values int // Total number of non-NULL values in the column.

	pages   []*MemPage
	builder *pageBuilder
}

// NewColumnBuilder creates a new ColumnBuilder for a column named name.
// NewColumnBuilder returns an error if the combination of opts.Value and
// opts.Encoding is unsupported.
func NewColumnBuilder(name string, opts BuilderOptions) (*ColumnBuilder, error) {
	builder, err := newPageBuilder(opts)
	if err != nil {
		return nil, fmt.Errorf("creating page builder: %w", err)
	}

	return &ColumnBuilder{
		name: name,
		opts: opts,

		builder: builder,
	}, nil
}

// Append appends a batch of occurrences to the column. repLevels and
// defLevels hold one level per occurrence, and values one entry per
// occurrence: entries at occurrences whose definition level is below the
// column maximum are ignored, and the zero [Value] at an occurrence whose
// definition level reaches the maximum marks a NULL.
//
// Append validates the batch before appending anything, so on error the
// column is left unchanged.
func (cb *ColumnBuilder) Append(repLevels, defLevels []uint16, values []Value) error {
	if len(repLevels) != len(defLevels) || len(defLevels) != len(values) {
		return fmt.Errorf("%w: mismatched batch lengths: %d repetition levels, %d definition levels, %d values", ErrInvalidArgument, len(repLevels), len(defLevels), len(values))
	}

	for i := range defLevels {
		if defLevels[i] > cb.opts.MaxDefinitionLevel {
			return fmt.Errorf("%w: definition level %d at occurrence %d exceeds maximum %d", ErrInvalidArgument, defLevels[i], i, cb.opts.MaxDefinitionLevel)
		}
		if repLevels[i] > cb.opts.MaxRepetitionLevel {
			return fmt.Errorf("%w: repetition level %d at occurrence %d exceeds maximum %d", ErrInvalidArgument, repLevels[i], i, cb.opts.MaxRepetitionLevel)
		}
		if defLevels[i] == cb.opts.MaxDefinitionLevel && !values[i].IsNil() && values[i].Type() != cb.opts.Value {
			return fmt.Errorf("%w: value of type %s at occurrence %d in %s column", ErrInvalidArgument, values[i].Type(), i, cb.opts.Value)
		}
	}

	for i := range defLevels {
		cb.append(repLevels[i], defLevels[i], values[i])
	}
	return nil
}

func (cb *ColumnBuilder) append(repLevel, defLevel uint16, value Value) {
	// Two attempts: if the page is full, flush and try again on the fresh
	// page. The second attempt never fails since the page is empty.
	for attempt := 0; attempt < 2; attempt++ {
		if cb.builder.Append(repLevel, defLevel, value) {
			cb.rows++
			if defLevel == cb.opts.MaxDefinitionLevel && !value.IsNil() {
				cb.values++
			}
			return
		}
		cb.flushPage()
	}
	panic("ColumnBuilder.append: failed to append occurrence to fresh page")
}

// EstimatedSize returns the estimated size of all data appended to the
// column so far, in bytes.
func (cb *ColumnBuilder) EstimatedSize() int {
	var size int
	for _, p := range cb.pages {
		size += len(p.Data)
	}
	size += cb.builder.EstimatedSize()
	return size
}

// Rows returns the total number of occurrences appended to the column.
func (cb *ColumnBuilder) Rows() int { return cb.rows }

// Flush converts the accumulated data into a [MemColumn]. Afterwards, the
// ColumnBuilder is reset to a fresh state and can be reused.
func (cb *ColumnBuilder) Flush() (*MemColumn, error) {
	if cb.builder.Rows() > 0 {
		cb.flushPage()
	}

	column := MemColumn{
		Desc: colmd.ColumnDesc{
			Name:        cb.name,
			Type:        cb.opts.Value,
			FixedLength: cb.opts.FixedLength,

			MaxDefinitionLevel: uint32(cb.opts.MaxDefinitionLevel),
			MaxRepetitionLevel: uint32(cb.opts.MaxRepetitionLevel),

			Compression: cb.opts.Compression,
		},

		Pages: cb.pages,
	}

	for _, page := range cb.pages {
		column.Desc.RowsCount += page.Desc.RowsCount
		column.Desc.ValuesCount += page.Desc.ValuesCount
		column.Desc.CompressedSize += page.Desc.CompressedSize
		column.Desc.UncompressedSize += page.Desc.UncompressedSize
	}

	cb.Reset()
	return &column, nil
}

func (cb *ColumnBuilder) flushPage() {
	page, err := cb.builder.Flush()
	if err != nil {
		panic(fmt.Sprintf("ColumnBuilder.flushPage: flushing page: %v", err))
	}
	cb.pages = append(cb.pages, page)
}

// Reset resets the ColumnBuilder to a fresh state, allowing it to be reused.
func (cb *ColumnBuilder) Reset() {
	cb.rows = 0
	cb.values = 0
	cb.pages = nil
	cb.builder.Reset()
}
