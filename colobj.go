// Package colobj holds utilities for writing and reading colobj files:
// single-file collections of columns whose occurrences carry nested
// optional/repeated structure through definition and repetition levels.
package colobj

import (
	"context"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thanos-io/objstore"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/columnar"
	"github.com/colobj/colobj/internal/encoding"
)

// Value is a single value within a column. The zero Value marks a NULL.
type Value = columnar.Value

// A ValidityBitmap marks which occurrences of a batch hold a non-NULL value,
// LSB-first within each byte.
type ValidityBitmap = columnar.ValidityBitmap

var (
	// ErrInvalidArgument is returned when buffer lengths or offsets passed to
	// a batch operation are inconsistent with each other.
	ErrInvalidArgument = columnar.ErrInvalidArgument

	// ErrOutOfRange is returned when a requested batch size is negative.
	ErrOutOfRange = columnar.ErrOutOfRange
)

// pageCacheSize is the number of decoded pages each [Object] retains.
const pageCacheSize = 128

// An Object is a read-only representation of a colobj file.
type Object struct {
	dec *encoding.Decoder

	metadata *colmd.Metadata
	columns  []*Column

	pageCache *lru.Cache[uint64, columnar.PageData]
}

// FromBucket opens an Object from the given storage bucket and path.
// FromBucket returns an error if the metadata of the Object cannot be read or
// if the provided ctx times out.
func FromBucket(ctx context.Context, bucket objstore.BucketReader, path string) (*Object, error) {
	obj := &Object{dec: encoding.BucketDecoder(bucket, path)}
	if err := obj.init(ctx); err != nil {
		return nil, err
	}
	return obj, nil
}

// FromReaderAt opens an Object from the given ReaderAt. The size argument
// specifies the size of the file in bytes. FromReaderAt returns an error if
// the metadata of the Object cannot be read.
func FromReaderAt(r io.ReaderAt, size int64) (*Object, error) {
	obj := &Object{dec: encoding.ReaderAtDecoder(r, size)}
	if err := obj.init(context.Background()); err != nil {
		return nil, err
	}
	return obj, nil
}

func (o *Object) init(ctx context.Context) error {
	metadata, err := o.dec.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}

	pageCache, err := lru.New[uint64, columnar.PageData](pageCacheSize)
	if err != nil {
		return fmt.Errorf("creating page cache: %w", err)
	}

	columns := make([]*Column, 0, len(metadata.Columns))
	for _, desc := range metadata.Columns {
		columns = append(columns, &Column{obj: o, desc: desc})
	}

	o.metadata = metadata
	o.columns = columns
	o.pageCache = pageCache
	return nil
}

// Columns returns the list of columns available in the Object. The returned
// slice must not be mutated.
func (o *Object) Columns() []*Column { return o.columns }

// readPage returns the data for a page, consulting the page cache first.
func (o *Object) readPage(ctx context.Context, page *colmd.PageDesc) (columnar.PageData, error) {
	if data, ok := o.pageCache.Get(page.DataOffset); ok {
		return data, nil
	}

	data, err := o.dec.ReadPage(ctx, page)
	if err != nil {
		return nil, err
	}
	o.pageCache.Add(page.DataOffset, data)
	return data, nil
}

// A Column is one column chunk within an [Object].
type Column struct {
	obj  *Object
	desc *colmd.ColumnDesc
}

// Name returns the caller-assigned name of the column.
func (c *Column) Name() string { return c.desc.Name }

// Type returns the physical type of the column's values.
func (c *Column) Type() colmd.PhysicalType { return c.desc.Type }

// Desc returns the full metadata of the column. The returned value must not
// be mutated.
func (c *Column) Desc() *colmd.ColumnDesc { return c.desc }

// Reader creates a [ColumnReader] that reads the column's occurrences from
// the start. ColumnReaders are not safe for concurrent use; create one reader
// per goroutine.
func (c *Column) Reader() *ColumnReader {
	return &ColumnReader{
		inner: columnar.NewColumnReader(&decoderColumn{obj: c.obj, desc: c.desc}),
	}
}

// decoderColumn adapts a column of an [Object] to [columnar.Column], reading
// page lists and page data on demand.
type decoderColumn struct {
	obj  *Object
	desc *colmd.ColumnDesc
}

var _ columnar.Column = (*decoderColumn)(nil)

func (c *decoderColumn) ColumnDesc() *colmd.ColumnDesc { return c.desc }

func (c *decoderColumn) ListPages(ctx context.Context) (columnar.Pages, error) {
	descs, err := c.obj.dec.Pages(ctx, c.desc)
	if err != nil {
		return nil, err
	}

	pages := make(columnar.Pages, 0, len(descs))
	for _, desc := range descs {
		pages = append(pages, &decoderPage{obj: c.obj, desc: desc})
	}
	return pages, nil
}

type decoderPage struct {
	obj  *Object
	desc *colmd.PageDesc
}

var _ columnar.Page = (*decoderPage)(nil)

func (p *decoderPage) PageDesc() *colmd.PageDesc { return p.desc }

func (p *decoderPage) ReadPage(ctx context.Context) (columnar.PageData, error) {
	return p.obj.readPage(ctx, p.desc)
}

// A ColumnReader reads back the occurrences of a column: their repetition and
// definition levels and their values, either densely packed or spaced with a
// validity bitmap.
type ColumnReader struct {
	inner *columnar.ColumnReader
}

// ReadBatch reads up to batchSize occurrences, storing levels into repLevels
// and defLevels and non-NULL values tightly packed into values. It returns
// the number of occurrences read and the number of dense values stored.
//
// ReadBatch returns ErrOutOfRange if batchSize is negative. Reaching the end
// of the column is not an error: ReadBatch returns fewer occurrences than
// requested, and then 0, [io.EOF] once no occurrences remain.
func (r *ColumnReader) ReadBatch(ctx context.Context, batchSize int, repLevels, defLevels []uint16, values []Value) (levelsRead, valuesRead int, err error) {
	return r.inner.ReadBatch(ctx, batchSize, repLevels, defLevels, values)
}

// ReadBatchSpaced reads up to batchSize occurrences like
// [ColumnReader.ReadBatch], but stores values spaced out: spaced receives one
// slot per occurrence, and bit validityOffset+i of validity is set when
// occurrence i holds a non-NULL value.
func (r *ColumnReader) ReadBatchSpaced(ctx context.Context, batchSize int, repLevels, defLevels []uint16, validity ValidityBitmap, validityOffset int, spaced []Value) (levelsRead, valuesRead int, err error) {
	return r.inner.ReadBatchSpaced(ctx, batchSize, repLevels, defLevels, validity, validityOffset, spaced)
}

// Seek implements [io.Seeker], addressing occurrences by their absolute
// index within the column.
func (r *ColumnReader) Seek(offset int64, whence int) (int64, error) {
	return r.inner.Seek(offset, whence)
}

// Close releases resources held by the reader.
func (r *ColumnReader) Close() error { return r.inner.Close() }
