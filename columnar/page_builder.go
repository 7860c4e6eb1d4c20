package columnar

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/internal/streamio"
)

// pageBuilder accumulates occurrences of a column in memory until reaching a
// configurable size limit. A [MemPage] can then be created from a pageBuilder
// by calling [pageBuilder.Flush].
type pageBuilder struct {
	// Each pageBuilder writes four streams of data.
	//
	// The first two streams hold the repetition and definition levels, one
	// entry per occurrence. The third stream is a presence bitmap with one
	// entry per occurrence whose definition level reaches the maximum,
	// telling readers which of those occurrences hold a value (1) rather
	// than a NULL (0). All three streams use bitmap encoding regardless of
	// the encoding type used for values, and are stored uncompressed.
	//
	// The fourth stream is the encoded set of non-NULL values, written with
	// the configured compression type, if any.
	//
	// To orchestrate building the four streams, we have a few components:
	//
	// * The final buffers which hold encoded and potentially compressed data.
	// * The writer performing compression for values.
	// * The encoders that write levels, presence entries, and values.

	opts BuilderOptions

	repBuffer      *bytes.Buffer // repBuffer holds encoded repetition levels.
	defBuffer      *bytes.Buffer // defBuffer holds encoded definition levels.
	presenceBuffer *bytes.Buffer // presenceBuffer holds the encoded presence bitmap.
	valuesBuffer   *bytes.Buffer // valuesBuffer holds encoded and optionally compressed values.

	valuesWriter *compressWriter // Compresses data and writes to valuesBuffer.

	repEnc      *bitmapEncoder
	defEnc      *bitmapEncoder
	presenceEnc *bitmapEncoder
	valuesEnc   valueEncoder

	rows   int // Number of occurrences appended to the builder.
	values int // Number of non-NULL values appended to the builder.
}

// newPageBuilder creates a new pageBuilder that stores a sequence of
// occurrences. newPageBuilder returns an error if there is no encoder
// available for the combination of opts.Value and opts.Encoding.
func newPageBuilder(opts BuilderOptions) (*pageBuilder, error) {
	var (
		repBuffer      = bytes.NewBuffer(nil)
		defBuffer      = bytes.NewBuffer(nil)
		presenceBuffer = bytes.NewBuffer(nil)
		valuesBuffer   = bytes.NewBuffer(make([]byte, 0, opts.PageSizeHint))

		valuesWriter = newCompressWriter(valuesBuffer, opts.Compression, opts.CompressionOptions)
	)

	valuesEnc, ok := newValueEncoder(opts.Value, opts.Encoding, valuesWriter)
	if !ok {
		return nil, fmt.Errorf("no encoder available for %s/%s", opts.Value, opts.Encoding)
	}

	return &pageBuilder{
		opts: opts,

		repBuffer:      repBuffer,
		defBuffer:      defBuffer,
		presenceBuffer: presenceBuffer,
		valuesBuffer:   valuesBuffer,

		valuesWriter: valuesWriter,

		repEnc:      newBitmapEncoder(repBuffer),
		defEnc:      newBitmapEncoder(defBuffer),
		presenceEnc: newBitmapEncoder(presenceBuffer),
		valuesEnc:   valuesEnc,
	}, nil
}

// Append appends one occurrence into the pageBuilder. An occurrence whose
// definition level is below the column maximum carries no value; an occurrence
// at the maximum carries value, which may be the zero [Value] to mark a NULL.
// Append returns true if the occurrence was appended; false if the
// pageBuilder is full.
func (b *pageBuilder) Append(repLevel, defLevel uint16, value Value) bool {
	// We can't accurately know whether adding the occurrence would tip us over
	// the page size: we don't know the current state of the encoders and we
	// don't know for sure how much space value will fill.
	//
	// We use a rough estimate which will tend to overshoot the page size,
	// making sure we rarely go over.
	if sz := b.EstimatedSize(); sz > 0 && sz+occurrenceSize(value) > b.opts.PageSizeHint {
		return false
	}

	// The following calls won't fail; they only return errors when the
	// underlying writers fail, which ours cannot.
	if err := b.repEnc.Encode(uint64(repLevel)); err != nil {
		panic(fmt.Sprintf("pageBuilder.Append: encoding repetition level: %v", err))
	}
	if err := b.defEnc.Encode(uint64(defLevel)); err != nil {
		panic(fmt.Sprintf("pageBuilder.Append: encoding definition level: %v", err))
	}

	if defLevel == b.opts.MaxDefinitionLevel {
		var present uint64
		if !value.IsNil() {
			present = 1
		}
		if err := b.presenceEnc.Encode(present); err != nil {
			panic(fmt.Sprintf("pageBuilder.Append: encoding presence bitmap entry: %v", err))
		}
		if present == 1 {
			if err := b.valuesEnc.Encode(value); err != nil {
				panic(fmt.Sprintf("pageBuilder.Append: encoding value: %v", err))
			}
			b.values++
		}
	}

	b.rows++
	return true
}

// occurrenceSize estimates the encoded cost of one occurrence: two level
// entries, a presence entry, and the value itself.
func occurrenceSize(v Value) int {
	size := 3
	switch v.Type() {
	case colmd.PhysicalTypeInt32:
		size += streamio.VarintSize(int64(v.Int32()))
	case colmd.PhysicalTypeInt64:
		// Assuming that int64s are written as varints.
		size += streamio.VarintSize(v.Int64())
	case colmd.PhysicalTypeFloat32:
		size += 4
	case colmd.PhysicalTypeFloat64:
		size += 8
	case colmd.PhysicalTypeBoolean:
		size++
	case colmd.PhysicalTypeByteArray, colmd.PhysicalTypeFixedLenByteArray:
		data := v.ByteArray()
		size += streamio.UvarintSize(uint64(len(data))) + len(data)
	}
	return size
}

// EstimatedSize returns the estimated uncompressed size of the builder in
// bytes.
func (b *pageBuilder) EstimatedSize() int {
	// This estimate doesn't account for any values in encoders which haven't
	// been flushed yet. However, encoder buffers are usually small enough that
	// we wouldn't massively overshoot our estimate.
	return b.repBuffer.Len() + b.defBuffer.Len() + b.presenceBuffer.Len() + b.valuesWriter.BytesWritten()
}

// Rows returns the number of occurrences appended to the pageBuilder.
func (b *pageBuilder) Rows() int { return b.rows }

// Values returns the number of non-NULL values appended to the pageBuilder.
func (b *pageBuilder) Values() int { return b.values }

// Flush converts data in pageBuilder into a [MemPage], and returns it.
// Afterwards, pageBuilder is reset to a fresh state and can be reused. Flush
// returns an error if the pageBuilder is empty.
func (b *pageBuilder) Flush() (*MemPage, error) {
	if b.rows == 0 {
		return nil, fmt.Errorf("no data to flush")
	}

	// Before we can build the page we need to finish flushing our encoders
	// and writers.
	if err := b.repEnc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing repetition level encoder: %w", err)
	} else if err := b.defEnc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing definition level encoder: %w", err)
	} else if err := b.presenceEnc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing presence encoder: %w", err)
	} else if err := b.valuesEnc.Flush(); err != nil {
		return nil, fmt.Errorf("flushing values encoder: %w", err)
	} else if err := b.valuesWriter.Flush(); err != nil {
		return nil, fmt.Errorf("flushing values writer: %w", err)
	}

	// The final data of our page is the concatenation of the level streams,
	// the presence bitmap, and the values. To denote when one stream ends and
	// the next begins, each of the uncompressed streams is prepended with its
	// size as a uvarint. See the doc comment of [PageData] for more
	// information.
	var (
		repSize      = b.repBuffer.Len()
		defSize      = b.defBuffer.Len()
		presenceSize = b.presenceBuffer.Len()
		valuesSize   = b.valuesBuffer.Len()

		headerSize = streamio.UvarintSize(uint64(repSize)) +
			streamio.UvarintSize(uint64(defSize)) +
			streamio.UvarintSize(uint64(presenceSize))

		finalData = bytes.NewBuffer(make([]byte, 0, headerSize+repSize+defSize+presenceSize+valuesSize))
	)

	if err := streamio.WriteUvarint(finalData, uint64(repSize)); err != nil {
		return nil, fmt.Errorf("writing repetition level stream size: %w", err)
	} else if _, err := b.repBuffer.WriteTo(finalData); err != nil {
		return nil, fmt.Errorf("writing repetition level stream: %w", err)
	} else if err := streamio.WriteUvarint(finalData, uint64(defSize)); err != nil {
		return nil, fmt.Errorf("writing definition level stream size: %w", err)
	} else if _, err := b.defBuffer.WriteTo(finalData); err != nil {
		return nil, fmt.Errorf("writing definition level stream: %w", err)
	} else if err := streamio.WriteUvarint(finalData, uint64(presenceSize)); err != nil {
		return nil, fmt.Errorf("writing presence stream size: %w", err)
	} else if _, err := b.presenceBuffer.WriteTo(finalData); err != nil {
		return nil, fmt.Errorf("writing presence stream: %w", err)
	} else if _, err := b.valuesBuffer.WriteTo(finalData); err != nil {
		return nil, fmt.Errorf("writing values stream: %w", err)
	}

	checksum := crc32.Checksum(finalData.Bytes(), checksumTable)

	page := MemPage{
		Desc: colmd.PageDesc{
			UncompressedSize: uint64(headerSize + repSize + defSize + presenceSize + b.valuesWriter.BytesWritten()),
			CompressedSize:   uint64(finalData.Len()),
			Crc32:            checksum,
			RowsCount:        uint64(b.rows),
			ValuesCount:      uint64(b.values),

			Encoding: b.opts.Encoding,
		},

		Data: finalData.Bytes(),
	}

	b.Reset() // Reset state before returning.
	return &page, nil
}

// Reset resets the pageBuilder to a fresh state, allowing it to be reused.
func (b *pageBuilder) Reset() {
	b.repBuffer.Reset()
	b.defBuffer.Reset()
	b.presenceBuffer.Reset()
	b.valuesBuffer.Reset()
	b.valuesWriter.Reset(b.valuesBuffer)
	b.repEnc.Reset(b.repBuffer)
	b.defEnc.Reset(b.defBuffer)
	b.presenceEnc.Reset(b.presenceBuffer)
	b.valuesEnc.Reset(b.valuesWriter)
	b.rows = 0
	b.values = 0
}
