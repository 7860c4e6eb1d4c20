package columnar

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/colobj/colobj/internal/bufpool"
)

// A ColumnReader reads occurrences of a [Column] back in order, reassembling
// the level, presence, and value streams of each page.
type ColumnReader struct {
	col   Column
	ready bool // Whether pages is populated.

	pages Pages

	row  int64 // Absolute occurrence index of the next occurrence to read.
	seek int64 // Absolute occurrence index to read from on the next call.

	// Open page state. A page is open while pageRemaining > 0.
	pageIdx       int // Index of the page to open next.
	pageRemaining int // Occurrences left to read in the open page.

	repDec      *bitmapDecoder
	defDec      *bitmapDecoder
	presenceDec *bitmapDecoder
	valuesDec   valueDecoder

	valuesBuf   *bufio.Reader
	valuesClose io.Closer

	levelBuf [1]uint64
	valueBuf [1]Value
}

// NewColumnReader creates a new ColumnReader that reads from col.
func NewColumnReader(col Column) *ColumnReader {
	return &ColumnReader{col: col}
}

// ReadBatch reads up to batchSize occurrences from the column, storing their
// repetition and definition levels into repLevels and defLevels, and their
// non-NULL values tightly packed into values. It returns the number of
// occurrences read and the number of dense values stored; the latter never
// exceeds the former. Each of the three buffers must hold at least batchSize
// entries.
//
// Reaching the end of the column is not an error: ReadBatch returns fewer
// occurrences than requested, and then 0, [io.EOF] once no occurrences
// remain.
func (r *ColumnReader) ReadBatch(ctx context.Context, batchSize int, repLevels, defLevels []uint16, values []Value) (levelsRead, valuesRead int, err error) {
	if batchSize < 0 {
		return 0, 0, fmt.Errorf("%w: negative batch size %d", ErrOutOfRange, batchSize)
	}
	if len(repLevels) < batchSize || len(defLevels) < batchSize || len(values) < batchSize {
		return 0, 0, fmt.Errorf("%w: batch buffers hold %d/%d/%d entries, need %d", ErrInvalidArgument, len(repLevels), len(defLevels), len(values), batchSize)
	}

	if err := r.prepare(ctx); err != nil {
		return 0, 0, err
	}

	maxDef := uint16(r.col.ColumnDesc().MaxDefinitionLevel)

	for levelsRead < batchSize {
		rep, def, value, err := r.next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return levelsRead, valuesRead, err
		}

		repLevels[levelsRead] = rep
		defLevels[levelsRead] = def
		levelsRead++

		if def == maxDef && !value.IsNil() {
			values[valuesRead] = value
			valuesRead++
		}
	}

	r.row += int64(levelsRead)
	r.seek = r.row

	if levelsRead == 0 && batchSize > 0 {
		return 0, 0, io.EOF
	}
	return levelsRead, valuesRead, nil
}

// ReadBatchSpaced reads up to batchSize occurrences like
// [ColumnReader.ReadBatch], but leaves values spaced out: spaced receives one
// slot per occurrence, and bit validityOffset+i of validity is set when
// occurrence i holds a non-NULL value. Slots at occurrences without a value
// are set to the zero [Value]. The returned value count is the number of set
// bits.
func (r *ColumnReader) ReadBatchSpaced(ctx context.Context, batchSize int, repLevels, defLevels []uint16, validity ValidityBitmap, validityOffset int, spaced []Value) (levelsRead, valuesRead int, err error) {
	if batchSize < 0 {
		return 0, 0, fmt.Errorf("%w: negative batch size %d", ErrOutOfRange, batchSize)
	}
	if len(repLevels) < batchSize || len(defLevels) < batchSize || len(spaced) < batchSize {
		return 0, 0, fmt.Errorf("%w: batch buffers hold %d/%d/%d entries, need %d", ErrInvalidArgument, len(repLevels), len(defLevels), len(spaced), batchSize)
	}
	if validityOffset < 0 {
		return 0, 0, fmt.Errorf("%w: negative validity offset %d", ErrInvalidArgument, validityOffset)
	}
	if validityOffset+batchSize > validity.Bits() {
		return 0, 0, fmt.Errorf("%w: validity bitmap has %d bits, need %d", ErrInvalidArgument, validity.Bits(), validityOffset+batchSize)
	}

	if err := r.prepare(ctx); err != nil {
		return 0, 0, err
	}

	maxDef := uint16(r.col.ColumnDesc().MaxDefinitionLevel)

	for levelsRead < batchSize {
		rep, def, value, err := r.next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return levelsRead, valuesRead, err
		}

		repLevels[levelsRead] = rep
		defLevels[levelsRead] = def

		present := def == maxDef && !value.IsNil()
		validity.Set(validityOffset+levelsRead, present)
		spaced[levelsRead] = value
		levelsRead++
		if present {
			valuesRead++
		}
	}

	r.row += int64(levelsRead)
	r.seek = r.row

	if levelsRead == 0 && batchSize > 0 {
		return 0, 0, io.EOF
	}
	return levelsRead, valuesRead, nil
}

// prepare lists pages on first use and repositions the reader when a Seek
// moved it since the last read.
func (r *ColumnReader) prepare(ctx context.Context) error {
	if !r.ready {
		pages, err := r.col.ListPages(ctx)
		if err != nil {
			return fmt.Errorf("listing pages: %w", err)
		}
		r.pages = pages
		r.ready = true
	}

	if r.seek == r.row {
		return nil
	}
	if r.seek < r.row {
		// Moving backwards requires restarting from the first page.
		r.closePage()
		r.pageIdx = 0
		r.row = 0
	}
	for r.row < r.seek {
		if _, _, _, err := r.next(ctx); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		r.row++
	}
	r.seek = r.row
	return nil
}

// next returns the levels and value of the next occurrence. Occurrences whose
// definition level is below the column maximum, and NULL occurrences, return
// the zero [Value]. next returns io.EOF once all pages are exhausted.
func (r *ColumnReader) next(ctx context.Context) (repLevel, defLevel uint16, value Value, err error) {
	for r.pageRemaining == 0 {
		if err := r.openPage(ctx); err != nil {
			return 0, 0, Value{}, err
		}
	}

	rep, err := r.decodeLevel(r.repDec)
	if err != nil {
		return 0, 0, Value{}, fmt.Errorf("decoding repetition level: %w", err)
	}
	def, err := r.decodeLevel(r.defDec)
	if err != nil {
		return 0, 0, Value{}, fmt.Errorf("decoding definition level: %w", err)
	}

	maxDef := uint16(r.col.ColumnDesc().MaxDefinitionLevel)

	if def == maxDef {
		present, err := r.decodeLevel(r.presenceDec)
		if err != nil {
			return 0, 0, Value{}, fmt.Errorf("decoding presence entry: %w", err)
		}
		if present != 0 {
			if _, err := r.valuesDec.Decode(r.valueBuf[:]); err != nil {
				return 0, 0, Value{}, fmt.Errorf("decoding value: %w", unexpectedEOF(err))
			}
			value = r.valueBuf[0]
		}
	}

	r.pageRemaining--
	if r.pageRemaining == 0 {
		r.closePage()
	}
	return rep, def, value, nil
}

// decodeLevel decodes a single entry from a level or presence stream. The
// stream ending before the page's occurrence count is exhausted indicates a
// truncated page.
func (r *ColumnReader) decodeLevel(dec *bitmapDecoder) (uint16, error) {
	if _, err := dec.Decode(r.levelBuf[:]); err != nil {
		return 0, unexpectedEOF(err)
	}
	return uint16(r.levelBuf[0]), nil
}

// openPage opens the next page for reading, returning io.EOF when no pages
// remain.
func (r *ColumnReader) openPage(ctx context.Context) error {
	if r.pageIdx >= len(r.pages) {
		return io.EOF
	}

	page := r.pages[r.pageIdx]
	data, err := page.ReadPage(ctx)
	if err != nil {
		return fmt.Errorf("reading page: %w", err)
	}

	desc := r.col.ColumnDesc()

	mem := MemPage{Desc: *page.PageDesc(), Data: data}
	rep, def, presence, values, err := mem.reader(desc.Compression)
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}

	if r.repDec == nil {
		r.repDec = newBitmapDecoder(rep)
		r.defDec = newBitmapDecoder(def)
		r.presenceDec = newBitmapDecoder(presence)
	} else {
		r.repDec.Reset(rep)
		r.defDec.Reset(def)
		r.presenceDec.Reset(presence)
	}

	r.valuesBuf = bufpool.GetReader(values)
	r.valuesClose = values

	if r.valuesDec == nil {
		dec, ok := newValueDecoder(desc.Type, mem.Desc.Encoding, r.valuesBuf)
		if !ok {
			r.closePage()
			return fmt.Errorf("no decoder available for %s/%s", desc.Type, mem.Desc.Encoding)
		}
		r.valuesDec = dec
	} else {
		if r.valuesDec.EncodingType() != mem.Desc.Encoding {
			r.closePage()
			return fmt.Errorf("%w: page encoding %s differs from column encoding %s", ErrInvalidArgument, mem.Desc.Encoding, r.valuesDec.EncodingType())
		}
		r.valuesDec.Reset(r.valuesBuf)
	}

	r.pageRemaining = int(mem.Desc.RowsCount)
	r.pageIdx++

	if r.pageRemaining == 0 {
		r.closePage()
	}
	return nil
}

// closePage releases resources held for the open page, if any.
func (r *ColumnReader) closePage() {
	if r.valuesBuf != nil {
		bufpool.PutReader(r.valuesBuf)
		r.valuesBuf = nil
	}
	if r.valuesClose != nil {
		_ = r.valuesClose.Close()
		r.valuesClose = nil
	}
	r.pageRemaining = 0
}

// Seek implements [io.Seeker], addressing occurrences by their absolute
// index. Seeking backwards restarts decoding from the first page on the next
// read.
func (r *ColumnReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.seek = offset
	case io.SeekCurrent:
		r.seek += offset
	case io.SeekEnd:
		r.seek = int64(r.col.ColumnDesc().RowsCount) + offset
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", ErrInvalidArgument, whence)
	}
	if r.seek < 0 {
		r.seek = 0
		return 0, fmt.Errorf("%w: negative seek offset", ErrInvalidArgument)
	}
	return r.seek, nil
}

// Reset discards any state and resets the ColumnReader to read from col. This
// permits reusing a ColumnReader rather than allocating a new one.
func (r *ColumnReader) Reset(col Column) {
	r.closePage()
	r.col = col
	r.ready = false
	r.pages = nil
	r.row = 0
	r.seek = 0
	r.pageIdx = 0
}

// Close releases resources held by the ColumnReader. Closed ColumnReaders can
// be reused by calling [ColumnReader.Reset].
func (r *ColumnReader) Close() error {
	r.closePage()
	return nil
}
