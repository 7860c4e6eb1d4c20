package columnar

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/internal/bufpool"
	"github.com/colobj/colobj/internal/streamio"
)

// PageData holds the raw data for a page. Data is formatted as:
//
//	<uvarint(rep-levels-size)> <rep-levels>
//	<uvarint(def-levels-size)> <def-levels>
//	<uvarint(presence-size)> <presence>
//	<values-data>
//
// rep-levels and def-levels are bitmap-encoded sequences holding one
// repetition and one definition level per occurrence. presence is a
// bitmap-encoded sequence of booleans with one entry per occurrence whose
// definition level equals the column's maximum, describing whether that
// occurrence holds a value (1) or is NULL (0). The level and presence streams
// are always stored uncompressed.
//
// values-data is then the encoded and optionally compressed sequence of
// non-NULL values.
type PageData []byte

// A Page holds an encoded and optionally compressed sequence of [Value]s
// within a column.
type Page interface {
	// PageDesc returns the metadata for the Page.
	PageDesc() *colmd.PageDesc

	// ReadPage returns the [PageData] for the Page.
	ReadPage(ctx context.Context) (PageData, error)
}

// Pages is a set of [Page]s.
type Pages []Page

// MemPage holds an encoded (and optionally compressed) sequence of [Value]
// entries of a common type. Use [ColumnBuilder] to construct sets of pages.
type MemPage struct {
	Desc colmd.PageDesc // Description of the page.
	Data PageData       // Data for the page.
}

var _ Page = (*MemPage)(nil)

// PageDesc implements [Page] and returns p.Desc.
func (p *MemPage) PageDesc() *colmd.PageDesc {
	return &p.Desc
}

// ReadPage implements [Page] and returns p.Data.
func (p *MemPage) ReadPage(_ context.Context) (PageData, error) {
	return p.Data, nil
}

var checksumTable = crc32.MakeTable(crc32.Castagnoli)

// openedPage holds encoded (but decompressed) data for a page.
type openedPage struct {
	RepData      []byte
	DefData      []byte
	PresenceData []byte
	ValueData    []byte
}

// open the page for decoding. The page is validated for its CRC32 checksum.
//
// The page value data will be decompressed with the given compression type.
// After the page has been fully consumed, call the returned io.Closer to
// release resources associated with the page. The openedPage must not be
// used after closing.
func (p *MemPage) open(compression colmd.CompressionType) (openedPage, io.Closer, error) {
	if actual := crc32.Checksum(p.Data, checksumTable); p.Desc.Crc32 != actual {
		return openedPage{}, nil, fmt.Errorf("invalid CRC32 checksum %x, expected %x", actual, p.Desc.Crc32)
	}

	rest := []byte(p.Data)

	var streams [3][]byte
	for i := range streams {
		size, n := binary.Uvarint(rest)
		if n <= 0 || uint64(len(rest)-n) < size {
			return openedPage{}, nil, fmt.Errorf("reading page stream size: %w", io.ErrUnexpectedEOF)
		}
		streams[i] = rest[n : n+int(size)]
		rest = rest[n+int(size):]
	}

	var (
		repData              = streams[0]
		defData              = streams[1]
		presenceData         = streams[2]
		compressedValuesData = rest
	)

	switch compression {
	case colmd.CompressionTypeNone:
		// Data is already uncompressed; nothing to do.
		return openedPage{
			RepData:      repData,
			DefData:      defData,
			PresenceData: presenceData,
			ValueData:    compressedValuesData,
		}, io.NopCloser(nil), nil

	case colmd.CompressionTypeSnappy:
		sr := snappyPool.Get().(*snappy.Reader)
		sr.Reset(bytes.NewReader(compressedValuesData))
		defer func() {
			sr.Reset(nil) // Release references to the buffer.
			snappyPool.Put(sr)
		}()

		decompressed := bufpool.Get(int(p.Desc.UncompressedSize))
		if _, err := io.Copy(decompressed, sr); err != nil {
			bufpool.Put(decompressed)
			return openedPage{}, nil, err
		}

		closer := &closerFunc{
			onClose: func() error {
				bufpool.Put(decompressed)
				return nil
			},
		}

		return openedPage{
			RepData:      repData,
			DefData:      defData,
			PresenceData: presenceData,
			ValueData:    decompressed.Bytes(),
		}, closer, nil

	case colmd.CompressionTypeZstd:
		zr, err := getZstdDecoder()
		if err != nil {
			return openedPage{}, nil, err
		}

		decompressed := bufpool.Get(int(p.Desc.UncompressedSize))

		// We use DecodeAll which supports concurrent calls with the same
		// decoder, unlike Decode.
		buf, err := zr.DecodeAll(compressedValuesData, decompressed.Bytes())
		if err != nil {
			bufpool.Put(decompressed)
			return openedPage{}, nil, err
		}

		closer := &closerFunc{
			onClose: func() error {
				bufpool.Put(decompressed)
				return nil
			},
		}

		return openedPage{
			RepData:      repData,
			DefData:      defData,
			PresenceData: presenceData,
			ValueData:    buf,
		}, closer, nil

	default:
		// We do *not* want to panic here, as we may be trying to read a page
		// from a newer format.
		return openedPage{}, nil, fmt.Errorf("unknown compression type %q", compression)
	}
}

// reader returns readers for decompressed page data. reader returns an error
// if the CRC32 fails to validate.
func (p *MemPage) reader(compression colmd.CompressionType) (rep, def, presence streamio.Reader, values io.ReadCloser, err error) {
	opened, closer, err := p.open(compression)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	rep = bytes.NewReader(opened.RepData)
	def = bytes.NewReader(opened.DefData)
	presence = bytes.NewReader(opened.PresenceData)
	values = &closerFunc{
		Reader:  bytes.NewReader(opened.ValueData),
		onClose: closer.Close,
	}
	return rep, def, presence, values, nil
}

var snappyPool = sync.Pool{
	New: func() any {
		return snappy.NewReader(nil)
	},
}

type closerFunc struct {
	io.Reader
	onClose func() error
}

func (c *closerFunc) Close() error { return c.onClose() }

// getZstdDecoder lazily initializes a global Zstd decoder. It is only safe to
// use DecodeAll concurrently.
var getZstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	// Using a concurrency of 0 will use GOMAXPROCS workers.
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})
