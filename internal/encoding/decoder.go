package encoding

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/columnar"
	"github.com/colobj/colobj/internal/bufpool"
	"github.com/colobj/colobj/internal/streamio"
)

// rangeReader is an interface that can read a range of bytes from an object.
type rangeReader interface {
	// Size returns the full size of the object.
	Size(ctx context.Context) (int64, error)

	// ReadRange returns a reader over a range of bytes. Callers may create
	// multiple concurrent instances of ReadRange.
	ReadRange(ctx context.Context, offset int64, length int64) (io.ReadCloser, error)
}

// Decoder decodes a colobj file through a range reader, reading only the
// byte ranges needed for each call.
type Decoder struct {
	rr rangeReader
}

// Metadata returns the file metadata, describing the set of columns in the
// file.
func (d *Decoder) Metadata(ctx context.Context) (*colmd.Metadata, error) {
	tailer, err := d.tailer(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tailer: %w", err)
	}

	rc, err := d.rr.ReadRange(ctx, int64(tailer.FileSize-tailer.MetadataSize-8), int64(tailer.MetadataSize))
	if err != nil {
		return nil, fmt.Errorf("getting metadata: %w", err)
	}
	defer rc.Close()

	br := bufpool.GetReader(rc)
	defer bufpool.PutReader(br)

	return decodeFileMetadata(br)
}

type tailer struct {
	MetadataSize uint64
	FileSize     uint64
}

func (d *Decoder) tailer(ctx context.Context) (tailer, error) {
	size, err := d.rr.Size(ctx)
	if err != nil {
		return tailer{}, fmt.Errorf("reading attributes: %w", err)
	}
	if size < int64(len(magic)*2+4) {
		return tailer{}, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidFormat, size)
	}

	// Read the last 8 bytes of the object to get the metadata size and magic.
	rc, err := d.rr.ReadRange(ctx, size-8, 8)
	if err != nil {
		return tailer{}, fmt.Errorf("getting file tailer: %w", err)
	}
	defer rc.Close()

	br := bufpool.GetReader(rc)
	defer bufpool.PutReader(br)

	metadataSize, err := decodeTailer(br)
	if err != nil {
		return tailer{}, fmt.Errorf("scanning tailer: %w", err)
	}

	return tailer{
		MetadataSize: uint64(metadataSize),
		FileSize:     uint64(size),
	}, nil
}

// Pages returns the set of page descriptions for a column.
func (d *Decoder) Pages(ctx context.Context, column *colmd.ColumnDesc) ([]*colmd.PageDesc, error) {
	rc, err := d.rr.ReadRange(ctx, int64(column.MetadataOffset), int64(column.MetadataSize))
	if err != nil {
		return nil, fmt.Errorf("reading column metadata: %w", err)
	}
	defer rc.Close()

	br := bufpool.GetReader(rc)
	defer bufpool.PutReader(br)

	md, err := colmd.DecodeColumnMetadata(br)
	if err != nil {
		return nil, err
	}
	return md.Pages, nil
}

// ReadPage returns the raw data for a page.
func (d *Decoder) ReadPage(ctx context.Context, page *colmd.PageDesc) (columnar.PageData, error) {
	rc, err := d.rr.ReadRange(ctx, int64(page.DataOffset), int64(page.DataSize))
	if err != nil {
		return nil, fmt.Errorf("reading page data: %w", err)
	}
	defer rc.Close()

	data := make([]byte, page.DataSize)
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("read page data: %w", err)
	}
	return columnar.PageData(data), nil
}

// decodeTailer reads the file tailer: the file metadata size followed by the
// trailing magic bytes.
func decodeTailer(r streamio.Reader) (uint32, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}

	gotMagic := buf[4:]
	if string(gotMagic) != string(magic) {
		return 0, fmt.Errorf("%w: invalid magic tailer %q", ErrInvalidFormat, gotMagic)
	}
	return binary.LittleEndian.Uint32(buf[:4]), nil
}

// decodeFileMetadata reads the file format version followed by the file
// metadata.
func decodeFileMetadata(r streamio.Reader) (*colmd.Metadata, error) {
	gotVersion, err := streamio.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("reading file format version: %w", err)
	}
	if gotVersion != fileFormatVersion {
		return nil, fmt.Errorf("%w: unexpected file format version: got=%d want=%d", ErrInvalidFormat, gotVersion, fileFormatVersion)
	}

	return colmd.DecodeMetadata(r)
}
