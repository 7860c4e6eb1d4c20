package encoding

import (
	"context"
	"fmt"
	"io"
)

// ReaderAtDecoder creates a [Decoder] for a colobj file of the given size
// accessed through r.
func ReaderAtDecoder(r io.ReaderAt, size int64) *Decoder {
	return &Decoder{rr: &readerAtRangeReader{r: r, size: size}}
}

type readerAtRangeReader struct {
	r    io.ReaderAt
	size int64
}

func (rr *readerAtRangeReader) Size(_ context.Context) (int64, error) {
	return rr.size, nil
}

func (rr *readerAtRangeReader) ReadRange(_ context.Context, offset int64, length int64) (io.ReadCloser, error) {
	if offset < 0 || length < 0 || offset+length > rr.size {
		return nil, fmt.Errorf("invalid range: offset=%d length=%d size=%d", offset, length, rr.size)
	}
	return io.NopCloser(io.NewSectionReader(rr.r, offset, length)), nil
}
