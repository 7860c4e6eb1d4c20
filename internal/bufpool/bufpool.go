// Package bufpool provides pooled byte buffers bucketed by capacity, so that
// requesting a buffer for a known size does not permanently grow every pooled
// buffer to the largest size ever requested.
package bufpool

import (
	"bufio"
	"bytes"
	"io"
	"math/bits"
	"sync"
)

const numBuckets = 32

var buckets [numBuckets]sync.Pool

func init() {
	for i := range buckets {
		buckets[i].New = func() any { return new(bytes.Buffer) }
	}
}

// bucketFor returns the index of the smallest bucket whose capacity class can
// hold size bytes.
func bucketFor(size int) int {
	if size <= 0 {
		return 0
	}
	return min(bits.Len(uint(size-1)), numBuckets-1)
}

// Get returns a reset buffer with capacity appropriate for size bytes.
func Get(size int) *bytes.Buffer {
	buf := buckets[bucketFor(size)].Get().(*bytes.Buffer)
	buf.Reset()
	buf.Grow(size)
	return buf
}

// Put returns buf to the pool bucket matching its current capacity.
func Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buckets[bucketFor(buf.Cap())].Put(buf)
}

var readerPool = sync.Pool{
	New: func() any { return bufio.NewReader(nil) },
}

// GetReader returns a pooled [bufio.Reader] reading from r.
func GetReader(r io.Reader) *bufio.Reader {
	br := readerPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutReader releases a reader obtained from [GetReader].
func PutReader(br *bufio.Reader) {
	br.Reset(nil)
	readerPool.Put(br)
}
