package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/colobj/colobj/colmd"
	"github.com/colobj/colobj/columnar"
	"github.com/colobj/colobj/internal/bufpool"
	"github.com/colobj/colobj/internal/streamio"
)

// Encoder encodes a colobj file column by column. Append each column with
// [Encoder.AppendColumn], then call [Encoder.Flush] to write the file to the
// underlying writer.
type Encoder struct {
	w streamio.Writer

	startOffset int // Byte offset in the file where data starts after the header.

	columns []*colmd.ColumnDesc

	data *bytes.Buffer
}

// NewEncoder creates a new Encoder which writes a colobj file to the provided
// writer.
func NewEncoder(w streamio.Writer) *Encoder {
	enc := &Encoder{data: bufpool.Get(0)}
	enc.Reset(w)
	return enc
}

// AppendColumn appends a column to the file: the data of each of its pages,
// followed by the column metadata locating those pages.
func (enc *Encoder) AppendColumn(column *columnar.MemColumn) error {
	desc := column.Desc // Copy; offsets below must not modify the builder's column.

	columnMetadata := colmd.ColumnMetadata{
		Pages: make([]*colmd.PageDesc, 0, len(column.Pages)),
	}

	for _, page := range column.Pages {
		pageDesc := page.Desc
		pageDesc.DataOffset = uint64(enc.startOffset + enc.data.Len())
		pageDesc.DataSize = uint64(len(page.Data))

		// bytes.Buffer.Write never fails.
		_, _ = enc.data.Write(page.Data)

		columnMetadata.Pages = append(columnMetadata.Pages, &pageDesc)
	}

	desc.MetadataOffset = uint64(enc.startOffset + enc.data.Len())
	if err := columnMetadata.Encode(enc.data); err != nil {
		return fmt.Errorf("encoding column metadata: %w", err)
	}
	desc.MetadataSize = uint64(enc.startOffset+enc.data.Len()) - desc.MetadataOffset

	enc.columns = append(enc.columns, &desc)
	return nil
}

// Flush writes the buffered file to the underlying writer. After flushing,
// enc is reset.
func (enc *Encoder) Flush() error {
	metadataBuffer := bufpool.Get(enc.metadataSize())
	defer bufpool.Put(metadataBuffer)

	// The file metadata starts with the format version.
	if err := streamio.WriteUvarint(metadataBuffer, fileFormatVersion); err != nil {
		return err
	}
	md := colmd.Metadata{Columns: enc.columns}
	if err := md.Encode(metadataBuffer); err != nil {
		return err
	}

	if _, err := enc.w.Write(magic); err != nil {
		return fmt.Errorf("writing magic header: %w", err)
	} else if _, err := enc.w.Write(enc.data.Bytes()); err != nil {
		return fmt.Errorf("writing data: %w", err)
	} else if _, err := enc.w.Write(metadataBuffer.Bytes()); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	} else if err := binary.Write(enc.w, binary.LittleEndian, uint32(metadataBuffer.Len())); err != nil {
		return fmt.Errorf("writing metadata size: %w", err)
	} else if _, err := enc.w.Write(magic); err != nil {
		return fmt.Errorf("writing magic tailer: %w", err)
	}

	enc.columns = nil
	enc.data.Reset()
	return nil
}

// metadataSize estimates the encoded size of the file metadata.
func (enc *Encoder) metadataSize() int {
	size := streamio.UvarintSize(fileFormatVersion)
	for _, col := range enc.columns {
		// 11 uvarint fields of at most 10 bytes each plus the name.
		size += len(col.Name) + 12*10
	}
	return size
}

// Reset discards any buffered data and resets enc to write a new file to w.
func (enc *Encoder) Reset(w streamio.Writer) {
	enc.data.Reset()
	enc.columns = nil
	enc.w = w
	enc.startOffset = len(magic)
}
