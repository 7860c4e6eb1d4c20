package colmd

import (
	"fmt"
	"io"

	"github.com/colobj/colobj/internal/streamio"
)

// Metadata structures are encoded as varint streams rather than a
// self-describing format; the field order below is part of the file format
// and must not change between versions without bumping the file format
// version.

// Encode writes the binary representation of m to w.
func (m *Metadata) Encode(w streamio.Writer) error {
	if err := streamio.WriteUvarint(w, uint64(len(m.Columns))); err != nil {
		return fmt.Errorf("writing column count: %w", err)
	}
	for i, col := range m.Columns {
		if err := col.encode(w); err != nil {
			return fmt.Errorf("writing column %d: %w", i, err)
		}
	}
	return nil
}

// DecodeMetadata reads a [Metadata] from r.
func DecodeMetadata(r streamio.Reader) (*Metadata, error) {
	count, err := streamio.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("reading column count: %w", err)
	}

	var md Metadata
	for i := uint64(0); i < count; i++ {
		col, err := decodeColumnDesc(r)
		if err != nil {
			return nil, fmt.Errorf("reading column %d: %w", i, err)
		}
		md.Columns = append(md.Columns, col)
	}
	return &md, nil
}

func (c *ColumnDesc) encode(w streamio.Writer) error {
	if err := streamio.WriteUvarint(w, uint64(len(c.Name))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(c.Name)); err != nil {
		return err
	}

	fields := []uint64{
		uint64(c.Type),
		uint64(c.FixedLength),
		uint64(c.MaxDefinitionLevel),
		uint64(c.MaxRepetitionLevel),
		uint64(c.Compression),
		c.RowsCount,
		c.ValuesCount,
		c.CompressedSize,
		c.UncompressedSize,
		c.MetadataOffset,
		c.MetadataSize,
	}
	for _, f := range fields {
		if err := streamio.WriteUvarint(w, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeColumnDesc(r streamio.Reader) (*ColumnDesc, error) {
	nameLen, err := streamio.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("reading name length: %w", err)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("reading name: %w", err)
	}

	fields := make([]uint64, 11)
	for i := range fields {
		if fields[i], err = streamio.ReadUvarint(r); err != nil {
			return nil, fmt.Errorf("reading column field %d: %w", i, err)
		}
	}

	return &ColumnDesc{
		Name:               string(name),
		Type:               PhysicalType(fields[0]),
		FixedLength:        uint32(fields[1]),
		MaxDefinitionLevel: uint32(fields[2]),
		MaxRepetitionLevel: uint32(fields[3]),
		Compression:        CompressionType(fields[4]),
		RowsCount:          fields[5],
		ValuesCount:        fields[6],
		CompressedSize:     fields[7],
		UncompressedSize:   fields[8],
		MetadataOffset:     fields[9],
		MetadataSize:       fields[10],
	}, nil
}

// Encode writes the binary representation of m to w.
func (m *ColumnMetadata) Encode(w streamio.Writer) error {
	if err := streamio.WriteUvarint(w, uint64(len(m.Pages))); err != nil {
		return fmt.Errorf("writing page count: %w", err)
	}
	for i, page := range m.Pages {
		if err := page.encode(w); err != nil {
			return fmt.Errorf("writing page %d: %w", i, err)
		}
	}
	return nil
}

// DecodeColumnMetadata reads a [ColumnMetadata] from r.
func DecodeColumnMetadata(r streamio.Reader) (*ColumnMetadata, error) {
	count, err := streamio.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("reading page count: %w", err)
	}

	var md ColumnMetadata
	for i := uint64(0); i < count; i++ {
		page, err := decodePageDesc(r)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		md.Pages = append(md.Pages, page)
	}
	return &md, nil
}

func (p *PageDesc) encode(w streamio.Writer) error {
	fields := []uint64{
		p.UncompressedSize,
		p.CompressedSize,
		uint64(p.Crc32),
		p.RowsCount,
		p.ValuesCount,
		uint64(p.Encoding),
		p.DataOffset,
		p.DataSize,
	}
	for _, f := range fields {
		if err := streamio.WriteUvarint(w, f); err != nil {
			return err
		}
	}
	return nil
}

func decodePageDesc(r streamio.Reader) (*PageDesc, error) {
	fields := make([]uint64, 8)
	for i := range fields {
		var err error
		if fields[i], err = streamio.ReadUvarint(r); err != nil {
			return nil, fmt.Errorf("reading page field %d: %w", i, err)
		}
	}

	return &PageDesc{
		UncompressedSize: fields[0],
		CompressedSize:   fields[1],
		Crc32:            uint32(fields[2]),
		RowsCount:        fields[3],
		ValuesCount:      fields[4],
		Encoding:         EncodingType(fields[5]),
		DataOffset:       fields[6],
		DataSize:         fields[7],
	}, nil
}
