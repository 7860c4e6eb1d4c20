// Package colmd defines metadata types describing the layout of a colobj
// file: the set of column chunks, their physical types and level structure,
// and the pages that make up each chunk.
package colmd

import "fmt"

// PhysicalType represents the physical type of values stored in a column.
type PhysicalType int32

const (
	// PhysicalTypeInvalid is an invalid physical type.
	PhysicalTypeInvalid PhysicalType = iota

	PhysicalTypeInt32
	PhysicalTypeInt64
	PhysicalTypeFloat32
	PhysicalTypeFloat64
	PhysicalTypeBoolean
	PhysicalTypeByteArray
	PhysicalTypeFixedLenByteArray
)

// String returns the name of the physical type.
func (t PhysicalType) String() string {
	switch t {
	case PhysicalTypeInvalid:
		return "invalid"
	case PhysicalTypeInt32:
		return "int32"
	case PhysicalTypeInt64:
		return "int64"
	case PhysicalTypeFloat32:
		return "float32"
	case PhysicalTypeFloat64:
		return "float64"
	case PhysicalTypeBoolean:
		return "boolean"
	case PhysicalTypeByteArray:
		return "bytearray"
	case PhysicalTypeFixedLenByteArray:
		return "fixedlenbytearray"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Valid reports whether t is one of the supported physical types.
func (t PhysicalType) Valid() bool {
	return t > PhysicalTypeInvalid && t <= PhysicalTypeFixedLenByteArray
}

// CompressionType represents the compression applied to value data within
// pages. Level and presence streams are never compressed.
type CompressionType int32

const (
	// CompressionTypeNone leaves value data uncompressed.
	CompressionTypeNone CompressionType = iota
	CompressionTypeSnappy
	CompressionTypeZstd
)

// String returns the name of the compression type.
func (t CompressionType) String() string {
	switch t {
	case CompressionTypeNone:
		return "none"
	case CompressionTypeSnappy:
		return "snappy"
	case CompressionTypeZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// EncodingType represents how values are encoded within a page.
type EncodingType int32

const (
	// EncodingTypeInvalid is an invalid encoding.
	EncodingTypeInvalid EncodingType = iota

	// EncodingTypePlain encodes values one after another in their natural
	// binary representation.
	EncodingTypePlain

	// EncodingTypeBitmap encodes unsigned integers with a hybrid of
	// run-length encoding and bit-packing. It is used for the level and
	// presence streams of every page.
	EncodingTypeBitmap

	// EncodingTypeIntComp encodes int64 values with a mix of delta, zigzag,
	// and bit-packing techniques.
	EncodingTypeIntComp
)

// String returns the name of the encoding type.
func (t EncodingType) String() string {
	switch t {
	case EncodingTypeInvalid:
		return "invalid"
	case EncodingTypePlain:
		return "plain"
	case EncodingTypeBitmap:
		return "bitmap"
	case EncodingTypeIntComp:
		return "intcomp"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// Metadata describes a colobj file: an ordered list of column chunks.
type Metadata struct {
	Columns []*ColumnDesc
}

// ColumnDesc describes a single column chunk within a file.
type ColumnDesc struct {
	// Name is the caller-assigned name of the column.
	Name string

	// Type is the physical type of the column's values.
	Type PhysicalType

	// FixedLength is the length of each value for
	// [PhysicalTypeFixedLenByteArray] columns and zero otherwise.
	FixedLength uint32

	// MaxDefinitionLevel and MaxRepetitionLevel bound the definition and
	// repetition levels of every occurrence in the column. Both are zero for
	// flat required columns.
	MaxDefinitionLevel uint32
	MaxRepetitionLevel uint32

	// Compression applied to value data in the column's pages.
	Compression CompressionType

	// RowsCount is the total number of occurrences across all pages,
	// including occurrences that carry no value. ValuesCount is the number of
	// non-NULL values.
	RowsCount   uint64
	ValuesCount uint64

	// CompressedSize and UncompressedSize are the summed sizes of the
	// column's page data before and after compression.
	CompressedSize   uint64
	UncompressedSize uint64

	// MetadataOffset and MetadataSize locate the column's encoded
	// [ColumnMetadata] within the file.
	MetadataOffset uint64
	MetadataSize   uint64
}

// ColumnMetadata describes the pages of one column chunk.
type ColumnMetadata struct {
	Pages []*PageDesc
}

// PageDesc describes a single page within a column chunk.
type PageDesc struct {
	// UncompressedSize is the page size before value compression;
	// CompressedSize is the final encoded size. The two match when the column
	// uses [CompressionTypeNone].
	UncompressedSize uint64
	CompressedSize   uint64

	// Crc32 is the CRC-32 (Castagnoli) checksum of the page data.
	Crc32 uint32

	// RowsCount is the number of occurrences in the page, including NULLs.
	// ValuesCount is the number of non-NULL values.
	RowsCount   uint64
	ValuesCount uint64

	// Encoding used for value data in the page.
	Encoding EncodingType

	// DataOffset and DataSize locate the page data within the file.
	DataOffset uint64
	DataSize   uint64
}
