// Package encoding provides utilities for encoding and decoding colobj files.
//
// The overall structure of a file is:
//
//	header:
//	 [magic]
//	body:
//	 [page data for each column]
//	 [column metadata for each column]
//	 [file metadata]
//	tailer:
//	 [file metadata size (32 bits)]
//	 [magic]
//
// The file metadata size must not be a varint since the last 8 bytes of the
// file are needed to consistently retrieve the tailer.
package encoding

import "errors"

var magic = []byte("CLBJ")

const fileFormatVersion = 0x1

var (
	// ErrInvalidFormat is returned when a file does not follow the expected
	// structure.
	ErrInvalidFormat = errors.New("invalid file format")
)
