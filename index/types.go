// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index implements a byte-level n-gram inverted index over a
// corpus of text files, and the compact two-artifact on-disk format
// ("index map" + "content blob") used to serve it with random-access
// reads.
//
// The package is split, leaf components first: the core value types
// (this file), an identifier allocator (alloc.go), an n-gram extractor
// (ngram.go), a build
// pipeline (build.go), and a serializer/deserializer (write.go, read.go,
// fetch.go, codec.go). The regex-to-ngram query engine lives in the
// sibling package query, which consumes only the Store and Fetcher types
// defined here.
package index

import (
	"fmt"
)

// FileID is a dense, stable identifier for an indexed file, assigned
// sequentially from 0 in first-seen order.
type FileID uint32

// LineIndex is a 1-based line number within a file. Zero is reserved as
// "invalid" and is never stored; NewLineIndex rejects it.
type LineIndex uint32

// NewLineIndex validates n and returns it as a LineIndex. It is the only
// sanctioned way to produce a LineIndex from an external integer: a raw
// conversion risks smuggling in the reserved zero value.
func NewLineIndex(n int) (LineIndex, error) {
	if n <= 0 {
		return 0, fmt.Errorf("index: line index must be >= 1, got %d", n)
	}
	if uint64(n) > uint64(^uint32(0)) {
		return 0, fmt.Errorf("index: line index %d overflows uint32", n)
	}
	return LineIndex(n), nil
}

// FileLineIndex is the atomic unit of a posting: a single line within a
// single file.
type FileLineIndex struct {
	File FileID
	Line LineIndex
}

// Range describes a contiguous, independently-compressed region of the
// content blob.
type Range struct {
	Offset uint64
	Length uint32
}

// IsZero reports whether r is the zero Range, used as a "not present"
// sentinel when probing maps that cannot hold a real pointer.
func (r Range) IsZero() bool {
	return r.Offset == 0 && r.Length == 0
}

// FileRecord holds a canonicalized file path and the dense map from
// every non-empty line in the file to its Range in the content blob's
// LineRecords section.
type FileRecord struct {
	Path  string
	Lines map[LineIndex]Range
}

// LineRecord is raw line text with the trailing newline already
// stripped.
type LineRecord string

// ErrAlreadyExists is returned by operations that must not silently
// clobber an existing entry: registering a path twice, or writing a
// FileID/Ngram key the IndexMap already holds.
var ErrAlreadyExists = fmt.Errorf("index: already exists")

// ErrCorruptIndex is returned when a decode fails, or when a posting
// references a FileID absent from the IndexMap's file_ranges.
var ErrCorruptIndex = fmt.Errorf("index: corrupt index")

// Map is the small, always-resident "index map" header artifact: the
// configured n-gram length plus the Range of every FileRecord and every
// NgramPosting in the content blob.
type Map struct {
	NgramLen    uint8
	FileRanges  map[FileID]Range
	NgramRanges map[string]Range // keyed by the raw N-byte ngram
}

