// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// This file implements the on-disk record encodings: a varint-oriented
// writer/reader pair for the fixed-layout records, and the independent
// deflate framing each record is compressed with.

// deflateBytes compresses b with compress/flate at the default level, no
// zlib/gzip wrapper: every record is small enough that the wrapper's
// extra header/checksum bytes would be pure overhead.
func deflateBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// inflateBytes reverses deflateBytes.
func inflateBytes(b []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("index: inflate: %w: %v", ErrCorruptIndex, err)
	}
	return out, nil
}

// wireWriter accumulates a record's uncompressed bytes.
type wireWriter struct {
	buf []byte
}

func (w *wireWriter) byt(b byte) {
	w.buf = append(w.buf, b)
}

func (w *wireWriter) uvarint(n uint64) {
	var enc [binary.MaxVarintLen64]byte
	m := binary.PutUvarint(enc[:], n)
	w.buf = append(w.buf, enc[:m]...)
}

func (w *wireWriter) str(s string) {
	w.uvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *wireWriter) bytesField(b []byte) {
	w.uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// wireReader consumes a record's uncompressed bytes. Any malformed read
// leaves err set and subsequent reads return zero values, mirroring
// zoekt's binaryReader.
type wireReader struct {
	b   []byte
	err error
}

func (r *wireReader) byt() byte {
	if r.err != nil || len(r.b) < 1 {
		r.fail()
		return 0
	}
	x := r.b[0]
	r.b = r.b[1:]
	return x
}

func (r *wireReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	x, n := binary.Uvarint(r.b)
	if n <= 0 {
		r.fail()
		return 0
	}
	r.b = r.b[n:]
	return x
}

func (r *wireReader) str() string {
	if r.err != nil {
		return ""
	}
	l := r.uvarint()
	if uint64(len(r.b)) < l {
		r.fail()
		return ""
	}
	s := string(r.b[:l])
	r.b = r.b[l:]
	return s
}

func (r *wireReader) bytesField() []byte {
	if r.err != nil {
		return nil
	}
	l := r.uvarint()
	if uint64(len(r.b)) < l {
		r.fail()
		return nil
	}
	out := append([]byte(nil), r.b[:l]...)
	r.b = r.b[l:]
	return out
}

func (r *wireReader) fail() {
	r.b = nil
	r.err = fmt.Errorf("%w: malformed record", ErrCorruptIndex)
}

func encodeRange(w *wireWriter, rg Range) {
	w.uvarint(rg.Offset)
	w.uvarint(uint64(rg.Length))
}

func decodeRange(r *wireReader) Range {
	off := r.uvarint()
	length := r.uvarint()
	return Range{Offset: off, Length: uint32(length)}
}

// encodeLineRecord returns lr's raw (pre-compression) bytes. Framing is
// implicit in the caller's Range, so no length prefix is needed.
func encodeLineRecord(lr LineRecord) []byte {
	return []byte(lr)
}

func decodeLineRecordBytes(raw []byte) LineRecord {
	return LineRecord(raw)
}

func encodeFileRecord(rec FileRecord) []byte {
	w := &wireWriter{}
	w.str(rec.Path)
	lines := make([]LineIndex, 0, len(rec.Lines))
	for li := range rec.Lines {
		lines = append(lines, li)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
	w.uvarint(uint64(len(lines)))
	for _, li := range lines {
		w.uvarint(uint64(li))
		encodeRange(w, rec.Lines[li])
	}
	return w.buf
}

func decodeFileRecordBytes(raw []byte) (FileRecord, error) {
	r := &wireReader{b: raw}
	path := r.str()
	n := r.uvarint()
	lines := make(map[LineIndex]Range, n)
	for i := uint64(0); i < n; i++ {
		li := LineIndex(r.uvarint())
		rg := decodeRange(r)
		lines[li] = rg
	}
	if r.err != nil {
		return FileRecord{}, r.err
	}
	return FileRecord{Path: path, Lines: lines}, nil
}

// encodeNgramPosting encodes a posting as a list of (FileID, bitmap)
// pairs, with each file's LineIndex set carried as a serialized
// roaring.Bitmap: a compact, sorted-ascending representation of the line
// set, decodable without first materializing a slice.
func encodeNgramPosting(posting map[FileID]*roaring.Bitmap) ([]byte, error) {
	w := &wireWriter{}
	fileIDs := make([]FileID, 0, len(posting))
	for id := range posting {
		fileIDs = append(fileIDs, id)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })
	w.uvarint(uint64(len(fileIDs)))
	for _, id := range fileIDs {
		w.uvarint(uint64(id))
		bm := posting[id]
		bb, err := bm.ToBytes()
		if err != nil {
			return nil, err
		}
		w.bytesField(bb)
	}
	return w.buf, nil
}

func decodeNgramPostingBytes(raw []byte) (map[FileID]*roaring.Bitmap, error) {
	r := &wireReader{b: raw}
	n := r.uvarint()
	out := make(map[FileID]*roaring.Bitmap, n)
	for i := uint64(0); i < n; i++ {
		id := FileID(r.uvarint())
		bb := r.bytesField()
		if r.err != nil {
			return nil, r.err
		}
		bm := roaring.New()
		if _, err := bm.FromBuffer(bb); err != nil {
			return nil, fmt.Errorf("%w: decoding posting bitmap: %v", ErrCorruptIndex, err)
		}
		if _, ok := out[id]; ok {
			return nil, fmt.Errorf("%w: duplicate file id %d within one posting", ErrCorruptIndex, id)
		}
		out[id] = bm
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// encodeMap encodes the IndexMap header: a single byte ngram_len,
// followed by the file_ranges and ngram_ranges maps.
func encodeMap(m *Map) []byte {
	w := &wireWriter{}
	w.byt(m.NgramLen)

	fileIDs := make([]FileID, 0, len(m.FileRanges))
	for id := range m.FileRanges {
		fileIDs = append(fileIDs, id)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })
	w.uvarint(uint64(len(fileIDs)))
	for _, id := range fileIDs {
		w.uvarint(uint64(id))
		encodeRange(w, m.FileRanges[id])
	}

	ngrams := make([]string, 0, len(m.NgramRanges))
	for g := range m.NgramRanges {
		ngrams = append(ngrams, g)
	}
	sort.Strings(ngrams)
	w.uvarint(uint64(len(ngrams)))
	for _, g := range ngrams {
		w.bytesField([]byte(g))
		encodeRange(w, m.NgramRanges[g])
	}
	return w.buf
}

func decodeMap(raw []byte) (*Map, error) {
	r := &wireReader{b: raw}
	ngramLen := r.byt()

	nFiles := r.uvarint()
	fileRanges := make(map[FileID]Range, nFiles)
	for i := uint64(0); i < nFiles; i++ {
		id := FileID(r.uvarint())
		rg := decodeRange(r)
		fileRanges[id] = rg
	}

	nGrams := r.uvarint()
	ngramRanges := make(map[string]Range, nGrams)
	for i := uint64(0); i < nGrams; i++ {
		g := r.bytesField()
		rg := decodeRange(r)
		ngramRanges[string(g)] = rg
	}
	if r.err != nil {
		return nil, r.err
	}
	return &Map{NgramLen: ngramLen, FileRanges: fileRanges, NgramRanges: ngramRanges}, nil
}
