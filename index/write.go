// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// WriteStore runs the four-step write protocol over built, emitting the
// content blob to dat and the index map to mp. The writer
// holds a single running offset: every Range's Offset equals the
// previous offset plus the compressed length of the record just
// written, so the content blob's three sections (LineRecords,
// FileRecords, NgramPostings) are written in that order and nothing
// else may interleave with it.
func WriteStore(built *Built, dat, mp io.Writer) error {
	var offset uint64

	writeRecord := func(raw []byte) (Range, error) {
		comp, err := deflateBytes(raw)
		if err != nil {
			return Range{}, err
		}
		n, err := dat.Write(comp)
		if err != nil {
			return Range{}, err
		}
		rg := Range{Offset: offset, Length: uint32(n)}
		offset += uint64(n)
		return rg, nil
	}

	fileIDs := make([]FileID, 0, len(built.Files))
	for id := range built.Files {
		fileIDs = append(fileIDs, id)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })

	// Step 1: LineRecords, one per (FileId, LineIndex), in deterministic
	// (FileId, LineIndex) order.
	lineRangeOf := make(map[FileLineIndex]Range)
	for _, id := range fileIDs {
		content := built.Files[id]
		for i, line := range content.Lines {
			li := LineIndex(i + 1)
			rg, err := writeRecord(encodeLineRecord(LineRecord(line)))
			if err != nil {
				return fmt.Errorf("index: write line record %d:%d: %w", id, li, err)
			}
			lineRangeOf[FileLineIndex{File: id, Line: li}] = rg
		}
	}

	// Step 2: inject those ranges into their owning FileRecord and emit
	// FileRecords, recording each in the IndexMap.
	fileRangeOf := make(map[FileID]Range, len(fileIDs))
	for _, id := range fileIDs {
		content := built.Files[id]
		lines := make(map[LineIndex]Range, len(content.Lines))
		for i := range content.Lines {
			li := LineIndex(i + 1)
			lines[li] = lineRangeOf[FileLineIndex{File: id, Line: li}]
		}
		rec := FileRecord{Path: content.Path, Lines: lines}
		rg, err := writeRecord(encodeFileRecord(rec))
		if err != nil {
			return fmt.Errorf("index: write file record %d: %w", id, err)
		}
		if _, exists := fileRangeOf[id]; exists {
			return fmt.Errorf("index: write file record %d: %w", id, ErrAlreadyExists)
		}
		fileRangeOf[id] = rg
	}

	// Step 3: emit NgramPostings, recording each in the IndexMap.
	ngrams := make([]string, 0, len(built.Postings))
	for g := range built.Postings {
		ngrams = append(ngrams, string(g))
	}
	sort.Strings(ngrams)
	ngramRangeOf := make(map[string]Range, len(ngrams))
	for _, g := range ngrams {
		posting := built.Postings[Ngram(g)]
		raw, err := encodeNgramPosting(posting)
		if err != nil {
			return fmt.Errorf("index: encode posting %q: %w", g, err)
		}
		rg, err := writeRecord(raw)
		if err != nil {
			return fmt.Errorf("index: write posting %q: %w", g, err)
		}
		if _, exists := ngramRangeOf[g]; exists {
			return fmt.Errorf("index: write posting %q: %w", g, ErrAlreadyExists)
		}
		ngramRangeOf[g] = rg
	}

	// Step 4: finalize and write the IndexMap.
	m := &Map{NgramLen: built.NgramLen, FileRanges: fileRangeOf, NgramRanges: ngramRangeOf}
	mapComp, err := deflateBytes(encodeMap(m))
	if err != nil {
		return fmt.Errorf("index: encode index map: %w", err)
	}
	if _, err := mp.Write(mapComp); err != nil {
		return fmt.Errorf("index: write index map: %w", err)
	}
	return nil
}

// WriteStoreFiles is a convenience wrapper around WriteStore that creates
// (or truncates) the index map at mapPath and the content blob at datPath
// and writes them directly.
func WriteStoreFiles(built *Built, mapPath, datPath string) error {
	datFile, err := os.Create(datPath)
	if err != nil {
		return err
	}
	defer datFile.Close()

	mapFile, err := os.Create(mapPath)
	if err != nil {
		return err
	}
	defer mapFile.Close()

	if err := WriteStore(built, datFile, mapFile); err != nil {
		return err
	}
	if err := datFile.Sync(); err != nil {
		return err
	}
	return mapFile.Sync()
}
