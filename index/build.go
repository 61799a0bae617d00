// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"
)

// FileContent is the per-file input to the build pipeline's extraction
// stage: a path and its lines, newlines already stripped.
type FileContent struct {
	Path  string
	Lines []string
}

// SkipEntry records a single file that could not be indexed, and why.
// Per-file extraction failures are isolated: the file is skipped and the
// build continues.
type SkipEntry struct {
	Path string
	Err  error
}

// BuildReport summarizes the files a Build call had to skip.
type BuildReport struct {
	Skipped []SkipEntry
}

// Built is the in-memory result of the build pipeline, ready to be
// handed to WriteStore. It is immutable once returned from Build.
type Built struct {
	NgramLen uint8
	Files    map[FileID]FileContent
	Postings map[Ngram]map[FileID]*roaring.Bitmap
}

// ReadLines reads path and splits it into lines with trailing newlines
// stripped. It is the only I/O before the build pipeline's CPU-bound
// n-gram extraction.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// BuildFromPaths registers every path with alloc, reads each file's
// lines, and runs the build pipeline over the result. Paths that cannot
// be opened or read are skipped and recorded in the returned
// BuildReport rather than failing the whole build.
func BuildFromPaths(ctx context.Context, alloc *Allocator, paths []string, ngramLen int) (*Built, *BuildReport, error) {
	report := &BuildReport{}
	contents := make(map[FileID]FileContent, len(paths))
	for _, p := range paths {
		id, err := alloc.Register(p)
		if err != nil {
			report.Skipped = append(report.Skipped, SkipEntry{Path: p, Err: err})
			continue
		}
		lines, err := ReadLines(p)
		if err != nil {
			report.Skipped = append(report.Skipped, SkipEntry{Path: p, Err: err})
			continue
		}
		contents[id] = FileContent{Path: p, Lines: lines}
	}

	frozen := alloc.Freeze()
	for id, c := range contents {
		if canon, ok := frozen.Path(id); ok {
			c.Path = canon
			contents[id] = c
		}
	}
	built, buildReport, err := Build(ctx, frozen, contents, ngramLen)
	if err != nil {
		return nil, nil, err
	}
	report.Skipped = append(report.Skipped, buildReport.Skipped...)
	return built, report, nil
}

// extraction is the per-file extraction stage's owned output for a
// single file: the file's content, plus its n-grams mapped to the
// sorted, unique LineIndexes at which each occurs within this file (the
// merge stage only concatenates across files; it never has to dedup or
// sort within one).
type extraction struct {
	id      FileID
	content FileContent
	ngrams  map[Ngram][]LineIndex
}

// extractFile is the pure, parallelizable body of the per-file
// extraction stage.
func extractFile(id FileID, content FileContent, n int) extraction {
	perNgram := make(map[Ngram][]LineIndex)
	for i, line := range content.Lines {
		li, err := NewLineIndex(i + 1)
		if err != nil {
			// Cannot happen: i+1 >= 1 and content.Lines is bounded well
			// under 2^32 for any real file.
			panic(err)
		}
		for _, g := range Ngrams([]byte(line), n) {
			perNgram[g] = append(perNgram[g], li)
		}
	}
	return extraction{id: id, content: content, ngrams: perNgram}
}

// Build runs the parallel, data-parallel per-file extraction stage
// followed by a serial merge stage, over an already frozen allocator and
// already-read file contents.
func Build(ctx context.Context, frozen *FrozenAllocator, contents map[FileID]FileContent, ngramLen int) (*Built, *BuildReport, error) {
	if ngramLen < 1 {
		return nil, nil, fmt.Errorf("index: Build: ngram_len must be >= 1, got %d", ngramLen)
	}

	ids := make([]FileID, 0, len(contents))
	for id := range contents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]extraction, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.GOMAXPROCS(0)))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = extractFile(id, contents[id], ngramLen)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Serial merge stage. FileIds are already unique (the allocator
	// guarantees it); for each ngram, postings from different files are
	// concatenated, one bitmap per file.
	built := &Built{
		NgramLen: uint8(ngramLen),
		Files:    make(map[FileID]FileContent, len(results)),
		Postings: make(map[Ngram]map[FileID]*roaring.Bitmap),
	}
	for _, r := range results {
		built.Files[r.id] = r.content
		for g, lines := range r.ngrams {
			byFile, ok := built.Postings[g]
			if !ok {
				byFile = make(map[FileID]*roaring.Bitmap)
				built.Postings[g] = byFile
			}
			bm, ok := byFile[r.id]
			if !ok {
				bm = roaring.New()
				byFile[r.id] = bm
			}
			for _, li := range lines {
				bm.Add(uint32(li))
			}
		}
	}
	return built, &BuildReport{}, nil
}

// Merge combines already-built stores into a single Built value without
// re-extracting n-grams from source files: it replays each store's
// FileRecords/LineRecords/NgramPostings, renumbering FileIDs to stay
// dense across the combined set. Every store being merged must share the
// same NgramLen.
//
// This combines finished, immutable stores; it is not online incremental
// indexing of a live store.
func Merge(stores ...*Store) (*Built, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("index: Merge: no stores given")
	}
	ngramLen := stores[0].NgramLen()
	for _, s := range stores[1:] {
		if s.NgramLen() != ngramLen {
			return nil, fmt.Errorf("index: Merge: mismatched ngram_len %d != %d", s.NgramLen(), ngramLen)
		}
	}

	built := &Built{
		NgramLen: ngramLen,
		Files:    make(map[FileID]FileContent),
		Postings: make(map[Ngram]map[FileID]*roaring.Bitmap),
	}

	var nextID FileID
	for _, s := range stores {
		remap := make(map[FileID]FileID, len(s.FileIDs()))
		for _, oldID := range s.FileIDs() {
			rec, err := s.File(oldID)
			if err != nil {
				return nil, err
			}
			newID := nextID
			nextID++
			remap[oldID] = newID

			ordered := make([]LineIndex, 0, len(rec.Lines))
			for li := range rec.Lines {
				ordered = append(ordered, li)
			}
			sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
			maxLine := LineIndex(0)
			for _, li := range ordered {
				if li > maxLine {
					maxLine = li
				}
			}
			dense := make([]string, maxLine)
			for _, li := range ordered {
				rng := rec.Lines[li]
				lr, err := s.Line(rng)
				if err != nil {
					return nil, err
				}
				dense[li-1] = string(lr)
			}
			built.Files[newID] = FileContent{Path: rec.Path, Lines: dense}
		}

		for _, g := range s.Ngrams() {
			posting, err := s.Posting(g)
			if err != nil {
				return nil, err
			}
			byFile, ok := built.Postings[g]
			if !ok {
				byFile = make(map[FileID]*roaring.Bitmap)
				built.Postings[g] = byFile
			}
			for oldID, bm := range posting {
				newID, ok := remap[oldID]
				if !ok {
					return nil, fmt.Errorf("index: Merge: %w: posting references unknown file id %d", ErrCorruptIndex, oldID)
				}
				byFile[newID] = bm.Clone()
			}
		}
	}
	return built, nil
}

