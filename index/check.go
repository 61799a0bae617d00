// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import "fmt"

// Check walks every FileRecord and NgramPosting reachable from s's Map
// and verifies that every posting's FileID appears in file_ranges and
// every LineIndex a posting references exists in its FileRecord's Lines.
func (s *Store) Check() error {
	fileLines := make(map[FileID]map[LineIndex]bool, len(s.m.FileRanges))
	for _, id := range s.FileIDs() {
		rec, err := s.File(id)
		if err != nil {
			return fmt.Errorf("index: Check: file %d: %w", id, err)
		}
		lines := make(map[LineIndex]bool, len(rec.Lines))
		for li := range rec.Lines {
			lines[li] = true
		}
		fileLines[id] = lines
	}

	for _, g := range s.Ngrams() {
		posting, err := s.Posting(g)
		if err != nil {
			return fmt.Errorf("index: Check: posting %q: %w", string(g), err)
		}
		for id, bm := range posting {
			lines, ok := fileLines[id]
			if !ok {
				return fmt.Errorf("index: Check: %w: posting %q references unknown file id %d", ErrCorruptIndex, string(g), id)
			}
			it := bm.Iterator()
			for it.HasNext() {
				li := LineIndex(it.Next())
				if !lines[li] {
					return fmt.Errorf("index: Check: %w: posting %q references file %d line %d absent from its FileRecord", ErrCorruptIndex, string(g), id, li)
				}
			}
		}
	}
	return nil
}
