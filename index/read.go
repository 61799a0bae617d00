// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/cespare/xxhash/v2"
)

// Store is a loaded, read-only index: the always-resident Map header
// plus a Fetcher for random-access reads of the content blob. A Store is
// immutable after Open and safe for concurrent use by multiple queries.
type Store struct {
	m       *Map
	fetcher Fetcher

	cacheMu sync.Mutex
	cache   map[uint64][]byte // xxhash(Range) -> inflated record bytes
}

// Open loads mapRaw (the deflate-compressed, encoded IndexMap) and pairs
// it with fetcher for content-blob reads. mapRaw is decoded once and
// held in memory in full: it is small relative to the content blob, so
// there is no benefit to lazily decoding it.
func Open(fetcher Fetcher, mapRaw []byte) (*Store, error) {
	raw, err := inflateBytes(mapRaw)
	if err != nil {
		return nil, err
	}
	m, err := decodeMap(raw)
	if err != nil {
		return nil, err
	}
	if m.NgramLen < 1 {
		return nil, fmt.Errorf("%w: ngram_len %d < 1", ErrCorruptIndex, m.NgramLen)
	}
	return &Store{
		m:       m,
		fetcher: fetcher,
		cache:   make(map[uint64][]byte),
	}, nil
}

// OpenFiles opens the on-disk pair: the index map at mapPath and the
// content blob at datPath. When
// useMmap is true the content blob is served via MmapFetcher; otherwise
// it is served via pread-based FileFetcher.
func OpenFiles(mapPath, datPath string, useMmap bool) (*Store, error) {
	mapRaw, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, err
	}
	var fetcher Fetcher
	if useMmap {
		fetcher, err = NewMmapFetcher(datPath)
	} else {
		fetcher, err = NewFileFetcher(datPath)
	}
	if err != nil {
		return nil, err
	}
	return Open(fetcher, mapRaw)
}

// NgramLen returns the n-gram length this store was built with.
func (s *Store) NgramLen() uint8 { return s.m.NgramLen }

// FileIDs returns every FileID present in the store, ascending.
func (s *Store) FileIDs() []FileID {
	ids := make([]FileID, 0, len(s.m.FileRanges))
	for id := range s.m.FileRanges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Ngrams returns every Ngram present in the store, ascending.
func (s *Store) Ngrams() []Ngram {
	out := make([]Ngram, 0, len(s.m.NgramRanges))
	for g := range s.m.NgramRanges {
		out = append(out, Ngram(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FileRange looks up the Range of a FileID's FileRecord. The second
// return value is false if the id is unknown.
func (s *Store) FileRange(id FileID) (Range, bool) {
	rg, ok := s.m.FileRanges[id]
	return rg, ok
}

// NgramRange looks up the Range of an Ngram's NgramPosting. The second
// return value is false if the n-gram is absent — a missing n-gram means
// zero candidates, not an error.
func (s *Store) NgramRange(g Ngram) (Range, bool) {
	rg, ok := s.m.NgramRanges[string(g)]
	return rg, ok
}

func rangeKey(r Range) uint64 {
	var b [12]byte
	binary.LittleEndian.PutUint64(b[0:8], r.Offset)
	binary.LittleEndian.PutUint32(b[8:12], r.Length)
	return xxhash.Sum64(b[:])
}

// fetchInflated fetches and inflates the record at r, consulting a
// small read-through cache first. The cache only ever serves records
// decoded from this store's own immutable content blob, so it cannot
// return stale bytes.
func (s *Store) fetchInflated(r Range) ([]byte, error) {
	key := rangeKey(r)

	s.cacheMu.Lock()
	if b, ok := s.cache[key]; ok {
		s.cacheMu.Unlock()
		return b, nil
	}
	s.cacheMu.Unlock()

	raw, err := s.fetcher.Fetch(r)
	if err != nil {
		return nil, err
	}
	inflated, err := inflateBytes(raw)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[key] = inflated
	s.cacheMu.Unlock()
	return inflated, nil
}

// File decodes the FileRecord for id.
func (s *Store) File(id FileID) (FileRecord, error) {
	rg, ok := s.FileRange(id)
	if !ok {
		return FileRecord{}, fmt.Errorf("index: File(%d): %w", id, ErrCorruptIndex)
	}
	raw, err := s.fetchInflated(rg)
	if err != nil {
		return FileRecord{}, err
	}
	return decodeFileRecordBytes(raw)
}

// Line decodes the LineRecord stored at rg.
func (s *Store) Line(rg Range) (LineRecord, error) {
	raw, err := s.fetchInflated(rg)
	if err != nil {
		return "", err
	}
	return decodeLineRecordBytes(raw), nil
}

// Posting decodes the NgramPosting for g. A g absent from the index is
// not an error: it is treated as an empty posting.
func (s *Store) Posting(g Ngram) (map[FileID]*roaring.Bitmap, error) {
	rg, ok := s.NgramRange(g)
	if !ok {
		return map[FileID]*roaring.Bitmap{}, nil
	}
	raw, err := s.fetchInflated(rg)
	if err != nil {
		return nil, err
	}
	return decodeNgramPostingBytes(raw)
}

// Close releases the underlying Fetcher's resources, if it holds any
// (an open file descriptor or a memory mapping).
func (s *Store) Close() error {
	type closer interface{ Close() error }
	if c, ok := s.fetcher.(closer); ok {
		return c.Close()
	}
	return nil
}
