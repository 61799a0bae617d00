// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStore(t *testing.T, files map[string]string, ngramLen int) (*Store, *FrozenAllocator) {
	t.Helper()
	dir := t.TempDir()
	alloc := NewAllocator()
	var paths []string
	for name, contents := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
		paths = append(paths, p)
	}

	built, report, err := BuildFromPaths(context.Background(), alloc, paths, ngramLen)
	require.NoError(t, err)
	require.Empty(t, report.Skipped)

	var dat, mp bytes.Buffer
	require.NoError(t, WriteStore(built, &dat, &mp))

	fetcher := &memFetcher{data: dat.Bytes()}
	store, err := Open(fetcher, mp.Bytes())
	require.NoError(t, err)
	return store, alloc.Freeze()
}

type memFetcher struct{ data []byte }

func (m *memFetcher) Fetch(r Range) ([]byte, error) {
	end := r.Offset + uint64(r.Length)
	if end > uint64(len(m.data)) {
		return nil, ErrCorruptIndex
	}
	return m.data[r.Offset:end], nil
}

// For any built store, and any (FileID, LineIndex) that was indexed,
// fetching and decoding via the IndexMap's Ranges yields the original
// line byte-for-byte (newline stripped).
func TestStoreRoundTripLines(t *testing.T) {
	store, _ := buildStore(t, map[string]string{
		"a.txt": "abcdef\nabxyz\n",
	}, 3)

	ids := store.FileIDs()
	require.Len(t, ids, 1)

	rec, err := store.File(ids[0])
	require.NoError(t, err)
	require.Len(t, rec.Lines, 2)

	line1, err := store.Line(rec.Lines[1])
	require.NoError(t, err)
	assert.Equal(t, LineRecord("abcdef"), line1)

	line2, err := store.Line(rec.Lines[2])
	require.NoError(t, err)
	assert.Equal(t, LineRecord("abxyz"), line2)
}

func TestStoreCheckPasses(t *testing.T) {
	store, _ := buildStore(t, map[string]string{
		"a.txt": "abcdef\nabxyz\n",
		"b.txt": "hello world\ngoodbye\n",
	}, 3)
	assert.NoError(t, store.Check())
}

// A posting for an ngram absent from the index map is treated as empty,
// not an error.
func TestStoreMissingNgramIsEmptyPosting(t *testing.T) {
	store, _ := buildStore(t, map[string]string{"a.txt": "abcdef\n"}, 3)
	posting, err := store.Posting(Ngram("zzz"))
	require.NoError(t, err)
	assert.Empty(t, posting)
}

// decode(encode(x)) == x for LineRecord, FileRecord, NgramPosting, and
// IndexMap.
func TestCodecRoundTrip(t *testing.T) {
	lr := LineRecord("hello, world")
	assert.Equal(t, lr, decodeLineRecordBytes(encodeLineRecord(lr)))

	rec := FileRecord{Path: "/a/b.txt", Lines: map[LineIndex]Range{
		1: {Offset: 0, Length: 10},
		2: {Offset: 10, Length: 5},
	}}
	gotRec, err := decodeFileRecordBytes(encodeFileRecord(rec))
	require.NoError(t, err)
	assert.Equal(t, rec, gotRec)

	m := &Map{
		NgramLen: 3,
		FileRanges: map[FileID]Range{
			0: {Offset: 0, Length: 4},
			1: {Offset: 4, Length: 8},
		},
		NgramRanges: map[string]Range{
			"abc": {Offset: 12, Length: 2},
		},
	}
	gotMap, err := decodeMap(encodeMap(m))
	require.NoError(t, err)
	assert.Equal(t, m, gotMap)
}

// Building the same files in the same order produces byte-identical
// index.map and index.dat.
func TestBuildDeterministic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("abcdef\nabxyz\n"), 0o644))

	build := func() (mapBytes, datBytes []byte) {
		alloc := NewAllocator()
		built, _, err := BuildFromPaths(context.Background(), alloc, []string{p}, 3)
		require.NoError(t, err)
		var dat, mp bytes.Buffer
		require.NoError(t, WriteStore(built, &dat, &mp))
		return mp.Bytes(), dat.Bytes()
	}

	m1, d1 := build()
	m2, d2 := build()
	assert.Equal(t, m1, m2)
	assert.Equal(t, d1, d2)
}
