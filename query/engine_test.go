// Copyright 2016 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package query

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbowens/ixgrep/index"
)

type memFetcher struct{ data []byte }

func (m *memFetcher) Fetch(r index.Range) ([]byte, error) {
	end := r.Offset + uint64(r.Length)
	if end > uint64(len(m.data)) {
		return nil, index.ErrCorruptIndex
	}
	return m.data[r.Offset:end], nil
}

func buildStore(t *testing.T, files map[string]string, ngramLen int) *index.Store {
	t.Helper()
	dir := t.TempDir()
	alloc := index.NewAllocator()
	var paths []string
	for name, contents := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
		paths = append(paths, p)
	}

	built, report, err := index.BuildFromPaths(context.Background(), alloc, paths, ngramLen)
	require.NoError(t, err)
	require.Empty(t, report.Skipped)

	var dat, mp bytes.Buffer
	require.NoError(t, index.WriteStore(built, &dat, &mp))

	store, err := index.Open(&memFetcher{data: dat.Bytes()}, mp.Bytes())
	require.NoError(t, err)
	return store
}

// Scenario 1: single file, ngram=3, query "abc".
func TestScenarioSingleLiteral(t *testing.T) {
	store := buildStore(t, map[string]string{"a.txt": "abcdef\nabxyz\n"}, 3)

	result, err := Run(context.Background(), store, "abc")
	require.NoError(t, err)
	require.False(t, result.NoPruning)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, index.LineIndex(1), result.Hits[0].Line)
	require.Len(t, result.Hits[0].Matches, 1)
	assert.Equal(t, MatchRange{Start: 0, End: 3}, result.Hits[0].Matches[0])
}

// Scenario 2: concat intersection yields no candidates.
func TestScenarioConcatIntersectionEmpty(t *testing.T) {
	store := buildStore(t, map[string]string{"a.txt": "abcdef\nabxyz\n"}, 3)

	result, err := Run(context.Background(), store, "abcxyz")
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

// Scenario 3: alternation is the union of candidates.
func TestScenarioAlternationUnion(t *testing.T) {
	store := buildStore(t, map[string]string{"a.txt": "abcdef\nabxyz\n"}, 3)

	result, err := Run(context.Background(), store, "abc|xyz")
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, index.LineIndex(1), result.Hits[0].Line)
	assert.Equal(t, index.LineIndex(2), result.Hits[1].Line)
}

// Scenario 4: a literal shorter than n falls through to ALL and
// every indexed line is verified.
func TestScenarioShortLiteralFallsThrough(t *testing.T) {
	store := buildStore(t, map[string]string{"a.txt": "abcdef\nabxyz\n"}, 3)

	q, err := Init(store, "ab")
	require.NoError(t, err)
	assert.True(t, q.NoPruning)

	result, err := Run(context.Background(), store, "ab")
	require.NoError(t, err)
	assert.True(t, result.NoPruning)
	assert.Len(t, result.Hits, 2)
}

// Scenario 5: a query n-gram missing from the index produces an
// empty result, not an error.
func TestScenarioMissingNgram(t *testing.T) {
	store := buildStore(t, map[string]string{"a.txt": "abcdef\n"}, 3)

	result, err := Run(context.Background(), store, "qqq")
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestBadPatternFails(t *testing.T) {
	store := buildStore(t, map[string]string{"a.txt": "abcdef\n"}, 3)
	_, err := Run(context.Background(), store, "(unclosed")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadPattern)
}

// soundness of pruning — every line matching r is present in the
// candidate set whenever the tree is not ALL.
func TestPruningSoundness(t *testing.T) {
	store := buildStore(t, map[string]string{
		"a.txt": "the quick brown fox\njumps over\nthe lazy dog\n",
	}, 3)

	q, err := Init(store, "the")
	require.NoError(t, err)
	require.False(t, q.NoPruning)

	postings, err := q.LoadPostings(context.Background())
	require.NoError(t, err)
	cs := q.Evaluate(postings)
	require.False(t, cs.noPruning)

	ids := store.FileIDs()
	require.Len(t, ids, 1)
	bm, ok := cs.files[ids[0]]
	require.True(t, ok)
	assert.True(t, bm.Contains(1))
	assert.True(t, bm.Contains(3))
	assert.False(t, bm.Contains(2))
}
