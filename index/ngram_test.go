// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ngrams returns a sorted, duplicate-free list whose set equals the
// distinct windows of length n in s. For len(s) < n, the list is empty.
func TestNgramsCanonical(t *testing.T) {
	cases := []struct {
		s    string
		n    int
		want []string
	}{
		{"abcdef", 3, []string{"abc", "bcd", "cde", "def"}},
		{"abxyz", 3, []string{"abx", "bxy", "xyz"}},
		{"aaaa", 2, []string{"aa"}},
		{"ab", 3, nil},
		{"", 3, nil},
	}
	for _, c := range cases {
		got := Ngrams([]byte(c.s), c.n)
		gotStrs := make([]string, len(got))
		for i, g := range got {
			gotStrs[i] = string(g)
		}
		assert.True(t, sort.StringsAreSorted(gotStrs), "%q not sorted: %v", c.s, gotStrs)

		wantSet := map[string]bool{}
		for _, w := range c.want {
			wantSet[w] = true
		}
		gotSet := map[string]bool{}
		for _, g := range gotStrs {
			gotSet[g] = true
		}
		assert.Equal(t, wantSet, gotSet, "ngrams(%q, %d)", c.s, c.n)
		assert.Equal(t, len(wantSet), len(gotStrs), "duplicates in ngrams(%q, %d): %v", c.s, c.n, gotStrs)
	}
}

func TestNewNgramPanicsOnEmpty(t *testing.T) {
	require.Panics(t, func() { NewNgram(nil) })
	require.Panics(t, func() { NewNgram([]byte{}) })
	require.NotPanics(t, func() { NewNgram([]byte("abc")) })
}

// Constructing a LineIndex with value 0 is rejected; valid indices are
// >= 1.
func TestNewLineIndexRejectsZero(t *testing.T) {
	_, err := NewLineIndex(0)
	require.Error(t, err)
	_, err = NewLineIndex(-1)
	require.Error(t, err)

	li, err := NewLineIndex(1)
	require.NoError(t, err)
	assert.Equal(t, LineIndex(1), li)
}
