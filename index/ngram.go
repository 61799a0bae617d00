// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"bytes"
	"sort"
)

// Ngram is an immutable byte sequence of fixed length N. Every Ngram
// produced by a single index shares the same N (Map.NgramLen records
// it).
type Ngram string

// NewNgram wraps b as an Ngram. It panics if b is empty: constructing an
// Ngram from an empty slice is a programmer error, not a runtime
// condition a caller can recover from.
func NewNgram(b []byte) Ngram {
	if len(b) == 0 {
		panic("index: NewNgram called with empty slice")
	}
	return Ngram(b)
}

// Ngrams returns the sorted, deduplicated set of distinct length-n byte
// windows of s. For len(s) < n the result is empty. n must be >= 1.
//
// Sorting and deduplication keep the representation canonical: callers
// that compare two Ngrams slices for equality, or that want a stable
// iteration order, never need to sort themselves.
func Ngrams(s []byte, n int) []Ngram {
	if n < 1 {
		panic("index: Ngrams called with n < 1")
	}
	if len(s) < n {
		return nil
	}
	seen := make(map[string]bool, len(s)-n+1)
	out := make([]Ngram, 0, len(s)-n+1)
	for i := 0; i+n <= len(s); i++ {
		w := s[i : i+n]
		if seen[string(w)] {
			continue
		}
		seen[string(w)] = true
		out = append(out, Ngram(append([]byte(nil), w...)))
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare([]byte(out[i]), []byte(out[j])) < 0
	})
	return out
}
