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

// Package query implements the query engine: translating a regex into a
// conservative n-gram tree, evaluating that tree against an index.Store
// to obtain a candidate set, and verifying candidates with an external
// regex matcher.
package query

import (
	"sort"

	"github.com/jbowens/ixgrep/index"
)

// Tree is a conservative over-approximation of the set of n-grams a
// matching line must contain. It is a tagged variant with owned
// children — no back-references exist, so the tree can be evaluated
// bottom-up with a plain recursive walk.
type Tree interface {
	isTree()
}

// All is the sentinel meaning "no pruning possible; every line is a
// potential match" — the identity element of Concat and the absorbing
// element of Alternation.
type All struct{}

// Gram is a single required n-gram leaf.
type Gram struct {
	G index.Ngram
}

// Concat means every child tree must be satisfied by the same line
// (set intersection of candidates).
type Concat struct {
	Subs []Tree
}

// Alternation means any child tree satisfying the line suffices (set
// union of candidates).
type Alternation struct {
	Subs []Tree
}

func (All) isTree()         {}
func (Gram) isTree()        {}
func (Concat) isTree()      {}
func (Alternation) isTree() {}

// IsAll reports whether t can prune nothing: true iff every Alternation
// has some ALL child and every Concat has every child ALL. When true the
// query engine must fall through to brute verification of every indexed
// line.
func IsAll(t Tree) bool {
	switch n := t.(type) {
	case All:
		return true
	case Gram:
		return false
	case Concat:
		for _, s := range n.Subs {
			if !IsAll(s) {
				return false
			}
		}
		return true
	case Alternation:
		for _, s := range n.Subs {
			if IsAll(s) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Ngrams returns the sorted, deduplicated union of every Gram leaf in t
// — the fetch list the query engine must resolve against the store.
func Ngrams(t Tree) []index.Ngram {
	seen := make(map[index.Ngram]bool)
	var walk func(Tree)
	walk = func(t Tree) {
		switch n := t.(type) {
		case Gram:
			seen[n.G] = true
		case Concat:
			for _, s := range n.Subs {
				walk(s)
			}
		case Alternation:
			for _, s := range n.Subs {
				walk(s)
			}
		}
	}
	walk(t)
	out := make([]index.Ngram, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// simplify collapses single-child Concat/Alternation nodes and flattens
// nested ones of the same kind, so evaluation does no pointless work.
// It never changes the set the tree denotes.
func simplify(t Tree) Tree {
	switch n := t.(type) {
	case Concat:
		var subs []Tree
		for _, s := range n.Subs {
			s = simplify(s)
			if c, ok := s.(Concat); ok {
				subs = append(subs, c.Subs...)
				continue
			}
			subs = append(subs, s)
		}
		if len(subs) == 1 {
			return subs[0]
		}
		return Concat{Subs: subs}
	case Alternation:
		var subs []Tree
		for _, s := range n.Subs {
			s = simplify(s)
			if a, ok := s.(Alternation); ok {
				subs = append(subs, a.Subs...)
				continue
			}
			subs = append(subs, s)
		}
		if len(subs) == 1 {
			return subs[0]
		}
		return Alternation{Subs: subs}
	default:
		return t
	}
}
