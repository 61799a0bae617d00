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
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"

	"github.com/jbowens/ixgrep/index"
)

// Query is the query engine's state machine: Init -> NgramsNeeded ->
// NgramPostingsLoaded -> Candidates -> Verified. Each stage is a pure
// transformation exposed as a method that returns an owned value;
// nothing is hidden behind a goroutine or channel, which is
// what lets a non-cooperative host (e.g. an embedded/web deployment
// fetching byte ranges out of band) drive the pipeline one stage at a
// time instead of calling the all-in-one Run.
type Query struct {
	Store     *index.Store
	Pattern   string
	N         int
	Tree      Tree
	NoPruning bool
}

// Init is stage 1: parse the regex and build its n-gram tree. If the
// tree is All (is_all), the query can never be pruned and the engine
// will fall through to brute verification of every indexed line; the
// caller is expected to surface that as a warning (NoPruning is exported
// for exactly that).
func Init(store *index.Store, pattern string) (*Query, error) {
	hir, err := ParseHighLevel(pattern)
	if err != nil {
		return nil, err
	}
	n := int(store.NgramLen())
	tree := ToTree(hir, n)
	return &Query{
		Store:     store,
		Pattern:   pattern,
		N:         n,
		Tree:      tree,
		NoPruning: IsAll(tree),
	}, nil
}

// NgramFetch is one entry of stage 2's fetch plan: the n-gram and the
// Range its posting occupies, or Found=false if the n-gram never
// occurs in the index (treated as an empty posting, not an error).
type NgramFetch struct {
	Ngram index.Ngram
	Range index.Range
	Found bool
}

// NgramsNeeded is stage 2: the list of (n-gram, Range) pairs the host
// must fetch and decode next. Returns nil if the query cannot be
// pruned.
func (q *Query) NgramsNeeded() []NgramFetch {
	if q.NoPruning {
		return nil
	}
	grams := Ngrams(q.Tree)
	out := make([]NgramFetch, len(grams))
	for i, g := range grams {
		rg, ok := q.Store.NgramRange(g)
		out[i] = NgramFetch{Ngram: g, Range: rg, Found: ok}
	}
	return out
}

// LoadPostings is the self-driven implementation of stage 3's input:
// it fetches and decodes every n-gram NgramsNeeded names, in parallel,
// via q.Store. A host that cannot block on local disk I/O serves those
// Ranges through the index.Fetcher it opened the store with, or builds
// the postings map itself and calls Evaluate directly; package index
// exports no helper that decodes posting bytes fetched outside a Store.
func (q *Query) LoadPostings(ctx context.Context) (map[index.Ngram]map[index.FileID]*roaring.Bitmap, error) {
	needed := q.NgramsNeeded()
	out := make(map[index.Ngram]map[index.FileID]*roaring.Bitmap, len(needed))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, nf := range needed {
		nf := nf
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			var posting map[index.FileID]*roaring.Bitmap
			if !nf.Found {
				posting = map[index.FileID]*roaring.Bitmap{}
			} else {
				p, err := q.Store.Posting(nf.Ngram)
				if err != nil {
					return err
				}
				posting = p
			}
			mu.Lock()
			out[nf.Ngram] = posting
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// candidateSet is the output of stage 3: either NoPruning (the
// universe of indexed lines) or a concrete map[FileID]*roaring.Bitmap of
// LineIndex sets, mirroring a Posting's own representation.
type candidateSet struct {
	noPruning bool
	files     map[index.FileID]*roaring.Bitmap
}

// Evaluate is stage 3: walk q.Tree bottom-up over the loaded postings,
// applying the ALL/Concat/Alternation set semantics
// (ALL ∩ X = X, ALL ∪ X = ALL, otherwise plain set intersection/union).
func (q *Query) Evaluate(postings map[index.Ngram]map[index.FileID]*roaring.Bitmap) *candidateSet {
	if q.NoPruning {
		return &candidateSet{noPruning: true}
	}
	return evalTree(q.Tree, postings)
}

func evalTree(t Tree, postings map[index.Ngram]map[index.FileID]*roaring.Bitmap) *candidateSet {
	switch n := t.(type) {
	case All:
		return &candidateSet{noPruning: true}

	case Gram:
		p := postings[n.G]
		files := make(map[index.FileID]*roaring.Bitmap, len(p))
		for id, bm := range p {
			files[id] = bm.Clone()
		}
		return &candidateSet{files: files}

	case Concat:
		var acc *candidateSet
		for _, s := range n.Subs {
			cs := evalTree(s, postings)
			if acc == nil {
				acc = cs
				continue
			}
			acc = intersectSets(acc, cs)
		}
		if acc == nil {
			return &candidateSet{files: map[index.FileID]*roaring.Bitmap{}}
		}
		return acc

	case Alternation:
		var acc *candidateSet
		for _, s := range n.Subs {
			cs := evalTree(s, postings)
			if acc == nil {
				acc = cs
				continue
			}
			acc = unionSets(acc, cs)
		}
		if acc == nil {
			return &candidateSet{files: map[index.FileID]*roaring.Bitmap{}}
		}
		return acc

	default:
		return &candidateSet{noPruning: true}
	}
}

func intersectSets(a, b *candidateSet) *candidateSet {
	if a.noPruning {
		return b
	}
	if b.noPruning {
		return a
	}
	out := make(map[index.FileID]*roaring.Bitmap)
	for id, abm := range a.files {
		bbm, ok := b.files[id]
		if !ok {
			continue
		}
		r := roaring.And(abm, bbm)
		if !r.IsEmpty() {
			out[id] = r
		}
	}
	return &candidateSet{files: out}
}

func unionSets(a, b *candidateSet) *candidateSet {
	if a.noPruning || b.noPruning {
		return &candidateSet{noPruning: true}
	}
	out := make(map[index.FileID]*roaring.Bitmap, len(a.files))
	for id, abm := range a.files {
		out[id] = abm.Clone()
	}
	for id, bbm := range b.files {
		if existing, ok := out[id]; ok {
			out[id] = roaring.Or(existing, bbm)
		} else {
			out[id] = bbm.Clone()
		}
	}
	return &candidateSet{files: out}
}

// Hit is one verified match: a line, and the byte ranges within it that
// matched.
type Hit struct {
	Path    string
	Line    index.LineIndex
	Matches []MatchRange
}

// Result is the outcome of a full query run.
type Result struct {
	Hits        []Hit
	Diagnostics []error // VerifyError entries: lines skipped after a matcher failure
	NoPruning   bool    // the query could not be pruned; every line was verified
}

// Verify runs stages 4 and 5: group the candidate set by FileID, fetch
// each FileRecord and the Lines it needs, then run matcher over each
// fetched line. A missing FileRecord for a candidate FileID fails the
// whole query with index.ErrCorruptIndex; a matcher failure on one line
// is recorded as a diagnostic and that line is skipped, the rest of the
// query continuing.
func (q *Query) Verify(ctx context.Context, cs *candidateSet, matcher Matcher) (*Result, error) {
	var fileIDs []index.FileID
	if cs.noPruning {
		fileIDs = q.Store.FileIDs()
	} else {
		for id := range cs.files {
			fileIDs = append(fileIDs, id)
		}
		sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })
	}

	var hitsMu sync.Mutex
	var hits []Hit
	var diagMu sync.Mutex
	var diagnostics []error

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range fileIDs {
		id := id
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rec, err := q.Store.File(id)
			if err != nil {
				return err
			}

			var lines []index.LineIndex
			if cs.noPruning {
				for li := range rec.Lines {
					lines = append(lines, li)
				}
			} else {
				it := cs.files[id].Iterator()
				for it.HasNext() {
					lines = append(lines, index.LineIndex(it.Next()))
				}
			}
			sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })

			for _, li := range lines {
				rg, ok := rec.Lines[li]
				if !ok {
					return fmt.Errorf("query: verify %s:%d: %w", rec.Path, li, index.ErrCorruptIndex)
				}
				lr, err := q.Store.Line(rg)
				if err != nil {
					return err
				}
				matches, err := matcher.MatchAll([]byte(lr))
				if err != nil {
					diagMu.Lock()
					diagnostics = append(diagnostics, fmt.Errorf("query: verify %s:%d: %w", rec.Path, li, err))
					diagMu.Unlock()
					continue
				}
				if len(matches) == 0 {
					continue
				}
				hitsMu.Lock()
				hits = append(hits, Hit{Path: rec.Path, Line: li, Matches: matches})
				hitsMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Ordering is deterministic regardless of fetch order: by file path
	// ascending, then LineIndex ascending, then match start.
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		as, bs := 0, 0
		if len(a.Matches) > 0 {
			as = a.Matches[0].Start
		}
		if len(b.Matches) > 0 {
			bs = b.Matches[0].Start
		}
		return as < bs
	})

	return &Result{Hits: hits, Diagnostics: diagnostics, NoPruning: cs.noPruning}, nil
}

// Run drives the whole pipeline (stages 1-5) against store using
// github.com/grafana/regexp as the verification matcher. It is the
// convenience entry point most callers want; the staged methods above
// exist for hosts that must drive fetches themselves.
func Run(ctx context.Context, store *index.Store, pattern string) (*Result, error) {
	q, err := Init(store, pattern)
	if err != nil {
		return nil, err
	}
	postings, err := q.LoadPostings(ctx)
	if err != nil {
		return nil, err
	}
	cs := q.Evaluate(postings)
	matcher, err := NewMatcher(pattern)
	if err != nil {
		return nil, err
	}
	return q.Verify(ctx, cs, matcher)
}
