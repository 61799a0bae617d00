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
	"fmt"
	"regexp/syntax"
	"strings"

	"github.com/jbowens/ixgrep/index"
)

// Hir is the abstract regex IR this package translates into an n-gram
// Tree: Empty, Literal, Class, Look, Repetition{min, sub}, Capture{sub},
// Concat, Alternation. Go's stdlib regexp/syntax.Regexp is exactly this
// IR (its Op enumeration distinguishes the same cases), so we use it
// directly rather than defining a parallel type.
type Hir = syntax.Regexp

// ErrBadPattern is returned by ParseHighLevel when pattern does not
// parse as a regular expression.
var ErrBadPattern = fmt.Errorf("query: bad pattern")

// ParseHighLevel parses pattern into its high-level IR. Parsing uses
// syntax.Perl, the same flavor github.com/grafana/regexp (the external
// regex matcher used at verification time) compiles.
func ParseHighLevel(pattern string) (*Hir, error) {
	r, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	return r, nil
}

// ToTree builds the n-gram Tree for r, using n-byte grams. It is the
// construction-table half of "Regex → NgramTree".
func ToTree(r *Hir, n int) Tree {
	return simplify(toTree(r, n))
}

func toTree(r *Hir, n int) Tree {
	switch r.Op {
	case syntax.OpLiteral:
		if r.Flags&syntax.FoldCase != 0 {
			// A case-folded literal matches bytes other than its own, so
			// its exact-byte n-grams would prune real matches.
			return All{}
		}
		return literalTree(string(r.Rune), n)

	case syntax.OpCapture:
		return toTree(r.Sub[0], n)

	case syntax.OpPlus:
		return repetitionTree(r.Sub[0], 1, n)

	case syntax.OpStar, syntax.OpQuest:
		return repetitionTree(r.Sub[0], 0, n)

	case syntax.OpRepeat:
		return repetitionTree(r.Sub[0], r.Min, n)

	case syntax.OpConcat:
		subs := make([]Tree, len(r.Sub))
		for i, s := range r.Sub {
			subs[i] = toTree(s, n)
		}
		return Concat{Subs: subs}

	case syntax.OpAlternate:
		subs := make([]Tree, len(r.Sub))
		for i, s := range r.Sub {
			subs[i] = toTree(s, n)
		}
		return Alternation{Subs: subs}

	default:
		// OpNoMatch, OpEmptyMatch, OpCharClass, OpAnyCharNotNL,
		// OpAnyChar, OpBeginLine, OpEndLine, OpBeginText, OpEndText,
		// OpWordBoundary, OpNoWordBoundary: all fall through to ALL per
		// the construction table (character class / look-around /
		// assertion / empty).
		return All{}
	}
}

// repetitionTree implements "Repetition of a literal with min count k ->
// n-grams of s repeated k times, as Concat" and "Any other repetition ->
// ALL". A min of 0 naturally yields the empty string, whose ngram set is
// empty, which literalTree already maps to ALL — so Star/Quest need no
// special case beyond calling this with min=0.
func repetitionTree(sub *Hir, min int, n int) Tree {
	if sub.Op != syntax.OpLiteral || sub.Flags&syntax.FoldCase != 0 {
		return All{}
	}
	s := strings.Repeat(string(sub.Rune), min)
	return literalTree(s, n)
}

// literalTree implements the Literal row of the construction table.
func literalTree(s string, n int) Tree {
	grams := index.Ngrams([]byte(s), n)
	switch len(grams) {
	case 0:
		return All{}
	case 1:
		return Gram{G: grams[0]}
	default:
		subs := make([]Tree, len(grams))
		for i, g := range grams {
			subs[i] = Gram{G: g}
		}
		return Concat{Subs: subs}
	}
}
