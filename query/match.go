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

	"github.com/grafana/regexp"
)

// MatchRange is a byte offset range of a single match within a line,
// [Start, End).
type MatchRange struct {
	Start, End int
}

// Matcher is the regex matcher interface the query engine consumes
// rather than implements: given a candidate line, it returns every
// non-overlapping match as a byte offset range. Final verification is
// delegated to this interface; the engine never runs its own NFA/DFA.
type Matcher interface {
	MatchAll(line []byte) ([]MatchRange, error)
}

// CompiledMatcher adapts github.com/grafana/regexp, a drop-in,
// allocation-lighter fork of the stdlib regexp package, to Matcher.
type CompiledMatcher struct {
	re *regexp.Regexp
}

// NewMatcher compiles pattern with github.com/grafana/regexp.
func NewMatcher(pattern string) (*CompiledMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	return &CompiledMatcher{re: re}, nil
}

// MatchAll returns the non-overlapping matches of m's pattern within
// line, as byte offset ranges.
func (m *CompiledMatcher) MatchAll(line []byte) ([]MatchRange, error) {
	idx := m.re.FindAllIndex(line, -1)
	if idx == nil {
		return nil, nil
	}
	out := make([]MatchRange, len(idx))
	for i, p := range idx {
		out[i] = MatchRange{Start: p[0], End: p[1]}
	}
	return out, nil
}
