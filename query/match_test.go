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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiledMatcherFindsNonOverlapping(t *testing.T) {
	m, err := NewMatcher("ab")
	require.NoError(t, err)
	got, err := m.MatchAll([]byte("ababab"))
	require.NoError(t, err)
	assert.Equal(t, []MatchRange{{0, 2}, {2, 4}, {4, 6}}, got)
}

func TestCompiledMatcherNoMatch(t *testing.T) {
	m, err := NewMatcher("zzz")
	require.NoError(t, err)
	got, err := m.MatchAll([]byte("abcdef"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

// failingMatcher always errors, used to exercise the skip-and-continue
// behavior when a matcher fails on one line.
type failingMatcher struct{}

func (failingMatcher) MatchAll(line []byte) ([]MatchRange, error) {
	return nil, fmt.Errorf("boom")
}

func TestVerifyErrorSkipsLineAndContinues(t *testing.T) {
	store := buildStore(t, map[string]string{"a.txt": "abcdef\nabxyz\n"}, 3)

	q, err := Init(store, "abc")
	require.NoError(t, err)
	postings, err := q.LoadPostings(context.Background())
	require.NoError(t, err)
	cs := q.Evaluate(postings)

	result, err := q.Verify(context.Background(), cs, failingMatcher{})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	require.Len(t, result.Diagnostics, 1)
}
