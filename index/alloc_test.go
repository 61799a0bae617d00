// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorRegisterAssignsDenseIDs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("y"), 0o644))

	alloc := NewAllocator()
	id0, err := alloc.Register(a)
	require.NoError(t, err)
	id1, err := alloc.Register(b)
	require.NoError(t, err)

	assert.Equal(t, FileID(0), id0)
	assert.Equal(t, FileID(1), id1)
}

// Scenario 6: register the same canonical path twice -> AlreadyExists.
func TestAllocatorRegisterDuplicateFails(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	alloc := NewAllocator()
	_, err := alloc.Register(p)
	require.NoError(t, err)

	_, err = alloc.Register(p)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAllocatorFreezeBlocksFurtherRegister(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	alloc := NewAllocator()
	id, err := alloc.Register(p)
	require.NoError(t, err)

	frozen := alloc.Freeze()
	gotPath, ok := frozen.Path(id)
	require.True(t, ok)

	canon, err := canonicalize(p)
	require.NoError(t, err)
	assert.Equal(t, canon, gotPath)

	assert.Panics(t, func() { alloc.Register(filepath.Join(dir, "c.txt")) })
}
