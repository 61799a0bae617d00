// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Fetcher is the pluggable byte-range read capability at query time. A
// host that wants to drive content-blob reads itself (an embedded or web
// deployment that cannot block on local disk I/O) only needs to supply
// one of these. It must return exactly the bytes written at that Range
// during build; no caching is required of an implementation (Store
// provides its own).
type Fetcher interface {
	Fetch(r Range) ([]byte, error)
}

// FileFetcher reads byte ranges directly from an *os.File with ReadAt
// (pread). It is safe for concurrent use: ReadAt does not share a file
// offset across calls.
type FileFetcher struct {
	f *os.File
}

// NewFileFetcher opens path read-only for random access.
func NewFileFetcher(path string) (*FileFetcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileFetcher{f: f}, nil
}

func (ff *FileFetcher) Fetch(r Range) ([]byte, error) {
	buf := make([]byte, r.Length)
	n, err := ff.f.ReadAt(buf, int64(r.Offset))
	if err != nil {
		return nil, fmt.Errorf("index: FileFetcher.Fetch %+v: %w", r, err)
	}
	return buf[:n], nil
}

// Close closes the underlying file.
func (ff *FileFetcher) Close() error {
	return ff.f.Close()
}

// MmapFetcher serves byte ranges from a memory-mapped content blob. The
// content blob file is opened read-only and may be read concurrently
// without locking: a read-only mmap never mutates under concurrent
// readers.
type MmapFetcher struct {
	f *os.File
	m mmap.MMap
}

// NewMmapFetcher memory-maps path read-only.
func NewMmapFetcher(path string) (*MmapFetcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("index: mmap %s: %w", path, err)
	}
	return &MmapFetcher{f: f, m: m}, nil
}

func (mf *MmapFetcher) Fetch(r Range) ([]byte, error) {
	end := r.Offset + uint64(r.Length)
	if end > uint64(len(mf.m)) {
		return nil, fmt.Errorf("index: MmapFetcher.Fetch %+v: %w: out of range", r, ErrCorruptIndex)
	}
	out := make([]byte, r.Length)
	copy(out, mf.m[r.Offset:end])
	return out, nil
}

// Close unmaps the content blob and closes the underlying file.
func (mf *MmapFetcher) Close() error {
	if err := mf.m.Unmap(); err != nil {
		mf.f.Close()
		return err
	}
	return mf.f.Close()
}
