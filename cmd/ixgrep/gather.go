// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// gatherPaths expands a mix of plain paths, directories, and doublestar
// glob patterns (e.g. "src/**/*.go") into a flat, deduplicated list of
// every non-directory entry they name or contain.
// Glob expansion and directory walking are CLI concerns only; the index
// package itself just takes a list of file paths.
func gatherPaths(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) error {
		info, err := os.Lstat(p)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				if !seen[path] {
					seen[path] = true
					out = append(out, path)
				}
				return nil
			})
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
		return nil
	}

	for _, arg := range args {
		if !doublestar.ValidatePattern(arg) {
			if err := add(arg); err != nil {
				return nil, err
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			if err := add(arg); err != nil {
				return nil, err
			}
			continue
		}
		for _, m := range matches {
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
