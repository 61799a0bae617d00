// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// config is the optional .ixgrep.toml settings file. CLI flags always take
// precedence over a value set here; a flag's zero value means "not set" and
// falls back to the config, then to the flag's own default. store_dir is
// parsed but no command reads it: the --out and --store flags are
// required.
type config struct {
	NgramLen int    `toml:"ngram_len"`
	StoreDir string `toml:"store_dir"`
	Mmap     bool   `toml:"mmap"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
