// Copyright 2011 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ixgrep builds and queries an n-gram index for regex grep over
// large text corpora.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/jbowens/ixgrep/index"
	"github.com/jbowens/ixgrep/query"
)

func main() {
	app := &cli.App{
		Name:  "ixgrep",
		Usage: "indexed regular-expression search over large text corpora",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a .ixgrep.toml settings file",
				Value: ".ixgrep.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug-level logging",
			},
		},
		Commands: []*cli.Command{
			buildCommand,
			queryCommand,
			mergeCommand,
			checkCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ixgrep: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if c.Bool("verbose") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

var buildCommand = &cli.Command{
	Name:      "build",
	Usage:     "build an index store from one or more files, directories, or glob patterns",
	ArgsUsage: "[path...]",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "ngram-len",
			Usage: "n-gram length used to extract index keys (overrides config's ngram_len)",
		},
		&cli.StringFlag{
			Name:     "out",
			Usage:    "output store name; writes <out>.map and <out>.dat",
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer log.Sync()

		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ngramLen := c.Int("ngram-len")
		if ngramLen == 0 {
			ngramLen = cfg.NgramLen
		}
		if ngramLen == 0 {
			ngramLen = 3
		}

		paths, err := gatherPaths(c.Args().Slice())
		if err != nil {
			return fmt.Errorf("gather paths: %w", err)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no input files matched")
		}
		log.Infow("gathered files", "count", len(paths))

		alloc := index.NewAllocator()
		built, report, err := index.BuildFromPaths(context.Background(), alloc, paths, ngramLen)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		for _, skip := range report.Skipped {
			log.Warnw("skipped file", "path", skip.Path, "error", skip.Err)
		}

		out := c.String("out")
		if err := index.WriteStoreFiles(built, out+".map", out+".dat"); err != nil {
			return fmt.Errorf("write store: %w", err)
		}

		mapInfo, _ := os.Stat(out + ".map")
		datInfo, _ := os.Stat(out + ".dat")
		log.Infow("built store",
			"files", len(built.Files),
			"ngrams", len(built.Postings),
			"map_size", humanize.IBytes(uint64(mapInfo.Size())),
			"dat_size", humanize.IBytes(uint64(datInfo.Size())),
		)
		return nil
	},
}

var queryCommand = &cli.Command{
	Name:      "query",
	Usage:     "run a regular expression query against a built store",
	ArgsUsage: "<pattern>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "store",
			Usage:    "store name; reads <store>.map and <store>.dat",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "mmap",
			Usage: "memory-map the content blob instead of using pread (overrides config's mmap)",
		},
	},
	Action: func(c *cli.Context) error {
		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer log.Sync()

		if c.NArg() != 1 {
			return fmt.Errorf("usage: ixgrep query --store=<store> <pattern>")
		}
		pattern := c.Args().First()

		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		useMmap := c.Bool("mmap") || cfg.Mmap

		storeName := c.String("store")
		store, err := index.OpenFiles(storeName+".map", storeName+".dat", useMmap)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		result, err := query.Run(context.Background(), store, pattern)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if result.NoPruning {
			log.Warnw("pattern could not be pruned by the n-gram index; verified every indexed line", "pattern", pattern)
		}
		for _, diag := range result.Diagnostics {
			log.Warnw("skipped line during verification", "error", diag)
		}
		for _, hit := range result.Hits {
			fmt.Printf("%s:%d\n", hit.Path, hit.Line)
		}
		log.Infow("query complete", "hits", len(result.Hits))
		return nil
	},
}

var mergeCommand = &cli.Command{
	Name:      "merge",
	Usage:     "merge several built stores into one, renumbering file IDs",
	ArgsUsage: "<store1> [store2...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "out",
			Usage:    "output store name; writes <out>.map and <out>.dat",
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer log.Sync()

		if c.NArg() < 1 {
			return fmt.Errorf("usage: ixgrep merge --out=<out> <store1> [store2...]")
		}

		var stores []*index.Store
		for _, name := range c.Args().Slice() {
			s, err := index.OpenFiles(name+".map", name+".dat", false)
			if err != nil {
				return fmt.Errorf("open store %s: %w", name, err)
			}
			defer s.Close()
			stores = append(stores, s)
		}

		built, err := index.Merge(stores...)
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}

		out := c.String("out")
		if err := index.WriteStoreFiles(built, out+".map", out+".dat"); err != nil {
			return fmt.Errorf("write store: %w", err)
		}
		log.Infow("merged stores", "inputs", len(stores), "files", len(built.Files))
		return nil
	},
}

var checkCommand = &cli.Command{
	Name:  "check",
	Usage: "validate a store's internal consistency",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "store",
			Usage:    "store name; reads <store>.map and <store>.dat",
			Required: true,
		},
	},
	Action: func(c *cli.Context) error {
		storeName := c.String("store")
		store, err := index.OpenFiles(storeName+".map", storeName+".dat", false)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		if err := store.Check(); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}
		fmt.Println("ok")
		return nil
	},
}
