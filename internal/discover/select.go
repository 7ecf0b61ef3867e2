// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package discover

import (
	"context"
	"strings"
	"sync"

	"github.com/ZSC714725/shrinkr/internal/config"
	"github.com/ZSC714725/shrinkr/internal/probe"
)

// MetadataSource resolves metadata for a path, e.g. *cache.Cache
type MetadataSource interface {
	Metadata(ctx context.Context, path string) probe.Metadata
}

// Selector keeps files whose codec and height are in the job's sets.
// An empty set places no constraint on that dimension; unknown metadata
// never matches.
type Selector struct {
	source  MetadataSource
	codecs  map[string]bool
	heights map[int]bool
	workers int
}

// NewSelector builds a selector for job. workers bounds concurrent probes.
func NewSelector(job *config.Job, source MetadataSource, workers int) *Selector {
	s := &Selector{
		source:  source,
		codecs:  make(map[string]bool, len(job.SelectCodecs)),
		heights: make(map[int]bool, len(job.SelectHeights)),
		workers: workers,
	}
	for _, c := range job.SelectCodecs {
		s.codecs[strings.ToLower(c)] = true
	}
	for _, h := range job.SelectHeights {
		s.heights[h] = true
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	return s
}

// Matches reports whether path passes both selectors
func (s *Selector) Matches(ctx context.Context, path string) bool {
	return s.accepts(s.source.Metadata(ctx, path))
}

func (s *Selector) accepts(md probe.Metadata) bool {
	if !md.IsKnown() {
		return false
	}
	if len(s.codecs) > 0 && !s.codecs[strings.ToLower(md.Codec)] {
		return false
	}
	if len(s.heights) > 0 && !s.heights[md.Height] {
		return false
	}
	return true
}

// Select filters paths, keeping their order
func (s *Selector) Select(ctx context.Context, paths []string) []string {
	keep := make([]bool, len(paths))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, p := range paths {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p string) {
			defer wg.Done()
			defer func() { <-sem }()
			keep[i] = s.Matches(ctx, p)
		}(i, p)
	}
	wg.Wait()

	var out []string
	for i, p := range paths {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
