// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具
//
// Package plan decides which (source, profile) pairs still need a
// transcode. The output path of a pair is deterministic and is the
// idempotency key between runs.

package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZSC714725/shrinkr/internal/discover"
	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/probe"
	"github.com/ZSC714725/shrinkr/internal/profile"
)

// ErrDuplicateOutput means two tasks would write the same file
var ErrDuplicateOutput = errors.New("plan: duplicate output path")

// Task is one transcode to run
type Task struct {
	Command     string    `json:"command"`
	Args        []string  `json:"args"`
	Profile     string    `json:"profile"`
	SourcePath  string    `json:"source_path"`
	SourceMtime time.Time `json:"source_mtime"`
	OutputPath  string    `json:"output_path"`
	// Duration of the source in seconds, 0 when unknown
	Duration float64 `json:"duration,omitempty"`
}

// OutputPath inserts "-<marker>-<profile>" between the input's base name
// and the container extension: clip.mkv -> clip-shrinkr-x264-640.mp4
func OutputPath(input, marker, profileName, container string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	container = strings.TrimPrefix(container, ".")
	return fmt.Sprintf("%s-%s-%s.%s", base, marker, profileName, container)
}

// Generator builds plans against a metadata source
type Generator struct {
	Profiles profile.Set
	Source   discover.MetadataSource
	Marker   string
	Logger   logger.Logger
}

// Generate walks files × requested profiles (file-major) and returns a
// task for every pair whose output is missing or shorter than its source.
// Unknown profile names are warned about and skipped.
func (g *Generator) Generate(ctx context.Context, files, requested []string) []Task {
	log := g.Logger
	if log == nil {
		log = logger.Nop()
	}

	var tasks []Task
	warned := map[string]bool{}

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		info, err := os.Stat(file)
		if err != nil {
			log.Warn("plan: source %s: %v", file, err)
			continue
		}
		in := g.Source.Metadata(ctx, file)

		for _, name := range requested {
			p, err := g.Profiles.Get(name)
			if err != nil {
				if !warned[name] {
					log.Warn("plan: %v, skipping", err)
					warned[name] = true
				}
				continue
			}

			out := OutputPath(file, g.Marker, p.Name, p.Container)
			if !g.isStale(ctx, in, out) {
				log.Debug("plan: %s already transcoded to %s", file, filepath.Base(out))
				continue
			}

			cmd := p.Template.Build(file, out)
			tasks = append(tasks, Task{
				Command:     cmd.String(),
				Args:        cmd.Args,
				Profile:     p.Name,
				SourcePath:  file,
				SourceMtime: info.ModTime(),
				OutputPath:  out,
				Duration:    in.Duration,
			})
			log.Info("plan: %s needs transcoding (%s)", file, p.Name)
		}
	}

	return tasks
}

// isStale: output missing, or its duration is strictly below the source's.
// Unknown output metadata counts as zero duration.
func (g *Generator) isStale(ctx context.Context, in probe.Metadata, output string) bool {
	if _, err := os.Stat(output); err != nil {
		return true
	}

	out := g.Source.Metadata(ctx, output)

	return out.Duration < in.Duration || !in.IsKnown()
}

// Validate rejects plans in which two tasks share an output path
func Validate(tasks []Task) error {
	seen := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if j, ok := seen[t.OutputPath]; ok {
			return fmt.Errorf("%w: %s (tasks %d and %d)", ErrDuplicateOutput, t.OutputPath, j, i)
		}
		seen[t.OutputPath] = i
	}
	return nil
}
