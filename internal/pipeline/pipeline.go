// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具
//
// Package pipeline wires discovery, selection and plan generation together.

package pipeline

import (
	"context"
	"fmt"

	"github.com/ZSC714725/shrinkr/internal/config"
	"github.com/ZSC714725/shrinkr/internal/discover"
	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/plan"
	"github.com/ZSC714725/shrinkr/internal/profile"
)

// Planner turns a job into a transcode plan
type Planner struct {
	Job      *config.Job
	Profiles profile.Set
	Source   discover.MetadataSource
	Marker   string
	// Workers bounds concurrent probes during selection
	Workers int
	Logger  logger.Logger
}

// Report is the outcome of one planning pass
type Report struct {
	Discovered []string    `json:"discovered"`
	Selected   []string    `json:"selected"`
	Tasks      []plan.Task `json:"tasks"`
}

// Plan discovers the job's files, keeps those matching its selectors and
// returns the tasks still to run
func (p *Planner) Plan(ctx context.Context) (Report, error) {
	log := p.logger()

	filter, err := discover.JobFilter(p.Job)
	if err != nil {
		return Report{}, fmt.Errorf("job exclude: %w", err)
	}
	files, err := discover.Discover(p.Job, p.Marker, filter)
	if err != nil {
		return Report{}, err
	}
	log.Info("discovered %d files", len(files))

	selected := discover.NewSelector(p.Job, p.Source, p.Workers).Select(ctx, files)
	log.Info("%d files match the selectors", len(selected))

	gen := &plan.Generator{
		Profiles: p.Profiles,
		Source:   p.Source,
		Marker:   p.Marker,
		Logger:   log,
	}
	tasks := gen.Generate(ctx, selected, p.Job.OutputProfiles)
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	if err := plan.Validate(tasks); err != nil {
		return Report{}, err
	}
	log.Info("%d tasks planned", len(tasks))

	return Report{Discovered: files, Selected: selected, Tasks: tasks}, nil
}

// SumDurations adds up the known durations of files in seconds. Files
// without metadata count as zero.
func SumDurations(ctx context.Context, source discover.MetadataSource, files []string, log logger.Logger) float64 {
	if log == nil {
		log = logger.Nop()
	}
	sum := 0.0
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		md := source.Metadata(ctx, f)
		if !md.IsKnown() {
			log.Warn("no duration for %s", f)
			continue
		}
		log.Debug("%s: %.3fs", f, md.Duration)
		sum += md.Duration
	}
	return sum
}

func (p *Planner) logger() logger.Logger {
	if p.Logger == nil {
		return logger.Nop()
	}
	return p.Logger
}
