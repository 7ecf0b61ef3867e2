// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoInputFolders = errors.New("job: input_folders is empty")
	ErrNoInputExts    = errors.New("job: input_exts is empty")
	ErrNoProfiles     = errors.New("job: output_profiles is empty")
)

// Job 一次运行的任务描述，运行期间不可变
type Job struct {
	InputFolders   []string `yaml:"input_folders" json:"input_folders"`
	InputExts      []string `yaml:"input_exts" json:"input_exts"`
	SelectCodecs   []string `yaml:"select_codecs" json:"select_codecs"`
	SelectHeights  []int    `yaml:"select_heights" json:"select_heights"`
	OutputProfiles []string `yaml:"output_profiles" json:"output_profiles"`

	// Exclude holds regular expressions; matching paths are never inputs
	Exclude []string `yaml:"exclude" json:"exclude,omitempty"`
}

// ParseJob decodes a job description (YAML or JSON)
func ParseJob(data []byte) (*Job, error) {
	job := &Job{}
	if err := yaml.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	job.normalize()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// LoadJob reads a job file
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseJob(data)
}

// Validate checks the job has something to do
func (j *Job) Validate() error {
	if len(j.InputFolders) == 0 {
		return ErrNoInputFolders
	}
	if len(j.InputExts) == 0 {
		return ErrNoInputExts
	}
	if len(j.OutputProfiles) == 0 {
		return ErrNoProfiles
	}
	return nil
}

func (j *Job) normalize() {
	j.InputFolders = trimAll(j.InputFolders)
	j.InputExts = trimAll(j.InputExts)
	j.SelectCodecs = trimAll(j.SelectCodecs)
	j.OutputProfiles = trimAll(j.OutputProfiles)
	for i, f := range j.InputFolders {
		j.InputFolders[i] = ExpandHome(f)
	}
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
