// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/shrinkr/internal/ffmpeg/parse"
	"github.com/ZSC714725/shrinkr/internal/ffmpeg/skills"
	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/plan"
	"github.com/ZSC714725/shrinkr/internal/process"
	"github.com/ZSC714725/shrinkr/internal/task"
)

// Config for FFmpeg
type Config struct {
	Binary         string
	MaxLogLines    int
	SampleInterval time.Duration
	Logger         logger.Logger
}

// FFmpeg owns the resolved binary and its detected skills. It runs plan
// tasks as a task.Runner.
type FFmpeg struct {
	binary         string
	logLines       int
	sampleInterval time.Duration
	logger         logger.Logger

	skills     skills.Skills
	skillsLock sync.RWMutex
}

// New resolves the binary and reads its skills
func New(config Config) (*FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}

	f := &FFmpeg{
		binary:         binary,
		logLines:       config.MaxLogLines,
		sampleInterval: config.SampleInterval,
		logger:         config.Logger,
	}
	if f.logLines <= 0 {
		f.logLines = 100
	}
	if f.logger == nil {
		f.logger = logger.Nop()
	}

	s, err := skills.New(f.binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg: %w", err)
	}
	f.skills = s

	return f, nil
}

// Binary is the resolved path of the ffmpeg executable
func (f *FFmpeg) Binary() string {
	return f.binary
}

func (f *FFmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *FFmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	return nil
}

// MissingEncoders lists the encoders named in args that this ffmpeg build
// does not provide. "copy" is always available.
func (f *FFmpeg) MissingEncoders(args []string) []string {
	s := f.Skills()
	var missing []string
	for _, enc := range Encoders(args) {
		if !s.HasEncoder(enc) {
			missing = append(missing, enc)
		}
	}
	return missing
}

// Encoders returns the encoder names selected by -c/-codec/-vcodec/-acodec
// options (with or without stream specifiers), without duplicates
func Encoders(args []string) []string {
	seen := map[string]bool{}
	var out []string
	for i := 0; i+1 < len(args); i++ {
		if !isCodecOption(args[i]) {
			continue
		}
		enc := args[i+1]
		i++
		if enc == "copy" || seen[enc] {
			continue
		}
		seen[enc] = true
		out = append(out, enc)
	}
	return out
}

func isCodecOption(arg string) bool {
	name, _, _ := strings.Cut(arg, ":")
	switch name {
	case "-c", "-codec", "-vcodec", "-acodec", "-scodec":
		return true
	}
	return false
}

// Run executes the task's command. A program named ffmpeg is replaced by
// the resolved binary and gets -y, since a stale output is overwritten.
func (f *FFmpeg) Run(ctx context.Context, t plan.Task, report func(task.Progress)) (task.Usage, error) {
	if len(t.Args) == 0 {
		return task.Usage{}, process.ErrNoBinary
	}

	binary, args := t.Args[0], t.Args[1:]
	if isFFmpeg(binary) {
		binary = f.binary
		args = withOverwrite(args)
	}

	parser := parse.New(parse.Config{
		LogLines: f.logLines,
		Duration: t.Duration,
		OnUpdate: func(p parse.Progress) {
			if report != nil {
				report(task.Progress{Frame: p.Frame, Time: p.Time, Speed: p.Speed, Percent: p.Percent})
			}
		},
	})

	res, err := process.Run(ctx, process.Config{
		Binary:         binary,
		Args:           args,
		Parser:         parser,
		Sampler:        process.NewSysSampler(),
		SampleInterval: f.sampleInterval,
		Logger:         f.logger,
		OnStateChange: func(from, to string) {
			f.logger.Debug("ffmpeg %s: %s -> %s", filepath.Base(t.OutputPath), from, to)
		},
	})
	usage := task.Usage{CPU: res.CPU, Memory: res.Memory}
	if err != nil {
		for _, l := range parser.Log() {
			f.logger.Debug("ffmpeg: %s", l.Data)
		}
		return usage, err
	}
	return usage, nil
}

func isFFmpeg(program string) bool {
	name := strings.TrimSuffix(filepath.Base(program), ".exe")
	return name == "ffmpeg"
}

func withOverwrite(args []string) []string {
	for _, a := range args {
		if a == "-y" || a == "-n" {
			return args
		}
	}
	return append([]string{"-y", "-nostdin"}, args...)
}
