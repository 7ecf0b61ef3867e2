// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package parse

import (
	"container/ring"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/shrinkr/internal/probe"
	"github.com/ZSC714725/shrinkr/internal/process"
)

// Progress holds FFmpeg progress info parsed from stderr
type Progress struct {
	Frame   uint64  `json:"frame"`
	Size    uint64  `json:"size_bytes"`
	Time    float64 `json:"time_seconds"`
	Speed   float64 `json:"speed"`
	Percent float64 `json:"percent"`
}

// Parser implements process.Parser and parses FFmpeg stderr
type Parser interface {
	process.Parser
	Progress() Progress
}

type parser struct {
	re struct {
		frame     *regexp.Regexp
		size      *regexp.Regexp
		sizeBytes *regexp.Regexp
		time      *regexp.Regexp
		timeUs    *regexp.Regexp
		speed     *regexp.Regexp
	}

	log      *ring.Ring
	logLines int
	duration float64
	onUpdate func(Progress)

	progress Progress
	lock     sync.RWMutex
}

// Config for the parser. Duration is the source length in seconds and
// enables Progress.Percent; OnUpdate is called after every progress line.
type Config struct {
	LogLines int
	Duration float64
	OnUpdate func(Progress)
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{
		logLines: config.LogLines,
		duration: config.Duration,
		onUpdate: config.OnUpdate,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.re.frame = regexp.MustCompile(`frame=\s*([0-9]+)`)
	p.re.size = regexp.MustCompile(`(?i)size=\s*([0-9]+)\s*ki?b`)
	p.re.sizeBytes = regexp.MustCompile(`total_size=\s*([0-9]+)`) // -progress 输出
	p.re.time = regexp.MustCompile(`(?:^|\s)time=\s*([0-9:.]+)`)
	p.re.timeUs = regexp.MustCompile(`out_time_us=\s*([0-9]+)`) // -progress 输出
	p.re.speed = regexp.MustCompile(`speed=\s*([0-9.]+)x`)

	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Parse(line string) uint64 {
	now := time.Now()
	isProgress := strings.Contains(line, "frame=") || strings.Contains(line, "out_time_us=")

	p.lock.Lock()
	p.log.Value = process.Line{Timestamp: now, Data: line}
	p.log = p.log.Next()
	if !isProgress {
		p.lock.Unlock()
		return 0
	}

	if m := p.re.frame.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Frame = x
		}
	}
	if m := p.re.size.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Size = x * 1024
		}
	}
	if m := p.re.sizeBytes.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Size = x
		}
	}
	// time=N/A and negative start offsets are left alone
	if m := p.re.time.FindStringSubmatch(line); m != nil {
		if x, err := probe.ParseTimestamp(m[1]); err == nil {
			p.progress.Time = x
		}
	}
	if m := p.re.timeUs.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.progress.Time = float64(x) / 1e6
		}
	}
	if m := p.re.speed.FindStringSubmatch(line); m != nil {
		if x, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.progress.Speed = x
		}
	}
	if p.duration > 0 {
		pct := p.progress.Time / p.duration * 100
		if pct > 100 {
			pct = 100
		}
		p.progress.Percent = pct
	}

	progress := p.progress
	p.lock.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(progress)
	}
	return progress.Frame + 1
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.progress = Progress{}
}

func (p *parser) ResetLog() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.log = ring.New(p.logLines)
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}

func (p *parser) Progress() Progress {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.progress
}
