// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

// Package probetest provides an in-memory prober for tests.
package probetest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ZSC714725/shrinkr/internal/probe"
)

// ErrNoSuchFile is returned for paths the fake knows nothing about
var ErrNoSuchFile = errors.New("exit status 1")

// Stream renders an ffprobe style description of one video stream
func Stream(codec string, width, height int, duration float64) []byte {
	return []byte(fmt.Sprintf(
		`{"streams":[{"index":0,"codec_name":%q,"codec_type":"video","width":%d,"height":%d,"duration":%q}]}`,
		codec, width, height, strconv.FormatFloat(duration, 'f', 6, 64)))
}

// Fake answers probes from a path keyed table. Keys are matched by base
// name when no absolute path entry exists.
type Fake struct {
	mu      sync.Mutex
	answers map[string][]byte
	calls   map[string]int
}

// New creates an empty Fake
func New() *Fake {
	return &Fake{
		answers: make(map[string][]byte),
		calls:   make(map[string]int),
	}
}

// Set registers the raw answer for a path or base name
func (f *Fake) Set(key string, raw []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[key] = raw
}

// SetStream is Set(key, Stream(...))
func (f *Fake) SetStream(key, codec string, width, height int, duration float64) {
	f.Set(key, Stream(codec, width, height, duration))
}

// Calls returns how often path was probed
func (f *Fake) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// TotalCalls sums all probes
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *Fake) Probe(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[path]++
	if raw, ok := f.answers[path]; ok {
		return raw, nil
	}
	if raw, ok := f.answers[filepath.Base(path)]; ok {
		return raw, nil
	}
	return nil, &probe.InvocationError{Path: path, Err: ErrNoSuchFile}
}
