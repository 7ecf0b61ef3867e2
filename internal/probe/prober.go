// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	vidio "github.com/AlexEidt/Vidio"
)

// Prober inspects a media file and returns its raw stream description
type Prober interface {
	Probe(ctx context.Context, path string) ([]byte, error)
}

// Backend names accepted by New
const (
	BackendFFprobe = "ffprobe"
	BackendVidio   = "vidio"
)

// New returns the prober for the configured backend
func New(backend, binary string) (Prober, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFFprobe:
		return NewFFprobe(binary)
	case BackendVidio:
		return &Vidio{}, nil
	default:
		return nil, fmt.Errorf("unknown probe backend %q", backend)
	}
}

// FFprobe runs the ffprobe binary for every probe
type FFprobe struct {
	binary string
}

// NewFFprobe resolves binary in PATH
func NewFFprobe(binary string) (*FFprobe, error) {
	if binary == "" {
		binary = "ffprobe"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffprobe binary: %w", err)
	}
	return &FFprobe{binary: path}, nil
}

func (f *FFprobe) Probe(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &InvocationError{Path: path, Err: err}
	}
	return out, nil
}

// Vidio probes through the Vidio library and renders the result in the
// same shape ffprobe produces, so cached entries stay interchangeable.
type Vidio struct{}

func (Vidio) Probe(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &InvocationError{Path: path, Err: err}
	}

	video, err := vidio.NewVideo(path)
	if err != nil {
		return nil, &InvocationError{Path: path, Err: err}
	}
	defer video.Close()

	width, height := video.Width(), video.Height()
	duration := strconv.FormatFloat(video.Duration(), 'f', -1, 64)

	return json.Marshal(rawOutput{Streams: []rawStream{{
		CodecName: video.Codec(),
		CodecType: "video",
		Width:     &width,
		Height:    &height,
		Duration:  &duration,
	}}})
}
