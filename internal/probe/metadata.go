// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package probe

import "fmt"

// State tells whether a Metadata record was actually determined
type State int

const (
	Unknown State = iota
	Known
)

func (s State) String() string {
	if s == Known {
		return "known"
	}
	return "unknown"
}

// UnknownCodec is reported for files that could not be probed
const UnknownCodec = "Unknown"

// Metadata describes the primary video stream of a media file
type Metadata struct {
	Codec    string  `json:"codec"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	State    State   `json:"-"`
}

// UnknownMetadata returns the "could not determine" variant
func UnknownMetadata() Metadata {
	return Metadata{Codec: UnknownCodec, State: Unknown}
}

// IsKnown reports whether the record came from a successful probe
func (m Metadata) IsKnown() bool {
	return m.State == Known
}

func (m Metadata) String() string {
	if !m.IsKnown() {
		return UnknownCodec
	}
	return fmt.Sprintf("%s %dx%d %.3fs", m.Codec, m.Width, m.Height, m.Duration)
}
