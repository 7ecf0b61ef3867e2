// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package probe

import (
	"encoding/json"
	"sort"
	"strings"
)

// tagDurationCodecs store their duration only as a matroska "DURATION"
// tag in HH:MM:SS.fffffffff form.
var tagDurationCodecs = map[string]bool{
	"vp8": true,
	"vp9": true,
	"av1": true,
}

// rawOutput mirrors `ffprobe -print_format json -show_streams -select_streams v:0`
type rawOutput struct {
	Streams []rawStream `json:"streams"`
}

type rawStream struct {
	CodecName string            `json:"codec_name"`
	CodecType string            `json:"codec_type"`
	Width     *int              `json:"width"`
	Height    *int              `json:"height"`
	Duration  *string           `json:"duration"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Parse turns a raw stream description into Metadata. The first stream is
// the selected video stream.
func Parse(raw []byte) (Metadata, error) {
	var out rawOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return UnknownMetadata(), &MetadataError{Reason: err.Error()}
	}
	if len(out.Streams) == 0 {
		return UnknownMetadata(), &MetadataError{Field: "streams", Reason: "no video stream"}
	}

	s := out.Streams[0]
	codec := strings.TrimSpace(s.CodecName)
	if codec == "" {
		return UnknownMetadata(), &MetadataError{Field: "codec_name", Reason: "missing"}
	}
	if s.Width == nil {
		return UnknownMetadata(), &MetadataError{Field: "width", Reason: "missing"}
	}
	if s.Height == nil {
		return UnknownMetadata(), &MetadataError{Field: "height", Reason: "missing"}
	}

	d, err := streamDuration(codec, s)
	if err != nil {
		return UnknownMetadata(), err
	}

	return Metadata{
		Codec:    codec,
		Width:    *s.Width,
		Height:   *s.Height,
		Duration: d,
		State:    Known,
	}, nil
}

func streamDuration(codec string, s rawStream) (float64, error) {
	tag, hasTag := durationTag(s.Tags)

	if tagDurationCodecs[strings.ToLower(codec)] {
		if !hasTag {
			return 0, &MetadataError{Field: "DURATION", Reason: "missing tag for " + codec}
		}
		return ParseTimestamp(tag)
	}

	if s.Duration != nil {
		return parseSeconds(*s.Duration)
	}
	// mkv muxed h264/hevc have no stream duration either
	if hasTag {
		return ParseTimestamp(tag)
	}
	return 0, &MetadataError{Field: "duration", Reason: "missing"}
}

// durationTag finds DURATION, or else the lexically first
// language-suffixed variant such as DURATION-eng
func durationTag(tags map[string]string) (string, bool) {
	if v, ok := tags["DURATION"]; ok {
		return v, true
	}
	var keys []string
	for k := range tags {
		if strings.HasPrefix(strings.ToUpper(k), "DURATION") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return tags[keys[0]], true
}
