// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package probe

import (
	"math"
	"strconv"
	"strings"
)

// ParseTimestamp converts a matroska style "HH:MM:SS.fffffffff" tag into
// seconds. Truncated or non-numeric values are an error, never zero.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, &MetadataError{Field: "DURATION", Reason: "want HH:MM:SS, got " + strconv.Quote(s)}
	}

	h, err := parseClockInt(parts[0])
	if err != nil {
		return 0, &MetadataError{Field: "DURATION", Reason: "bad hours in " + strconv.Quote(s)}
	}
	m, err := parseClockInt(parts[1])
	if err != nil || m >= 60 {
		return 0, &MetadataError{Field: "DURATION", Reason: "bad minutes in " + strconv.Quote(s)}
	}
	sec, err := parseClockSeconds(parts[2])
	if err != nil {
		return 0, &MetadataError{Field: "DURATION", Reason: "bad seconds in " + strconv.Quote(s)}
	}

	return float64(h*3600+m*60) + sec, nil
}

func parseClockInt(s string) (int, error) {
	if !isDigits(s, false) {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

func parseClockSeconds(s string) (float64, error) {
	// "15." and ".5" are truncated
	if !isDigits(s, true) || strings.HasSuffix(s, ".") || strings.HasPrefix(s, ".") {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v >= 60 {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func isDigits(s string, allowDot bool) bool {
	if s == "" {
		return false
	}
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && allowDot:
			dots++
		default:
			return false
		}
	}
	return dots <= 1
}

// parseSeconds parses ffprobe's numeric duration string ("64.290000").
// Only finite, non-negative values count.
func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &MetadataError{Field: "duration", Reason: "not a number: " + strconv.Quote(s)}
	}
	return v, nil
}
