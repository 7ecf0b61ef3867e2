// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package discover

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter decides whether a discovered path is eligible as input
type Filter interface {
	IsValid(path string) bool
}

type filter struct {
	allow []*regexp.Regexp
	block []*regexp.Regexp
}

// NewFilter creates a new Filter. Empty expressions are ignored; with no
// allow expressions every path not blocked is valid.
func NewFilter(allow, block []string) (Filter, error) {
	f := &filter{}

	for _, exp := range allow {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid allow expression '%s': %w", exp, err)
		}
		f.allow = append(f.allow, re)
	}

	for _, exp := range block {
		exp = strings.TrimSpace(exp)
		if exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid block expression '%s': %w", exp, err)
		}
		f.block = append(f.block, re)
	}

	return f, nil
}

func (f *filter) IsValid(path string) bool {
	for _, e := range f.block {
		if e.MatchString(path) {
			return false
		}
	}
	if len(f.allow) == 0 {
		return true
	}
	for _, e := range f.allow {
		if e.MatchString(path) {
			return true
		}
	}
	return false
}
