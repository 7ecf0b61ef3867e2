// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZSC714725/shrinkr/internal/config"
)

// Discover expands every (folder, extension glob) pair of the job into a
// sorted, de-duplicated list of absolute file paths. Paths containing
// marker anywhere are dropped, so earlier outputs are never rediscovered
// as inputs. Missing folders simply contribute nothing.
func Discover(job *config.Job, marker string, filters ...Filter) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	for _, root := range job.InputFolders {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		for _, ext := range job.InputExts {
			matches, err := filepath.Glob(filepath.Join(absRoot, ext))
			if err != nil {
				return nil, fmt.Errorf("glob %s in %s: %w", ext, root, err)
			}
			for _, abs := range matches {
				if HasMarker(abs, marker) {
					continue
				}
				if _, dup := seen[abs]; dup {
					continue
				}
				seen[abs] = struct{}{}

				info, err := os.Stat(abs)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				files = append(files, abs)
			}
		}
	}

	sort.Strings(files)

	out := files[:0]
	for _, f := range files {
		if valid(f, filters) {
			out = append(out, f)
		}
	}
	return out, nil
}

// HasMarker reports whether the absolute path contains marker
func HasMarker(path, marker string) bool {
	return marker != "" && strings.Contains(path, marker)
}

// JobFilter builds the exclusion filter from job.Exclude
func JobFilter(job *config.Job) (Filter, error) {
	return NewFilter(nil, job.Exclude)
}

func valid(path string, filters []Filter) bool {
	for _, f := range filters {
		if f != nil && !f.IsValid(path) {
			return false
		}
	}
	return true
}
