// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package profile

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownProfile is returned when a job names a profile that isn't defined
var ErrUnknownProfile = errors.New("unknown output profile")

var reName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Profile is a named output configuration
type Profile struct {
	Name      string
	Template  Template
	Container string
}

// Definition is the on-disk form of a profile
type Definition struct {
	Command   string `yaml:"command" json:"command"`
	Container string `yaml:"container" json:"container"`
}

// Set holds profiles by name
type Set map[string]Profile

// New validates a definition and builds a Profile
func New(name string, def Definition) (Profile, error) {
	name = strings.TrimSpace(name)
	if !reName.MatchString(name) {
		return Profile{}, fmt.Errorf("invalid profile name %q", name)
	}

	tmpl, err := ParseTemplate(def.Command)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", name, err)
	}

	container := strings.TrimPrefix(strings.TrimSpace(def.Container), ".")
	if container == "" || strings.ContainsAny(container, `/\. `) {
		return Profile{}, fmt.Errorf("profile %s: invalid container %q", name, def.Container)
	}

	return Profile{Name: name, Template: tmpl, Container: container}, nil
}

// Parse decodes profile definitions. YAML is a superset of JSON, so both
// formats are accepted.
func Parse(data []byte) (Set, error) {
	var defs map[string]Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	set := make(Set, len(defs))
	for name, def := range defs {
		p, err := New(name, def)
		if err != nil {
			return nil, err
		}
		set[p.Name] = p
	}
	return set, nil
}

// Load reads profile definitions from path
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Get resolves a profile by name
func (s Set) Get(name string) (Profile, error) {
	p, ok := s[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the profile names sorted
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
