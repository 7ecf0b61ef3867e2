// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具
//
// Package cache memoizes probe results per absolute path. An entry is valid
// only while the file's modification time equals the one stored with it.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/probe"
)

var ErrReadOnly = errors.New("cache: read-only")

// Entry is a cached probe result
type Entry struct {
	Path      string
	Mtime     time.Time
	Metadata  probe.Metadata
	ProbeData json.RawMessage
}

// record is the persisted form of an Entry
type record struct {
	Datetime  time.Time       `json:"datetime"`
	ProbeData json.RawMessage `json:"probe_data"`
}

// Cache 探测结果缓存，落盘为 JSON
type Cache struct {
	path     string
	prober   probe.Prober
	logger   logger.Logger
	readOnly bool

	mu      sync.Mutex
	entries map[string]Entry
}

// Option configures a Cache
type Option func(*Cache)

// WithReadOnly keeps new entries in memory only
func WithReadOnly() Option {
	return func(c *Cache) { c.readOnly = true }
}

// Open loads the persisted cache at path. A missing file is an empty cache;
// an empty path disables persistence altogether.
func Open(path string, prober probe.Prober, log logger.Logger, opts ...Option) (*Cache, error) {
	if prober == nil {
		return nil, fmt.Errorf("cache: no prober given")
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Cache{
		path:    path,
		prober:  prober,
		logger:  log,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}

	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return c, nil
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cache %s: %w", path, err)
	}

	for p, r := range records {
		md, err := probe.Parse(r.ProbeData)
		if err != nil {
			log.Warn("cache: dropping entry %s: %v", p, err)
			continue
		}
		c.entries[p] = Entry{Path: p, Mtime: r.Datetime, Metadata: md, ProbeData: r.ProbeData}
	}
	log.Debug("cache: loaded %d entries from %s", len(c.entries), path)

	return c, nil
}

// Metadata returns the metadata for path, probing when no valid entry
// exists. Failures yield probe.UnknownMetadata() and are never cached.
func (c *Cache) Metadata(ctx context.Context, path string) probe.Metadata {
	abs, err := filepath.Abs(path)
	if err != nil {
		c.logger.Warn("cache: %s: %v", path, err)
		return probe.UnknownMetadata()
	}

	info, err := os.Stat(abs)
	if err != nil {
		c.invalidate(abs)
		c.logger.Debug("cache: %s: %v", abs, err)
		return probe.UnknownMetadata()
	}
	mtime := info.ModTime()

	if md, ok := c.Lookup(abs, mtime); ok {
		return md
	}

	// probe outside the lock, other files may be probed concurrently
	raw, err := c.prober.Probe(ctx, abs)
	if err != nil {
		c.logger.Warn("cache: %v", err)
		return probe.UnknownMetadata()
	}

	md, err := probe.Parse(raw)
	if err != nil {
		c.logger.Error("cache: %s: %v", abs, err)
		return probe.UnknownMetadata()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[abs] = Entry{Path: abs, Mtime: mtime, Metadata: md, ProbeData: json.RawMessage(raw)}
	if err := c.save(); err != nil && !errors.Is(err, ErrReadOnly) {
		c.logger.Error("cache: save %s: %v", c.path, err)
	}

	return md
}

// Lookup returns the cached metadata when the stored mtime equals mtime
func (c *Cache) Lookup(path string, mtime time.Time) (probe.Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok || !e.Mtime.Equal(mtime) {
		return probe.Metadata{}, false
	}
	return e.Metadata, true
}

func (c *Cache) invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Save writes the full cache to its backing file
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save()
}

// save must be called with c.mu held
func (c *Cache) save() error {
	if c.path == "" {
		return nil
	}
	if c.readOnly {
		return ErrReadOnly
	}

	records := make(map[string]record, len(c.entries))
	for p, e := range c.entries {
		records[p] = record{Datetime: e.Mtime, ProbeData: e.ProbeData}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(c.path, data)
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a snapshot sorted by path
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Path returns the backing file
func (c *Cache) Path() string {
	return c.path
}
