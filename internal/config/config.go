// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMarker 输出文件名中的保留标记，含该标记的文件不会被当作输入
const DefaultMarker = "shrinkr"

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Probe    ProbeConfig    `yaml:"probe"`
	Cache    CacheConfig    `yaml:"cache"`
	Job      string         `yaml:"job"`
	Profiles string         `yaml:"profiles"`
	Marker   string         `yaml:"marker"`
	Executor ExecutorConfig `yaml:"executor"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path        string `yaml:"path"`
	MaxLogLines int    `yaml:"max_log_lines"`
}

// ProbeConfig 探测配置，backend 为 ffprobe 或 vidio
type ProbeConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// CacheConfig 探测缓存配置
type CacheConfig struct {
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"read_only"`
}

// ExecutorConfig 执行配置
type ExecutorConfig struct {
	Workers      int `yaml:"workers"`
	ProbeWorkers int `yaml:"probe_workers"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Bind: ":8080"},
		FFmpeg:   FFmpegConfig{Path: "ffmpeg", MaxLogLines: 100},
		Probe:    ProbeConfig{Backend: "ffprobe", Path: "ffprobe"},
		Cache:    CacheConfig{Path: defaultCachePath()},
		Job:      "job.json",
		Profiles: "profiles.json",
		Marker:   DefaultMarker,
		Executor: ExecutorConfig{Workers: 1, ProbeWorkers: 1},
	}
}

// Load 从 YAML 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 填充空值
	def := Default()
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
	if cfg.FFmpeg.Path == "" {
		cfg.FFmpeg.Path = def.FFmpeg.Path
	}
	if cfg.FFmpeg.MaxLogLines <= 0 {
		cfg.FFmpeg.MaxLogLines = def.FFmpeg.MaxLogLines
	}
	if cfg.Probe.Backend == "" {
		cfg.Probe.Backend = def.Probe.Backend
	}
	if cfg.Probe.Path == "" {
		cfg.Probe.Path = def.Probe.Path
	}
	if cfg.Job == "" {
		cfg.Job = def.Job
	}
	if cfg.Profiles == "" {
		cfg.Profiles = def.Profiles
	}
	if strings.TrimSpace(cfg.Marker) == "" {
		cfg.Marker = def.Marker
	}
	if cfg.Executor.Workers <= 0 {
		cfg.Executor.Workers = 1
	}
	if cfg.Executor.ProbeWorkers <= 0 {
		cfg.Executor.ProbeWorkers = 1
	}

	// 相对路径以配置文件所在目录为基准
	base := filepath.Dir(path)
	cfg.Job = resolve(base, cfg.Job)
	cfg.Profiles = resolve(base, cfg.Profiles)
	if cfg.Cache.Path != "" {
		cfg.Cache.Path = resolve(base, ExpandHome(cfg.Cache.Path))
	}

	return cfg, nil
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".shrinkr-cache.json"
	}
	return filepath.Join(dir, "shrinkr", "probe-cache.json")
}

func resolve(base, p string) string {
	p = ExpandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
