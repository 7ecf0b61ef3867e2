// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package main

import (
	"flag"

	"github.com/ZSC714725/shrinkr/internal/config"
	"github.com/ZSC714725/shrinkr/internal/logger"
)

// mode 一次调用要做的事
type mode int

const (
	modeDryRun mode = iota
	modeExecute
	modeServe
	modeSumDurations
)

func (m mode) String() string {
	switch m {
	case modeExecute:
		return "execute"
	case modeServe:
		return "serve"
	case modeSumDurations:
		return "sum-durations"
	default:
		return "dry-run"
	}
}

// options 命令行参数
type options struct {
	configPath   string
	jobPath      string
	profilesPath string
	cachePath    string
	bind         string
	verbosity    string
	workers      int
	execute      bool
	serve        bool
	sumDurations bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("shrinkr", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to YAML config file")
	fs.StringVar(&o.jobPath, "job", "", "Job file (overrides config)")
	fs.StringVar(&o.profilesPath, "profiles", "", "Profiles file (overrides config)")
	fs.StringVar(&o.cachePath, "cache", "", "Probe cache file (overrides config)")
	fs.BoolVar(&o.execute, "execute", false, "Run the plan instead of printing it")
	fs.IntVar(&o.workers, "workers", 0, "Concurrent transcodes (overrides config)")
	fs.StringVar(&o.verbosity, "v", "info", "Log level: error, warn, info, debug or 0..3")
	fs.BoolVar(&o.sumDurations, "sum-durations", false, "Log the total duration of the discovered files and exit")
	fs.BoolVar(&o.serve, "serve", false, "Serve the status API instead of running once")
	fs.StringVar(&o.bind, "bind", "", "Status API address (overrides server.bind)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

// mode picks one action. -sum-durations only reports, even with -execute.
func (o *options) mode() mode {
	switch {
	case o.sumDurations:
		return modeSumDurations
	case o.serve:
		return modeServe
	case o.execute:
		return modeExecute
	default:
		return modeDryRun
	}
}

func (o *options) level() logger.Level {
	return logger.ParseLevel(o.verbosity)
}

// loadConfig reads -config, or the defaults, and applies flag overrides
func (o *options) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	}
	o.apply(cfg)
	return cfg, nil
}

func (o *options) apply(cfg *config.Config) {
	if o.jobPath != "" {
		cfg.Job = o.jobPath
	}
	if o.profilesPath != "" {
		cfg.Profiles = o.profilesPath
	}
	if o.cachePath != "" {
		cfg.Cache.Path = config.ExpandHome(o.cachePath)
	}
	if o.workers > 0 {
		cfg.Executor.Workers = o.workers
	}
	if o.bind != "" {
		cfg.Server.Bind = o.bind
	}
}
