// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZSC714725/shrinkr/internal/api"
	"github.com/ZSC714725/shrinkr/internal/cache"
	"github.com/ZSC714725/shrinkr/internal/config"
	"github.com/ZSC714725/shrinkr/internal/discover"
	"github.com/ZSC714725/shrinkr/internal/ffmpeg"
	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/pipeline"
	"github.com/ZSC714725/shrinkr/internal/probe"
	"github.com/ZSC714725/shrinkr/internal/profile"
	"github.com/ZSC714725/shrinkr/internal/task"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	lg := logger.New("shrinkr", opts.level())

	job, err := config.LoadJob(cfg.Job)
	if err != nil {
		log.Fatalf("Load job: %v", err)
	}
	if err := job.Validate(); err != nil {
		log.Fatalf("Job %s: %v", cfg.Job, err)
	}
	profiles, err := profile.Load(cfg.Profiles)
	if err != nil {
		log.Fatalf("Load profiles: %v", err)
	}

	prober, err := probe.New(cfg.Probe.Backend, cfg.Probe.Path)
	if err != nil {
		log.Fatalf("Probe init: %v", err)
	}
	var cacheOpts []cache.Option
	if cfg.Cache.ReadOnly {
		cacheOpts = append(cacheOpts, cache.WithReadOnly())
	}
	probeCache, err := cache.Open(cfg.Cache.Path, prober, lg, cacheOpts...)
	if err != nil {
		log.Fatalf("Open cache: %v", err)
	}
	lg.Debug("probe cache %s holds %d entries", probeCache.Path(), probeCache.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	planner := &pipeline.Planner{
		Job:      job,
		Profiles: profiles,
		Source:   probeCache,
		Marker:   cfg.Marker,
		Workers:  cfg.Executor.ProbeWorkers,
		Logger:   lg,
	}

	if opts.mode() == modeSumDurations {
		filter, err := discover.JobFilter(job)
		if err != nil {
			log.Fatalf("Job exclude: %v", err)
		}
		files, err := discover.Discover(job, cfg.Marker, filter)
		if err != nil {
			log.Fatalf("Discover: %v", err)
		}
		lg.Info("Total duration of files is: %.3f seconds", pipeline.SumDurations(ctx, probeCache, files, lg))
		return
	}

	if opts.mode() == modeServe {
		runServer(ctx, cfg.Server.Bind, cfg, planner, probeCache, profiles, lg)
		return
	}

	report, err := planner.Plan(ctx)
	if err != nil {
		log.Fatalf("Plan: %v", err)
	}

	executor := &task.Executor{Store: task.NewStore(), Workers: cfg.Executor.Workers, Logger: lg}
	if opts.mode() == modeDryRun {
		executor.Execute(ctx, report.Tasks, true)
		return
	}

	ff, err := ffmpeg.New(ffmpeg.Config{Binary: cfg.FFmpeg.Path, MaxLogLines: cfg.FFmpeg.MaxLogLines, Logger: lg})
	if err != nil {
		log.Fatalf("FFmpeg init: %v", err)
	}
	preflight(ff, profiles, job.OutputProfiles, lg)
	executor.Runner = ff

	failed := 0
	for _, r := range executor.Execute(ctx, report.Tasks, false) {
		if r.State != task.StateSuccess {
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// preflight warns about profiles whose encoders this ffmpeg lacks
func preflight(ff *ffmpeg.FFmpeg, profiles profile.Set, requested []string, lg logger.Logger) {
	for _, name := range requested {
		p, err := profiles.Get(name)
		if err != nil {
			continue
		}
		if missing := ff.MissingEncoders(p.Template.Build("input", "output").Args); len(missing) > 0 {
			lg.Warn("profile %s needs encoders missing from %s: %v", name, ff.Binary(), missing)
		}
	}
}

func runServer(ctx context.Context, bind string, cfg *config.Config, planner *pipeline.Planner, c *cache.Cache, profiles profile.Set, lg logger.Logger) {
	store := task.NewStore()
	apiCfg := api.Config{
		Planner:  planner,
		Store:    store,
		Cache:    c,
		Profiles: profiles,
		Logger:   lg,
	}

	ff, err := ffmpeg.New(ffmpeg.Config{Binary: cfg.FFmpeg.Path, MaxLogLines: cfg.FFmpeg.MaxLogLines, Logger: lg})
	if err != nil {
		lg.Warn("ffmpeg unavailable, runs are disabled: %v", err)
	} else {
		apiCfg.Encoders = ff
		apiCfg.Executor = &task.Executor{Runner: ff, Store: store, Workers: cfg.Executor.Workers, Logger: lg}
	}

	handler := api.NewHandler(ctx, apiCfg)
	srv := &http.Server{Addr: bind, Handler: api.NewRouter(handler)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	lg.Info("Shrinkr listening on %s", bind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server: %v", err)
	}
	handler.Wait()
}
