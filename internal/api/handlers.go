// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具
//
// Package api serves plan and run status over HTTP.

package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/shrinkr/internal/cache"
	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/pipeline"
	"github.com/ZSC714725/shrinkr/internal/plan"
	"github.com/ZSC714725/shrinkr/internal/profile"
	"github.com/ZSC714725/shrinkr/internal/task"
)

// Planner produces the current plan, e.g. *pipeline.Planner
type Planner interface {
	Plan(ctx context.Context) (pipeline.Report, error)
}

// Executor runs tasks, e.g. *task.Executor
type Executor interface {
	Execute(ctx context.Context, tasks []plan.Task, dryRun bool) []task.Result
}

// Config holds handler dependencies. Encoders may be nil when no ffmpeg
// binary was found.
type Config struct {
	Planner  Planner
	Executor Executor
	Store    *task.Store
	Cache    *cache.Cache
	Encoders Encoders
	Profiles profile.Set
	Logger   logger.Logger
}

// Handler holds dependencies
type Handler struct {
	planner  Planner
	executor Executor
	store    *task.Store
	cache    *cache.Cache
	encoders Encoders
	profiles profile.Set
	logger   logger.Logger

	// runs outlive the request that started them
	ctx  context.Context
	busy atomic.Bool
	runs sync.WaitGroup
}

// NewHandler creates API handler. Runs started over HTTP are bound to ctx.
func NewHandler(ctx context.Context, config Config) *Handler {
	h := &Handler{
		planner:  config.Planner,
		executor: config.Executor,
		store:    config.Store,
		cache:    config.Cache,
		encoders: config.Encoders,
		profiles: config.Profiles,
		logger:   config.Logger,
		ctx:      ctx,
	}
	if h.logger == nil {
		h.logger = logger.Nop()
	}
	if h.store == nil {
		h.store = task.NewStore()
	}
	return h
}

// NewRouter registers the handler's routes
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/plan", h.GetPlan)
		v1.POST("/run", h.StartRun)
		v1.GET("/runs/current", h.CurrentRun)
		v1.GET("/tasks", h.ListTasks)
		v1.GET("/tasks/:id", h.GetTask)
		v1.GET("/cache", h.GetCache)
		v1.GET("/skills", h.Skills)
	}
	return r
}

// Wait blocks until runs started over HTTP have finished
func (h *Handler) Wait() {
	h.runs.Wait()
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// GetPlan GET /api/v1/plan
func (h *Handler) GetPlan(c *gin.Context) {
	report, err := h.planner.Plan(c.Request.Context())
	if err != nil {
		errResp(c, http.StatusInternalServerError, "Planning failed", err.Error())
		return
	}
	tasks := report.Tasks
	if tasks == nil {
		tasks = []plan.Task{}
	}
	c.JSON(http.StatusOK, PlanResponse{
		Discovered: len(report.Discovered),
		Selected:   len(report.Selected),
		Tasks:      tasks,
	})
}

// StartRun POST /api/v1/run plans and executes in the background
func (h *Handler) StartRun(c *gin.Context) {
	if h.executor == nil {
		errResp(c, http.StatusServiceUnavailable, "Execution disabled", "")
		return
	}
	if !h.busy.CompareAndSwap(false, true) {
		errResp(c, http.StatusConflict, "A run is already in progress", "")
		return
	}

	report, err := h.planner.Plan(c.Request.Context())
	if err != nil {
		h.busy.Store(false)
		errResp(c, http.StatusInternalServerError, "Planning failed", err.Error())
		return
	}

	h.runs.Add(1)
	go func(tasks []plan.Task) {
		defer h.runs.Done()
		defer h.busy.Store(false)
		h.executor.Execute(h.ctx, tasks, false)
	}(report.Tasks)

	c.JSON(http.StatusAccepted, RunResponse{Queued: len(report.Tasks)})
}

// CurrentRun GET /api/v1/runs/current
func (h *Handler) CurrentRun(c *gin.Context) {
	run, ok := h.store.CurrentRun()
	if !ok {
		errResp(c, http.StatusNotFound, "No run yet", "")
		return
	}
	c.JSON(http.StatusOK, CurrentRunResponse{Run: run, Busy: h.busy.Load()})
}

// ListTasks GET /api/v1/tasks?run=<id>&state=<state>
func (h *Handler) ListTasks(c *gin.Context) {
	runID := c.DefaultQuery("run", "")
	if runID == "current" {
		if run, ok := h.store.CurrentRun(); ok {
			runID = run.ID
		}
	}
	state := task.State(c.DefaultQuery("state", ""))

	records := h.store.List(runID, state)
	if records == nil {
		records = []task.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// GetTask GET /api/v1/tasks/:id
func (h *Handler) GetTask(c *gin.Context) {
	rec, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			errResp(c, http.StatusNotFound, "Unknown task ID", err.Error())
			return
		}
		errResp(c, http.StatusInternalServerError, "Lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetCache GET /api/v1/cache
func (h *Handler) GetCache(c *gin.Context) {
	if h.cache == nil {
		errResp(c, http.StatusNotFound, "No probe cache", "")
		return
	}
	entries := h.cache.Entries()
	resp := CacheResponse{Path: h.cache.Path(), Entries: make([]CacheEntry, len(entries))}
	for i, e := range entries {
		resp.Entries[i] = CacheEntry{
			Path:     e.Path,
			Mtime:    e.Mtime,
			Codec:    e.Metadata.Codec,
			Width:    e.Metadata.Width,
			Height:   e.Metadata.Height,
			Duration: e.Metadata.Duration,
		}
	}
	c.JSON(http.StatusOK, resp)
}
