// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package api

import (
	"time"

	"github.com/ZSC714725/shrinkr/internal/ffmpeg/skills"
	"github.com/ZSC714725/shrinkr/internal/plan"
	"github.com/ZSC714725/shrinkr/internal/task"
)

// PlanResponse for GET /plan
type PlanResponse struct {
	Discovered int         `json:"discovered"`
	Selected   int         `json:"selected"`
	Tasks      []plan.Task `json:"tasks"`
}

// RunResponse for POST /run
type RunResponse struct {
	Queued int `json:"queued"`
}

// CurrentRunResponse for GET /runs/current
type CurrentRunResponse struct {
	task.Run
	Busy bool `json:"busy"`
}

// CacheEntry is one probed file
type CacheEntry struct {
	Path     string    `json:"path"`
	Mtime    time.Time `json:"mtime"`
	Codec    string    `json:"codec"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Duration float64   `json:"duration"`
}

// CacheResponse for GET /cache
type CacheResponse struct {
	Path    string       `json:"path"`
	Entries []CacheEntry `json:"entries"`
}

// SkillsResponse for GET /skills. MissingEncoders lists, per profile, the
// encoders its command needs that ffmpeg lacks.
type SkillsResponse struct {
	Skills          skills.Skills       `json:"skills"`
	MissingEncoders map[string][]string `json:"missing_encoders"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
