// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package task

import (
	"errors"
	"fmt"

	"github.com/ZSC714725/shrinkr/internal/plan"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrNoRunner      = errors.New("executor has no runner")
	ErrOutputMissing = errors.New("command succeeded but the output file is missing")
)

// Stages at which a task can fail
const (
	StageRun       = "run"
	StageTimestamp = "timestamp"
)

// ExecutionError is the failure of a single task. The run goes on.
type ExecutionError struct {
	Task  plan.Task
	Stage string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s -> %s (%s) failed at %s: %v",
		e.Task.SourcePath, e.Task.OutputPath, e.Task.Profile, e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecution reports whether err is, or wraps, an *ExecutionError
func IsExecution(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}
