// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具
//
// Package task executes transcode plans and keeps a record of every task.

package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ZSC714725/shrinkr/internal/logger"
	"github.com/ZSC714725/shrinkr/internal/plan"
)

// Progress of a running task
type Progress struct {
	Frame   uint64  `json:"frame"`
	Time    float64 `json:"time_seconds"`
	Speed   float64 `json:"speed"`
	Percent float64 `json:"percent"`
}

// Usage holds the peak resource usage of a task's process
type Usage struct {
	CPU    float64 `json:"cpu_percent"`
	Memory uint64  `json:"memory_bytes"`
}

// Runner runs a task's command to completion. report may be called any
// number of times while the command runs.
type Runner interface {
	Run(ctx context.Context, t plan.Task, report func(Progress)) (Usage, error)
}

// Result is the outcome of one task
type Result struct {
	Task     plan.Task
	RecordID string
	State    State
	Err      error
}

// Executor runs plans. Workers <= 1 runs tasks one at a time in plan order.
type Executor struct {
	Runner  Runner
	Store   *Store
	Workers int
	Logger  logger.Logger
	// Out receives the plan on dry runs, os.Stdout when nil
	Out io.Writer

	locks struct {
		outputs map[string]*sync.Mutex
		lock    sync.Mutex
	}
}

// Execute runs tasks, or on a dry run only prints their commands. A failed
// task is recorded and the run continues; tasks are never retried. After a
// successful run the output's timestamps are set to the source mtime
// captured at planning time.
func (e *Executor) Execute(ctx context.Context, tasks []plan.Task, dryRun bool) []Result {
	log := e.Logger
	if log == nil {
		log = logger.Nop()
	}

	if dryRun {
		return e.print(tasks)
	}

	results := make([]Result, len(tasks))
	if e.Runner == nil {
		for i, t := range tasks {
			results[i] = Result{Task: t, State: StateFailed, Err: &ExecutionError{Task: t, Stage: StageRun, Err: ErrNoRunner}}
		}
		return results
	}

	store := e.Store
	if store == nil {
		store = NewStore()
	}

	run := store.BeginRun(len(tasks))
	log.Info("run %s: %d tasks", run.ID, len(tasks))

	for i, t := range tasks {
		rec := store.Add(run.ID, t)
		results[i] = Result{Task: t, RecordID: rec.ID, State: StateQueued}
	}

	workers := e.Workers
	if workers <= 1 {
		for i := range results {
			e.runOne(ctx, store, &results[i], log)
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					e.runOne(ctx, store, &results[i], log)
				}
			}()
		}
		for i := range results {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	summary, _ := store.FinishRun(run.ID)
	log.Info("run %s: %d succeeded, %d failed, %d canceled",
		run.ID, summary.Succeeded, summary.Failed, summary.Canceled)
	return results
}

func (e *Executor) print(tasks []plan.Task) []Result {
	out := e.Out
	if out == nil {
		out = os.Stdout
	}
	results := make([]Result, len(tasks))
	for i, t := range tasks {
		fmt.Fprintln(out, t.Command)
		results[i] = Result{Task: t, State: StatePlanned}
	}
	return results
}

func (e *Executor) runOne(ctx context.Context, store *Store, res *Result, log logger.Logger) {
	t := res.Task
	if ctx.Err() != nil {
		res.State = StateCanceled
		res.Err = ctx.Err()
		store.Update(res.RecordID, func(r *Record) {
			r.State = StateCanceled
			r.Error = ctx.Err().Error()
		})
		return
	}

	unlock := e.lockOutput(t.OutputPath)
	defer unlock()

	store.Update(res.RecordID, func(r *Record) { r.State = StateRunning })
	log.Info("transcoding %s -> %s", t.SourcePath, t.OutputPath)
	log.Debug("command: %s", t.Command)

	usage, err := e.Runner.Run(ctx, t, func(p Progress) {
		store.Update(res.RecordID, func(r *Record) { r.Progress = p })
	})
	if err == nil {
		err = stamp(t)
	} else {
		err = &ExecutionError{Task: t, Stage: StageRun, Err: err}
	}

	res.Err = err
	res.State = StateSuccess
	switch {
	case err != nil && ctx.Err() != nil:
		res.State = StateCanceled
		log.Warn("canceled %s", t.OutputPath)
	case err != nil:
		res.State = StateFailed
		log.Error("%v", err)
	default:
		log.Info("done %s", t.OutputPath)
	}

	store.Update(res.RecordID, func(r *Record) {
		r.State = res.State
		r.Usage = usage
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Progress.Percent = 100
		}
	})
}

// stamp copies the planned source mtime onto the output
func stamp(t plan.Task) error {
	if _, err := os.Stat(t.OutputPath); err != nil {
		return &ExecutionError{Task: t, Stage: StageTimestamp, Err: ErrOutputMissing}
	}
	if err := os.Chtimes(t.OutputPath, t.SourceMtime, t.SourceMtime); err != nil {
		return &ExecutionError{Task: t, Stage: StageTimestamp, Err: err}
	}
	return nil
}

// lockOutput keeps two tasks with the same output from running at once
func (e *Executor) lockOutput(path string) func() {
	e.locks.lock.Lock()
	if e.locks.outputs == nil {
		e.locks.outputs = make(map[string]*sync.Mutex)
	}
	m, ok := e.locks.outputs[path]
	if !ok {
		m = &sync.Mutex{}
		e.locks.outputs[path] = m
	}
	e.locks.lock.Unlock()

	m.Lock()
	return m.Unlock
}
