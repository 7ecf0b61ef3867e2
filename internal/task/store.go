// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具

package task

import (
	"sync"
	"time"

	"github.com/ZSC714725/shrinkr/internal/plan"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// State of a task record
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateSuccess  State = "success"
	StateFailed   State = "failed"
	StateCanceled State = "canceled"
	StatePlanned  State = "planned"
)

// Done reports whether the state is final
func (s State) Done() bool {
	return s == StateSuccess || s == StateFailed || s == StateCanceled
}

// Record is the execution history of one task
type Record struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Task       plan.Task `json:"task"`
	State      State     `json:"state"`
	Progress   Progress  `json:"progress"`
	Usage      Usage     `json:"usage"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  int64     `json:"created_at"`
	UpdatedAt  int64     `json:"updated_at"`
	FinishedAt int64     `json:"finished_at,omitempty"`
}

// Run summarises one Execute call
type Run struct {
	ID         string `json:"id"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Canceled   int    `json:"canceled"`
	Active     bool   `json:"active"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`
}

// Store keeps task records in memory. Readers get copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	runs    []*Run
}

// NewStore creates a task store
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// BeginRun registers a new run of total tasks
func (s *Store) BeginRun(total int) Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Run{
		ID:        uuid.NewString(),
		Total:     total,
		Active:    true,
		StartedAt: time.Now().Unix(),
	}
	s.runs = append(s.runs, r)
	return *r
}

// FinishRun closes the run and tallies its records
func (s *Store) FinishRun(id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.run(id)
	if r == nil {
		return Run{}, ErrNotFound
	}
	r.Succeeded, r.Failed, r.Canceled = 0, 0, 0
	for _, rid := range s.order {
		rec := s.records[rid]
		if rec.RunID != id {
			continue
		}
		switch rec.State {
		case StateSuccess:
			r.Succeeded++
		case StateFailed:
			r.Failed++
		case StateCanceled:
			r.Canceled++
		}
	}
	r.Active = false
	r.FinishedAt = time.Now().Unix()
	return *r, nil
}

// CurrentRun returns the most recent run
func (s *Store) CurrentRun() (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return Run{}, false
	}
	return *s.runs[len(s.runs)-1], true
}

func (s *Store) run(id string) *Run {
	for _, r := range s.runs {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Add queues a record for t
func (s *Store) Add(runID string, t plan.Task) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	rec := &Record{
		ID:        shortuuid.New(),
		RunID:     runID,
		Task:      t,
		State:     StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return *rec
}

// Update applies fn to the record under the store lock
func (s *Store) Update(id string, fn func(r *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	fn(rec)
	rec.UpdatedAt = time.Now().Unix()
	if rec.State.Done() && rec.FinishedAt == 0 {
		rec.FinishedAt = rec.UpdatedAt
	}
	return nil
}

// Get returns a copy of the record
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

// List returns records in insertion order. A non-empty runID or state
// narrows the result.
func (s *Store) List(runID string, state State) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, id := range s.order {
		rec := s.records[id]
		if len(runID) > 0 && rec.RunID != runID {
			continue
		}
		if len(state) > 0 && rec.State != state {
			continue
		}
		out = append(out, *rec)
	}
	return out
}
