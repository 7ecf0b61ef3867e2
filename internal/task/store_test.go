package task

import (
	"errors"
	"testing"

	"github.com/ZSC714725/shrinkr/internal/plan"
)

func TestStore_AddGetUpdate(t *testing.T) {
	s := NewStore()
	run := s.BeginRun(1)
	if run.ID == "" || !run.Active {
		t.Fatalf("run: %+v", run)
	}

	rec := s.Add(run.ID, plan.Task{OutputPath: "/v/a.mp4"})
	if rec.ID == "" || rec.State != StateQueued || rec.RunID != run.ID {
		t.Errorf("record: %+v", rec)
	}

	if err := s.Update(rec.ID, func(r *Record) { r.State = StateRunning }); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateRunning || got.FinishedAt != 0 {
		t.Errorf("record: %+v", got)
	}

	got.State = StateFailed
	if again, _ := s.Get(rec.ID); again.State != StateRunning {
		t.Error("Get must return a copy")
	}
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if err := s.Update("nope", func(*Record) {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: %v", err)
	}
	if _, err := s.FinishRun("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun: %v", err)
	}
	if _, ok := s.CurrentRun(); ok {
		t.Error("empty store has a current run")
	}
}

func TestStore_ListFilters(t *testing.T) {
	s := NewStore()
	first := s.BeginRun(2)
	a := s.Add(first.ID, plan.Task{OutputPath: "/v/a.mp4"})
	s.Add(first.ID, plan.Task{OutputPath: "/v/b.mp4"})
	s.Update(a.ID, func(r *Record) { r.State = StateSuccess })
	s.FinishRun(first.ID)

	second := s.BeginRun(1)
	s.Add(second.ID, plan.Task{OutputPath: "/v/c.mp4"})

	if n := len(s.List("", "")); n != 3 {
		t.Errorf("all: %d", n)
	}
	if l := s.List(first.ID, ""); len(l) != 2 || l[0].Task.OutputPath != "/v/a.mp4" {
		t.Errorf("first run: %+v", l)
	}
	if l := s.List("", StateSuccess); len(l) != 1 || l[0].ID != a.ID {
		t.Errorf("succeeded: %+v", l)
	}

	cur, _ := s.CurrentRun()
	if cur.ID != second.ID || !cur.Active {
		t.Errorf("current: %+v", cur)
	}
}
