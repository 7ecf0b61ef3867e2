package task

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ZSC714725/shrinkr/internal/plan"
)

var sourceMtime = time.Date(2021, 6, 1, 12, 30, 0, 0, time.UTC)

// fakeRunner writes the output file unless the task's source is in fail
type fakeRunner struct {
	mu      sync.Mutex
	fail    map[string]bool
	noWrite bool
	calls   []string
	active  map[string]int
	maxSeen int
	delay   time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, t plan.Task, report func(Progress)) (Usage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, t.OutputPath)
	if f.active == nil {
		f.active = make(map[string]int)
	}
	f.active[t.OutputPath]++
	if f.active[t.OutputPath] > f.maxSeen {
		f.maxSeen = f.active[t.OutputPath]
	}
	fail := f.fail[t.SourcePath]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active[t.OutputPath]--
		f.mu.Unlock()
	}()

	report(Progress{Frame: 1, Percent: 50})
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if fail {
		return Usage{}, errors.New("exit status 1")
	}
	if !f.noWrite {
		if err := os.WriteFile(t.OutputPath, []byte("out"), 0o644); err != nil {
			return Usage{}, err
		}
	}
	return Usage{CPU: 90, Memory: 1 << 20}, nil
}

func newTask(dir, name string) plan.Task {
	src := filepath.Join(dir, name+".mkv")
	out := filepath.Join(dir, name+"-shrinkr-x264-640.mp4")
	return plan.Task{
		Command:     "ffmpeg -i " + src + " " + out,
		Args:        []string{"ffmpeg", "-i", src, out},
		Profile:     "x264-640",
		SourcePath:  src,
		SourceMtime: sourceMtime,
		OutputPath:  out,
	}
}

func TestExecute_SuccessStampsSourceMtime(t *testing.T) {
	dir := t.TempDir()
	tasks := []plan.Task{newTask(dir, "a"), newTask(dir, "b")}
	runner := &fakeRunner{}
	store := NewStore()

	results := (&Executor{Runner: runner, Store: store}).Execute(context.Background(), tasks, false)

	for i, r := range results {
		if r.State != StateSuccess || r.Err != nil {
			t.Fatalf("task %d: %+v", i, r)
		}
		info, err := os.Stat(tasks[i].OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(sourceMtime) {
			t.Errorf("mtime of %s: got %v, want %v", tasks[i].OutputPath, info.ModTime(), sourceMtime)
		}
	}
	if len(runner.calls) != 2 || runner.calls[0] != tasks[0].OutputPath {
		t.Errorf("calls: %v", runner.calls)
	}

	rec, err := store.Get(results[0].RecordID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != StateSuccess || rec.Progress.Percent != 100 || rec.Usage.Memory != 1<<20 || rec.FinishedAt == 0 {
		t.Errorf("record: %+v", rec)
	}

	run, ok := store.CurrentRun()
	if !ok || run.Active || run.Total != 2 || run.Succeeded != 2 {
		t.Errorf("run: %+v", run)
	}
}

func TestExecute_FailureContinuesWithoutRetry(t *testing.T) {
	dir := t.TempDir()
	tasks := []plan.Task{newTask(dir, "bad"), newTask(dir, "good")}
	runner := &fakeRunner{fail: map[string]bool{tasks[0].SourcePath: true}}
	store := NewStore()

	results := (&Executor{Runner: runner, Store: store}).Execute(context.Background(), tasks, false)

	if results[0].State != StateFailed || !IsExecution(results[0].Err) {
		t.Errorf("first: %+v", results[0])
	}
	var execErr *ExecutionError
	if errors.As(results[0].Err, &execErr) && execErr.Stage != StageRun {
		t.Errorf("stage: got %s", execErr.Stage)
	}
	if results[1].State != StateSuccess {
		t.Errorf("second: %+v", results[1])
	}
	if len(runner.calls) != 2 {
		t.Errorf("runner called %d times, want 2", len(runner.calls))
	}
	if _, err := os.Stat(tasks[0].OutputPath); !os.IsNotExist(err) {
		t.Error("failed task left an output")
	}

	failed := store.List("", StateFailed)
	if len(failed) != 1 || failed[0].Error == "" {
		t.Errorf("failed records: %+v", failed)
	}
	run, _ := store.CurrentRun()
	if run.Succeeded != 1 || run.Failed != 1 {
		t.Errorf("run: %+v", run)
	}
}

func TestExecute_MissingOutputFails(t *testing.T) {
	tasks := []plan.Task{newTask(t.TempDir(), "a")}
	results := (&Executor{Runner: &fakeRunner{noWrite: true}}).Execute(context.Background(), tasks, false)

	var execErr *ExecutionError
	if !errors.As(results[0].Err, &execErr) || execErr.Stage != StageTimestamp {
		t.Fatalf("got %v", results[0].Err)
	}
	if !errors.Is(results[0].Err, ErrOutputMissing) {
		t.Errorf("got %v, want ErrOutputMissing", results[0].Err)
	}
}

func TestExecute_DryRunPrintsOnly(t *testing.T) {
	dir := t.TempDir()
	tasks := []plan.Task{newTask(dir, "a"), newTask(dir, "b")}
	runner := &fakeRunner{}
	store := NewStore()
	var out bytes.Buffer

	results := (&Executor{Runner: runner, Store: store, Out: &out}).Execute(context.Background(), tasks, true)

	if len(runner.calls) != 0 {
		t.Errorf("dry run executed %d commands", len(runner.calls))
	}
	want := tasks[0].Command + "\n" + tasks[1].Command + "\n"
	if out.String() != want {
		t.Errorf("printed %q, want %q", out.String(), want)
	}
	for _, r := range results {
		if r.State != StatePlanned {
			t.Errorf("state: %s", r.State)
		}
	}
	if len(store.List("", "")) != 0 {
		t.Error("dry run created records")
	}
}

func TestExecute_ParallelGuardsSameOutput(t *testing.T) {
	dir := t.TempDir()
	a := newTask(dir, "a")
	dup := a
	dup.SourcePath = filepath.Join(dir, "a.mp4")
	tasks := []plan.Task{a, dup, newTask(dir, "b"), newTask(dir, "c")}
	runner := &fakeRunner{delay: 20 * time.Millisecond}

	results := (&Executor{Runner: runner, Workers: 4}).Execute(context.Background(), tasks, false)

	if runner.maxSeen != 1 {
		t.Errorf("same output ran %d times concurrently", runner.maxSeen)
	}
	for i, r := range results {
		if r.State != StateSuccess {
			t.Errorf("task %d: %+v", i, r)
		}
	}
}

func TestExecute_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{}
	tasks := []plan.Task{newTask(t.TempDir(), "a")}

	results := (&Executor{Runner: runner}).Execute(ctx, tasks, false)
	if results[0].State != StateCanceled || len(runner.calls) != 0 {
		t.Errorf("got %+v, %d calls", results[0], len(runner.calls))
	}
}

func TestExecute_NoRunner(t *testing.T) {
	results := (&Executor{}).Execute(context.Background(), []plan.Task{newTask(t.TempDir(), "a")}, false)
	if !errors.Is(results[0].Err, ErrNoRunner) {
		t.Errorf("got %v", results[0].Err)
	}
}
