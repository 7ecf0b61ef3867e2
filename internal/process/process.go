// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// Shrinkr - 批量转码代理文件工具
//
// Package process runs an external program (FFmpeg) to completion, feeding
// its stderr into a Parser and sampling its resource usage.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ZSC714725/shrinkr/internal/logger"
)

// ErrNoBinary is returned when Config.Binary is empty
var ErrNoBinary = errors.New("process: no valid binary given")

// killDelay is how long an interrupted process gets before it is killed
const killDelay = 5 * time.Second

// Config for a process run
type Config struct {
	Binary         string
	Args           []string
	Dir            string
	Parser         Parser
	Sampler        Sampler
	SampleInterval time.Duration
	OnStart        func(pid int)
	OnStateChange  func(from, to string)
	Logger         logger.Logger
}

// Result describes a finished run. CPU and Memory are the peak samples.
type Result struct {
	State    string
	ExitCode int
	Started  time.Time
	Duration time.Duration
	CPU      float64
	Memory   uint64
	LastLine string
}

// ExitError is returned when the program exits unsuccessfully
type ExitError struct {
	Binary   string
	Code     int
	LastLine string
	Err      error
}

func (e *ExitError) Error() string {
	if e.LastLine == "" {
		return fmt.Sprintf("%s exited with code %d", e.Binary, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.Code, e.LastLine)
}

func (e *ExitError) Unwrap() error { return e.Err }

type stateType string

const (
	stateIdle     stateType = "idle"
	stateStarting stateType = "starting"
	stateRunning  stateType = "running"
	stateFinished stateType = "finished"
	stateFailed   stateType = "failed"
	stateKilled   stateType = "killed"
)

func (s stateType) String() string { return string(s) }

var transitions = map[stateType][]stateType{
	stateIdle:     {stateStarting},
	stateStarting: {stateRunning, stateFailed},
	stateRunning:  {stateFinished, stateFailed, stateKilled},
}

type process struct {
	binary string
	args   []string
	dir    string
	parser Parser
	logger logger.Logger

	state struct {
		state stateType
		lock  sync.Mutex
	}
	sampler struct {
		sampler  Sampler
		interval time.Duration
		cpu      float64
		memory   uint64
		lock     sync.Mutex
	}
	started       time.Time
	lastLine      string
	onStart       func(pid int)
	onStateChange func(from, to string)
}

// Run starts the program and blocks until it exits. No timeout is imposed;
// cancelling ctx interrupts the program and kills it after a grace period.
func Run(ctx context.Context, config Config) (Result, error) {
	if len(config.Binary) == 0 {
		return Result{}, ErrNoBinary
	}

	p := &process{
		binary:        config.Binary,
		args:          config.Args,
		dir:           config.Dir,
		parser:        config.Parser,
		logger:        config.Logger,
		onStart:       config.OnStart,
		onStateChange: config.OnStateChange,
	}
	if p.parser == nil {
		p.parser = &nullParser{}
	}
	if p.logger == nil {
		p.logger = logger.Nop()
	}
	p.sampler.sampler = config.Sampler
	if p.sampler.sampler == nil {
		p.sampler.sampler = NewNullSampler()
	}
	p.sampler.interval = config.SampleInterval
	if p.sampler.interval <= 0 {
		p.sampler.interval = time.Second
	}
	p.state.state = stateIdle

	return p.run(ctx)
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prev := p.state.state
	allowed := false
	for _, next := range transitions[prev] {
		if next == state {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("can't change from %s to %s", prev, state)
	}

	p.state.state = state
	if p.onStateChange != nil {
		p.onStateChange(prev.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) run(ctx context.Context) (Result, error) {
	p.setState(stateStarting)

	cmd := exec.CommandContext(ctx, p.binary, p.args...)
	cmd.Dir = p.dir
	cmd.Cancel = interrupt(cmd)
	cmd.WaitDelay = killDelay

	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.setState(stateFailed)
		return p.result(-1), err
	}

	p.parser.ResetStats()
	p.parser.ResetLog()

	if err := cmd.Start(); err != nil {
		p.setState(stateFailed)
		p.parser.Parse(err.Error())
		return p.result(-1), err
	}

	p.started = time.Now()
	pid := cmd.Process.Pid
	p.setState(stateRunning)
	p.logger.Debug("process: started %s (pid %d)", p.binary, pid)

	if p.onStart != nil {
		p.onStart(pid)
	}

	sampleCtx, stopSampling := context.WithCancel(context.Background())
	var sampling sync.WaitGroup
	if err := p.sampler.sampler.Start(pid); err != nil {
		p.logger.Debug("process: no usage samples for pid %d: %v", pid, err)
	} else {
		sampling.Add(1)
		go func() {
			defer sampling.Done()
			p.sample(sampleCtx)
		}()
	}

	p.reader(stderr)
	waitErr := cmd.Wait()

	stopSampling()
	sampling.Wait()
	p.sampler.sampler.Stop()

	return p.waiter(ctx, waitErr)
}

func (p *process) reader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLine)

	for scanner.Scan() {
		line := scanner.Text()
		p.lastLine = line
		p.parser.Parse(line)
	}
}

func (p *process) waiter(ctx context.Context, waitErr error) (Result, error) {
	if waitErr == nil {
		p.setState(stateFinished)
		return p.result(0), nil
	}

	if ctx.Err() != nil {
		p.setState(stateKilled)
		return p.result(-1), fmt.Errorf("%s interrupted: %w", p.binary, ctx.Err())
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code = exitErr.ExitCode()
	}
	if code == -1 {
		p.setState(stateKilled)
	} else {
		p.setState(stateFailed)
	}
	return p.result(code), &ExitError{Binary: p.binary, Code: code, LastLine: p.lastLine, Err: waitErr}
}

func (p *process) sample(ctx context.Context) {
	ticker := time.NewTicker(p.sampler.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cpu, memory := p.sampler.sampler.Current()
			p.sampler.lock.Lock()
			if cpu > p.sampler.cpu {
				p.sampler.cpu = cpu
			}
			if memory > p.sampler.memory {
				p.sampler.memory = memory
			}
			p.sampler.lock.Unlock()
		}
	}
}

func (p *process) result(code int) Result {
	r := Result{
		State:    p.getState().String(),
		ExitCode: code,
		Started:  p.started,
		LastLine: p.lastLine,
	}
	if !p.started.IsZero() {
		r.Duration = time.Since(p.started)
	}
	p.sampler.lock.Lock()
	r.CPU = p.sampler.cpu
	r.Memory = p.sampler.memory
	p.sampler.lock.Unlock()
	return r
}

func interrupt(cmd *exec.Cmd) func() error {
	return func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}

// scanLine splits on both \n and \r, FFmpeg redraws its progress line with \r
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
