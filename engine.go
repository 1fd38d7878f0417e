package tupledb

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

type jobKind int

const (
	jobNewEntry jobKind = iota
	jobPut
	jobGet
	jobGetEntry
	jobEntries
	jobPerform
	jobAdd
	jobRemove
	jobHas
	jobSize
	jobMembers
)

var jobKindNames = [...]string{
	jobNewEntry: "newEntry",
	jobPut:      "put",
	jobGet:      "get",
	jobGetEntry: "getEntry",
	jobEntries:  "entries",
	jobPerform:  "perform",
	jobAdd:      "add",
	jobRemove:   "remove",
	jobHas:      "has",
	jobSize:     "size",
	jobMembers:  "members",
}

func (k jobKind) String() string {
	if int(k) < len(jobKindNames) {
		return jobKindNames[k]
	}
	return fmt.Sprintf("jobKind(%d)", int(k))
}

// job is one queued operation. Store-wide jobs (global) are ordered after
// everything submitted before them; keyed jobs only after jobs on their key.
type job struct {
	kind     jobKind
	key      string
	global   bool
	mutating bool
	run      func() (any, error)
	done     chan jobResult
}

type jobResult struct {
	value any
	err   error
}

func (j *job) finish(value any, err error) {
	j.done <- jobResult{value, err}
}

// scheduler decides when accepted jobs run.
type scheduler interface {
	// submit accepts j, or returns ErrClosed/ErrKilled.
	submit(j *job) error
	// drain blocks until every accepted job has finished; jobs submitted
	// meanwhile are still accepted. Afterwards submit returns ErrClosed.
	drain()
	// halt abandons queued jobs with ErrKilled and stops accepting new ones.
	halt()
}

func newScheduler(opt Options, e *engine) scheduler {
	switch opt.Ordering {
	case KeyOrder:
		return newKeyedScheduler(e)
	default:
		return newGlobalScheduler(e)
	}
}

// engine is the part shared by Store and Set: job submission, execution,
// flush requests and the lifecycle.
type engine struct {
	name    string
	logger  *slog.Logger
	verbose bool
	sched   scheduler
	saver   persister
	stats   counters

	mu      sync.Mutex
	state   State
	stopped chan struct{}
	stopErr error
}

func (e *engine) init(name string, opt Options, saver persister) {
	e.name = name
	e.logger = opt.Logger
	e.verbose = opt.Verbose
	e.saver = saver
	e.stopped = make(chan struct{})
	e.sched = newScheduler(opt, e)
}

// do submits j and waits for its result. If ctx ends first, do returns
// ctx.Err() but the job still runs.
func (e *engine) do(ctx context.Context, j *job) (any, error) {
	j.done = make(chan jobResult, 1)
	e.stats.pending.Add(1)
	if err := e.sched.submit(j); err != nil {
		e.stats.pending.Add(-1)
		return nil, err
	}
	e.stats.jobs.Add(1)
	select {
	case r := <-j.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execute runs j on the calling goroutine and delivers its result.
func (e *engine) execute(j *job) {
	var start time.Time
	if e.verbose {
		start = time.Now()
	}
	value, err := safelyCall(j.run)
	e.stats.pending.Add(-1)
	if err != nil {
		e.stats.failed.Add(1)
	} else if !j.mutating {
		e.stats.reads.Add(1)
	}
	if e.verbose {
		e.logger.LogAttrs(context.Background(), slog.LevelDebug, "tupledb: job",
			slog.String("db", e.name),
			slog.String("kind", j.kind.String()),
			slog.String("key", j.key),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("err", err))
	}
	j.finish(value, err)
}

func (e *engine) abandon(j *job) {
	e.stats.pending.Add(-1)
	e.stats.abandoned.Add(1)
	j.finish(nil, ErrKilled)
}

func (e *engine) requestFlush() {
	e.saver.request()
}

func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *engine) Stats() Stats {
	s := e.stats.snapshot()
	s.LastFlushErr = e.saver.lastError()
	return s
}

// Stop drains every queued job, including ones submitted while draining,
// then writes any unflushed state and stops. It blocks until that is done
// or ctx ends; ending ctx does not cancel the drain. Calling Stop again
// returns the same result.
func (e *engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case Killed:
		e.mu.Unlock()
		return ErrKilled
	case Running:
		e.state = Draining
		go e.drain()
	}
	e.mu.Unlock()

	select {
	case <-e.stopped:
		return e.stopErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *engine) drain() {
	e.sched.drain()
	err := e.saver.stop()

	e.mu.Lock()
	if e.state == Draining {
		e.state = Stopped
	} else {
		err = ErrKilled
	}
	e.stopErr = err
	e.mu.Unlock()
	close(e.stopped)
	e.logger.LogAttrs(context.Background(), slog.LevelDebug, "tupledb: stopped", slog.String("db", e.name), slog.Any("err", err))
}

// Kill halts immediately. Queued jobs are abandoned (their callers get
// ErrKilled) and unflushed changes are lost. A job already running is not
// interrupted, but nothing it changes is written. This is the unsafe
// shutdown path; prefer Stop.
func (e *engine) Kill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Stopped || e.state == Killed {
		return
	}
	e.state = Killed
	e.sched.halt()
	e.saver.halt()
	e.logger.LogAttrs(context.Background(), slog.LevelWarn, "tupledb: killed", slog.String("db", e.name))
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func() (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, panicked{p, string(debug.Stack())}
		}
	}()
	return fn()
}
