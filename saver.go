package tupledb

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// persister is the engine's view of a saver.
type persister interface {
	touch()
	request()
	stop() error
	halt()
	lastError() error
}

// saver writes snapshots to a backend from a single goroutine. Requests made
// while a write is in flight collapse into one follow-up write, and a write
// is skipped when nothing changed since the last successful one.
type saver[T any] struct {
	backend Backend[T]
	capture func() (T, uint64) // snapshot plus the version it reflects
	limiter *rate.Limiter
	logger  *slog.Logger
	name    string
	stats   *counters

	version atomic.Uint64 // bumped on every committed change
	saved   uint64        // version of the last successful write; loop-owned

	mu      sync.Mutex
	lastErr error

	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newSaver[T any](name string, backend Backend[T], capture func() (T, uint64), opt Options, stats *counters) *saver[T] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &saver[T]{
		backend: backend,
		capture: capture,
		logger:  opt.Logger,
		name:    name,
		stats:   stats,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	if opt.MinFlushInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opt.MinFlushInterval), 1)
	}
	go s.loop()
	return s
}

// touch records a change. Callers hold the state lock, so capture observes
// version bumps and state changes atomically.
func (s *saver[T]) touch() {
	s.version.Add(1)
}

func (s *saver[T]) request() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *saver[T]) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.quit:
			return
		case <-s.wake:
		}
		if !s.pace() {
			return
		}
		_ = s.flush(s.ctx)
	}
}

// pace waits out MinFlushInterval. It returns false when the saver is
// stopping (stop flushes right away) or halted.
func (s *saver[T]) pace() bool {
	if s.limiter == nil {
		return true
	}
	r := s.limiter.Reserve()
	d := r.Delay()
	if d == 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.quit:
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *saver[T]) flush(ctx context.Context) error {
	if s.version.Load() == s.saved {
		return nil
	}
	doc, ver := s.capture()
	start := time.Now()
	err := s.backend.Store(ctx, doc)
	if err != nil {
		s.stats.flushErrors.Add(1)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		s.logger.LogAttrs(ctx, slog.LevelError, "tupledb: flush failed", slog.String("db", s.name), slog.Any("err", err))
		return err
	}
	s.saved = ver
	s.stats.flushes.Add(1)
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	s.logger.LogAttrs(ctx, slog.LevelDebug, "tupledb: flushed", slog.String("db", s.name), slog.Uint64("ver", ver), slog.Duration("elapsed", time.Since(start)))
	return nil
}

// stop waits for the in-flight write, then writes whatever is still
// unflushed. Must not be called after halt.
func (s *saver[T]) stop() error {
	close(s.quit)
	<-s.done
	if s.ctx.Err() != nil {
		return ErrKilled
	}
	err := s.flush(s.ctx)
	s.cancel()
	return err
}

// halt abandons pending writes. An in-flight write sees its context
// cancelled; nothing waits for it.
func (s *saver[T]) halt() {
	s.cancel()
}

func (s *saver[T]) lastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
