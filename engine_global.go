package tupledb

import "sync"

// globalScheduler runs every job on one worker goroutine in submission
// order. A job, including a blocking update function, runs to completion
// before the next one starts.
//
// After a mutating job, a flush is requested only if no other mutating job
// is waiting, so back-to-back writes end in a single flush.
type globalScheduler struct {
	e *engine

	mu       sync.Mutex
	jobs     []*job
	mutating int // mutating jobs waiting in jobs
	draining bool
	closed   error

	wake chan struct{}
	done chan struct{}
}

func newGlobalScheduler(e *engine) *globalScheduler {
	s := &globalScheduler{
		e:    e,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *globalScheduler) submit(j *job) error {
	s.mu.Lock()
	if s.closed != nil {
		s.mu.Unlock()
		return s.closed
	}
	s.jobs = append(s.jobs, j)
	if j.mutating {
		s.mutating++
	}
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *globalScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *globalScheduler) loop() {
	defer close(s.done)
	for {
		j, ok := s.next()
		if !ok {
			return
		}
		s.e.execute(j)
		if j.mutating && !s.hasPendingMutation() {
			s.e.requestFlush()
		}
	}
}

func (s *globalScheduler) next() (*job, bool) {
	for {
		s.mu.Lock()
		if s.closed == ErrKilled {
			s.mu.Unlock()
			return nil, false
		}
		if len(s.jobs) > 0 {
			j := s.jobs[0]
			s.jobs[0] = nil
			s.jobs = s.jobs[1:]
			if j.mutating {
				s.mutating--
			}
			s.mu.Unlock()
			return j, true
		}
		if s.draining {
			s.closed = ErrClosed
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()
		<-s.wake
	}
}

func (s *globalScheduler) hasPendingMutation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutating > 0
}

func (s *globalScheduler) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.signal()
	<-s.done
}

func (s *globalScheduler) halt() {
	s.mu.Lock()
	s.closed = ErrKilled
	abandoned := s.jobs
	s.jobs = nil
	s.mutating = 0
	s.mu.Unlock()
	for _, j := range abandoned {
		s.e.abandon(j)
	}
	s.signal()
}
