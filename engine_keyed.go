package tupledb

import "sync"

// keyedScheduler chains jobs per key: each job waits for the previous job
// on its key to finish (result computed, flush requested), so jobs on one
// key never overlap while jobs on different keys run concurrently.
// Store-wide jobs wait for the tail of every chain that existed when they
// were submitted.
//
// Every job requests a flush after a mutation; the saver folds requests
// that arrive during a write into one follow-up write.
type keyedScheduler struct {
	e *engine

	mu       sync.Mutex
	tails    map[string]chan struct{}
	inflight int
	draining bool
	closed   error

	idle   chan struct{} // closed once drained
	killed chan struct{}
}

func newKeyedScheduler(e *engine) *keyedScheduler {
	return &keyedScheduler{
		e:      e,
		tails:  make(map[string]chan struct{}),
		idle:   make(chan struct{}),
		killed: make(chan struct{}),
	}
}

func (s *keyedScheduler) submit(j *job) error {
	s.mu.Lock()
	if s.closed != nil {
		s.mu.Unlock()
		return s.closed
	}
	var waits []chan struct{}
	if j.global {
		waits = make([]chan struct{}, 0, len(s.tails))
		for _, tail := range s.tails {
			waits = append(waits, tail)
		}
	} else if tail := s.tails[j.key]; tail != nil {
		waits = []chan struct{}{tail}
	}
	mine := make(chan struct{})
	if !j.global {
		s.tails[j.key] = mine
	}
	s.inflight++
	s.mu.Unlock()

	go s.run(j, waits, mine)
	return nil
}

func (s *keyedScheduler) run(j *job, waits []chan struct{}, mine chan struct{}) {
	abandoned := false
	for _, w := range waits {
		select {
		case <-w:
		case <-s.killed:
			abandoned = true
		}
		if abandoned {
			break
		}
	}
	if !abandoned {
		select {
		case <-s.killed:
			abandoned = true
		default:
		}
	}

	if abandoned {
		s.e.abandon(j)
	} else {
		s.e.execute(j)
		if j.mutating {
			s.e.requestFlush()
		}
	}
	close(mine)

	s.mu.Lock()
	if !j.global && s.tails[j.key] == mine {
		delete(s.tails, j.key)
	}
	s.inflight--
	if s.inflight == 0 && s.draining && s.closed == nil {
		s.closed = ErrClosed
		close(s.idle)
	}
	s.mu.Unlock()
}

func (s *keyedScheduler) drain() {
	s.mu.Lock()
	s.draining = true
	if s.inflight == 0 && s.closed == nil {
		s.closed = ErrClosed
		close(s.idle)
	}
	s.mu.Unlock()

	select {
	case <-s.idle:
	case <-s.killed:
	}
}

func (s *keyedScheduler) halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed == ErrKilled {
		return
	}
	s.closed = ErrKilled
	close(s.killed)
}
