package tupledb

import (
	"sync/atomic"
)

type Stats struct {
	Jobs      uint64 // accepted
	Reads     uint64 // completed read jobs
	Mutations uint64 // committed record changes
	Failed    uint64 // jobs that returned an error
	Abandoned uint64 // jobs dropped by Kill
	Pending   int64  // accepted, not yet completed

	Flushes      uint64
	FlushErrors  uint64
	LastFlushErr error
}

type counters struct {
	jobs        atomic.Uint64
	reads       atomic.Uint64
	mutations   atomic.Uint64
	failed      atomic.Uint64
	abandoned   atomic.Uint64
	pending     atomic.Int64
	flushes     atomic.Uint64
	flushErrors atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Jobs:        c.jobs.Load(),
		Reads:       c.reads.Load(),
		Mutations:   c.mutations.Load(),
		Failed:      c.failed.Load(),
		Abandoned:   c.abandoned.Load(),
		Pending:     c.pending.Load(),
		Flushes:     c.flushes.Load(),
		FlushErrors: c.flushErrors.Load(),
	}
}
