package tupledb

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Ordering selects how a store serializes jobs.
type Ordering int

const (
	// GlobalOrder runs one job at a time, store-wide, in submission order.
	GlobalOrder Ordering = iota

	// KeyOrder runs jobs on the same key in submission order and lets jobs
	// on different keys run concurrently.
	KeyOrder
)

func (o Ordering) String() string {
	switch o {
	case GlobalOrder:
		return "global"
	case KeyOrder:
		return "key"
	default:
		return fmt.Sprintf("Ordering(%d)", int(o))
	}
}

func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(s) {
	case "", "global":
		return GlobalOrder, nil
	case "key", "keyed", "per-key":
		return KeyOrder, nil
	default:
		return 0, fmt.Errorf("tupledb: unknown ordering %q", s)
	}
}

type Options struct {
	Logger  *slog.Logger
	Verbose bool

	Ordering Ordering

	// MinFlushInterval spaces out physical writes; mutations arriving in
	// between are folded into the next write. Zero writes as soon as the
	// queue allows.
	MinFlushInterval time.Duration

	// StrictSchema makes Open fail when the supplied schema differs from the
	// persisted one, instead of logging a warning and using the persisted one.
	StrictSchema bool
}

func (opt Options) withDefaults() Options {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return opt
}
