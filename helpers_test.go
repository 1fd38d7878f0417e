package tupledb

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

var allOrderings = []Ordering{GlobalOrder, KeyOrder}

// eachOrdering runs f once per job ordering.
func eachOrdering(t *testing.T, f func(t *testing.T, opt Options)) {
	for _, o := range allOrderings {
		t.Run(o.String(), func(t *testing.T) {
			f(t, Options{Ordering: o})
		})
	}
}

func tempPath(t testing.TB, name string) string {
	return filepath.Join(t.TempDir(), name)
}

var scoreSchema = MustSchema(WithDefault("score", 0.0), Name("name"))

func setup(t testing.TB, opt Options, scm *Schema) *Store {
	t.Helper()
	path := tempPath(t, "db.json")
	t.Logf("DB: %s", path)
	st := must(OpenFile(context.Background(), path, scm, opt))
	t.Cleanup(func() { stopQuietly(st) })
	return st
}

func stopQuietly(st interface{ Stop(context.Context) error }) {
	_ = st.Stop(context.Background())
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func noerr(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

func iserr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Fatalf("** got error %v, wanted %v", err, target)
	}
}

// memBackend keeps the last stored document in memory and counts writes.
type memBackend[T any] struct {
	mu     sync.Mutex
	doc    T
	found  bool
	stores atomic.Int64
	fail   error
}

func (b *memBackend[T]) Load(ctx context.Context) (T, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc, b.found, nil
}

func (b *memBackend[T]) Store(ctx context.Context, doc T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.doc, b.found = doc, true
	b.stores.Add(1)
	return nil
}

func (b *memBackend[T]) setFail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = err
}

func (b *memBackend[T]) last() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc
}

// gatedBackend blocks every Store after the first (the create write) until
// release is called, and reports when a blocked write starts.
type gatedBackend struct {
	memBackend[*Snapshot]
	started chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		started: make(chan struct{}, 16),
		gate:    make(chan struct{}),
	}
}

func (b *gatedBackend) Store(ctx context.Context, doc *Snapshot) error {
	if b.stores.Load() > 0 {
		b.started <- struct{}{}
		select {
		case <-b.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.memBackend.Store(ctx, doc)
}

func (b *gatedBackend) release() {
	b.once.Do(func() { close(b.gate) })
}

// countingPersister counts flush requests on their way to the real saver.
type countingPersister struct {
	persister
	requests atomic.Int64
}

func (p *countingPersister) request() {
	p.requests.Add(1)
	p.persister.request()
}
