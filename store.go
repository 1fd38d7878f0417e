package tupledb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// UpdateFunc is the read-modify-write step of Perform. It receives a private
// view of the entry and may change it in place; it may block. Its result is
// handed back to the Perform caller.
type UpdateFunc func(ctx context.Context, view View) (any, error)

// Store maps string keys to fixed-schema records, persisted as one document
// through a Backend. All operations go through the job scheduler; see
// Ordering for the guarantees.
type Store struct {
	engine

	backend Backend[*Snapshot]
	schema  *Schema
	sv      *saver[*Snapshot]

	mu   sync.Mutex
	snap *Snapshot
}

// Open loads the store kept by backend, or creates it with schema when the
// backend has no document yet. A persisted schema always wins over the
// supplied one; a mismatch is logged (or rejected with Options.StrictSchema).
func Open(ctx context.Context, backend Backend[*Snapshot], schema *Schema, opt Options) (*Store, error) {
	opt = opt.withDefaults()
	name := describe(backend)

	snap, found, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if found && (snap == nil || snap.Schema == nil) {
		return nil, dataErrf(name, nil, nil, "empty document")
	}
	if !found {
		if schema == nil {
			return nil, ErrSchemaRequired
		}
		snap = newSnapshot(schema)
		if err := backend.Store(ctx, snap); err != nil {
			return nil, fmt.Errorf("tupledb: creating %s: %w", name, err)
		}
		opt.Logger.LogAttrs(ctx, slog.LevelInfo, "tupledb: created", slog.String("db", name), slog.String("schema", schema.String()))
	} else if schema != nil && !schema.Equal(snap.Schema) {
		if opt.StrictSchema {
			return nil, &SchemaMismatchError{Persisted: snap.Schema, Supplied: schema}
		}
		opt.Logger.LogAttrs(ctx, slog.LevelWarn, "tupledb: supplied schema differs from persisted schema, using persisted",
			slog.String("db", name),
			slog.String("persisted", snap.Schema.String()),
			slog.String("supplied", schema.String()),
			slog.String("persisted_fp", fmt.Sprintf("%016x", snap.Schema.Fingerprint())),
			slog.String("supplied_fp", fmt.Sprintf("%016x", schema.Fingerprint())))
	}

	st := &Store{
		backend: backend,
		schema:  snap.Schema,
		snap:    snap,
	}
	st.sv = newSaver(name, backend, st.capture, opt, &st.stats)
	st.init(name, opt, st.sv)
	return st, nil
}

// OpenFile opens a store kept in a JSON file at path (or any afs URL).
func OpenFile(ctx context.Context, path string, schema *Schema, opt Options) (*Store, error) {
	return Open(ctx, NewFileBackend[*Snapshot](path), schema, opt)
}

func (st *Store) String() string {
	return st.name
}

// Schema returns the effective (persisted) schema.
func (st *Store) Schema() *Schema {
	return st.schema
}

func (st *Store) capture() (*Snapshot, uint64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snap.copy(), st.sv.version.Load()
}

// commit stores rec under key. Callers hold st.mu.
func (st *Store) commit(key string, rec Record) {
	st.snap.Entries.Set(key, rec)
	st.stats.mutations.Add(1)
	st.saver.touch()
}

// NewEntry creates (or overwrites) the entry at key. Fields not given take
// their defaults.
func (st *Store) NewEntry(ctx context.Context, key string, fields map[string]any) error {
	_, err := st.do(ctx, &job{kind: jobNewEntry, key: key, mutating: true, run: func() (any, error) {
		if err := checkFields(st.schema, key, fields); err != nil {
			return nil, err
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		st.commit(key, commitEntry(st.schema, fields))
		return nil, nil
	}})
	return err
}

// Put updates the given fields of the entry at key, leaving other fields
// unchanged. A missing entry is created from defaults first.
func (st *Store) Put(ctx context.Context, key string, fields map[string]any) error {
	_, err := st.do(ctx, &job{kind: jobPut, key: key, mutating: true, run: func() (any, error) {
		if err := checkFields(st.schema, key, fields); err != nil {
			return nil, err
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		st.commit(key, commitPartial(st.schema, st.snap.Record(key), fields))
		return nil, nil
	}})
	return err
}

// Get returns a copy of one field of the entry at key. A missing entry
// yields the field default; a field outside the schema yields nil.
func (st *Store) Get(ctx context.Context, key, field string) (any, error) {
	return st.do(ctx, &job{kind: jobGet, key: key, run: func() (any, error) {
		i, ok := st.schema.Index(field)
		if !ok {
			return nil, nil
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		return resolveSlot(st.schema, st.snap.Record(key), i), nil
	}})
}

// GetEntry returns a copy of every field of the entry at key, resolving a
// missing entry to defaults.
func (st *Store) GetEntry(ctx context.Context, key string) (View, error) {
	v, err := st.do(ctx, &job{kind: jobGetEntry, key: key, run: func() (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return materialize(st.schema, st.snap.Record(key)), nil
	}})
	if err != nil {
		return nil, err
	}
	return v.(View), nil
}

// Entries returns every key in insertion order.
func (st *Store) Entries(ctx context.Context) ([]string, error) {
	v, err := st.do(ctx, &job{kind: jobEntries, global: true, run: func() (any, error) {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.snap.Keys(), nil
	}})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Perform runs fn as an atomic read-modify-write of the entry at key. No
// other job on key starts until fn returns. On success the view, as left by
// fn, is written back as the new record (fields removed from the view take
// their defaults) and fn's result is returned. If fn fails or panics,
// nothing is written.
func (st *Store) Perform(ctx context.Context, key string, fn UpdateFunc) (any, error) {
	return st.do(ctx, &job{kind: jobPerform, key: key, mutating: true, run: func() (any, error) {
		st.mu.Lock()
		view := materialize(st.schema, st.snap.Record(key))
		st.mu.Unlock()

		result, err := fn(ctx, view)
		if err != nil {
			return nil, err
		}
		if err := checkFields(st.schema, key, view); err != nil {
			return nil, err
		}

		st.mu.Lock()
		defer st.mu.Unlock()
		st.commit(key, commitEntry(st.schema, view))
		return result, nil
	}})
}

// Perform is the typed form of Store.Perform.
func Perform[T any](ctx context.Context, st *Store, key string, fn func(ctx context.Context, view View) (T, error)) (T, error) {
	v, err := st.Perform(ctx, key, func(ctx context.Context, view View) (any, error) {
		return fn(ctx, view)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

func describe(backend any) string {
	if s, ok := backend.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", backend)
}
