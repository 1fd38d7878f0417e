package tupledb

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func boltBackends(t *testing.T) map[string]func() *BoltBackend {
	return map[string]func() *BoltBackend{
		"bolt": func() *BoltBackend {
			b := must(OpenBolt(tempPath(t, "db.bolt"), BoltOptions{IsTesting: true}))
			t.Cleanup(func() { b.Close() })
			return b
		},
		"mem": func() *BoltBackend {
			b := NewMemBackend()
			t.Cleanup(func() { b.Close() })
			return b
		},
	}
}

func TestBoltBackend_RoundTrip(t *testing.T) {
	for name, open := range boltBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open()

			_, found, err := b.Load(ctx)
			noerr(t, err)
			deepEqual(t, found, false)

			scm := MustSchema(WithDefault("score", 0), Name("name"), WithDefault("tags", []any{}))
			snap := newSnapshot(scm)
			// reverse alphabetical, so sorted keys would give a different order
			for i, key := range []string{"zed", "mike", "alice"} {
				snap.Entries.Set(key, Record{i, key, []any{"t"}})
			}
			noerr(t, b.Store(ctx, snap))

			back, found, err := b.Load(ctx)
			noerr(t, err)
			deepEqual(t, found, true)
			deepEqual(t, back.Keys(), []string{"zed", "mike", "alice"})
			deepEqual(t, back.Record("alice"), Record{int64(2), "alice", []any{"t"}})
			deepEqual(t, back.Schema.Equal(scm), true)
		})
	}
}

func TestBoltBackend_StoreReplacesEntries(t *testing.T) {
	for name, open := range boltBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open()
			scm := MustSchema(Name("v"))

			snap := newSnapshot(scm)
			for i := range 5 {
				snap.Entries.Set(fmt.Sprintf("k%d", i), Record{i})
			}
			noerr(t, b.Store(ctx, snap))

			snap = newSnapshot(scm)
			snap.Entries.Set("only", Record{"x"})
			noerr(t, b.Store(ctx, snap))

			back, _, err := b.Load(ctx)
			noerr(t, err)
			deepEqual(t, back.Keys(), []string{"only"})
		})
	}
}

func TestBoltBackend_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	b := NewMemBackend()
	defer b.Close()

	snap := newSnapshot(MustSchema(Name("v")))
	snap.Entries.Set("k", Record{1})
	noerr(t, b.Store(ctx, snap))

	tx := must(b.st.BeginTx(true))
	ensure(tx.Bucket(boltRootBucket, boltEntriesBucket).Put([]byte("k"), []byte{0xc1}))
	ensure(tx.Commit())

	_, _, err := b.Load(ctx)
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("Load err = %v, wanted *DataError", err)
	}
}

func TestBoltBackend_FingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	b := NewMemBackend()
	defer b.Close()

	noerr(t, b.Store(ctx, newSnapshot(MustSchema(Name("v")))))

	tx := must(b.st.BeginTx(true))
	ensure(tx.Bucket(boltRootBucket, boltMetaBucket).Put(boltFingerprintKey, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	ensure(tx.Commit())

	_, _, err := b.Load(ctx)
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("Load err = %v, wanted *DataError", err)
	}
}
