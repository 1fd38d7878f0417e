package tupledb

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const (
	boltRootBucket    = "tupledb"
	boltMetaBucket    = "meta"
	boltEntriesBucket = "entries"
)

var (
	boltSchemaKey      = []byte("schema")
	boltFingerprintKey = []byte("fingerprint")
)

type BoltOptions struct {
	Timeout   time.Duration
	IsTesting bool
	MmapSize  int
}

// BoltBackend persists store snapshots into a Bolt database (or into
// transient memory, see NewMemBackend). Every Store rewrites the entries
// bucket inside a single transaction.
type BoltBackend struct {
	st   storage
	name string
}

func OpenBolt(path string, opt BoltOptions) (*BoltBackend, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = 10 * time.Second
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("tupledb: %w", err)
	}
	return &BoltBackend{st: newBoltStorage(bdb), name: path}, nil
}

// NewMemBackend returns a BoltBackend over transient in-memory storage.
func NewMemBackend() *BoltBackend {
	return &BoltBackend{st: newMemStorage(), name: "mem"}
}

func (b *BoltBackend) String() string {
	return b.name
}

func (b *BoltBackend) Close() error {
	return b.st.Close()
}

func (b *BoltBackend) Load(ctx context.Context) (*Snapshot, bool, error) {
	tx, err := b.st.BeginTx(false)
	if err != nil {
		return nil, false, fmt.Errorf("tupledb: %w", err)
	}
	defer tx.Rollback()

	meta := tx.Bucket(boltRootBucket, boltMetaBucket)
	if meta == nil {
		return nil, false, nil
	}
	raw := meta.Get(boltSchemaKey)
	if raw == nil {
		return nil, false, nil
	}
	var doc schemaDoc
	if err := decodeMsgpack(b.name, raw, &doc); err != nil {
		return nil, false, err
	}
	scm, err := schemaFromDoc(&doc)
	if err != nil {
		return nil, false, dataErrf(b.name, raw, err, "invalid schema")
	}
	if fp := meta.Get(boltFingerprintKey); len(fp) == 8 && binary.BigEndian.Uint64(fp) != scm.Fingerprint() {
		return nil, false, dataErrf(b.name, fp, nil, "schema fingerprint mismatch")
	}

	type loaded struct {
		key string
		storedEntry
	}
	var items []loaded
	if bucket := tx.Bucket(boltRootBucket, boltEntriesBucket); bucket != nil {
		items = make([]loaded, 0, bucket.KeyCount())
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			var item loaded
			item.key = string(k)
			if err := decodeMsgpack(b.name, v, &item.storedEntry); err != nil {
				return nil, false, err
			}
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(x, y loaded) int {
		return cmp.Compare(x.Ord, y.Ord)
	})

	snap := newSnapshot(scm)
	for _, item := range items {
		snap.Entries.Set(item.key, Record(item.Tuple))
	}
	if err := snap.validate(); err != nil {
		return nil, false, dataErrf(b.name, nil, err, "invalid entries")
	}
	return snap, true, nil
}

func (b *BoltBackend) Store(ctx context.Context, snap *Snapshot) error {
	tx, err := b.st.BeginTx(true)
	if err != nil {
		return fmt.Errorf("tupledb: %w", err)
	}
	defer tx.Rollback()

	meta, err := tx.CreateBucket(boltRootBucket, boltMetaBucket)
	if err != nil {
		return err
	}
	rawSchema, err := encodeMsgpack(snap.Schema.doc())
	if err != nil {
		return err
	}
	if err := meta.Put(boltSchemaKey, rawSchema); err != nil {
		return err
	}
	var fp [8]byte
	binary.BigEndian.PutUint64(fp[:], snap.Schema.Fingerprint())
	if err := meta.Put(boltFingerprintKey, fp[:]); err != nil {
		return err
	}

	if err := tx.DeleteBucket(boltRootBucket, boltEntriesBucket); err != nil && err != errBucketNotFound {
		return err
	}
	entries, err := tx.CreateBucket(boltRootBucket, boltEntriesBucket)
	if err != nil {
		return err
	}
	var ord uint64
	for p := snap.Entries.Oldest(); p != nil; p = p.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ord++
		raw, err := encodeMsgpack(&storedEntry{Ord: ord, Tuple: p.Value})
		if err != nil {
			return fmt.Errorf("tupledb: entry %q: %w", p.Key, err)
		}
		if err := entries.Put([]byte(p.Key), raw); err != nil {
			return err
		}
	}
	return tx.Commit()
}
