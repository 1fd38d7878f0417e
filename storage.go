package tupledb

import "errors"

// errBucketNotFound is returned by storageTx.DeleteBucket when the bucket doesn't exist.
var errBucketNotFound = errors.New("bucket not found")

// storage is a transactional bucketed key-value store (Bolt or in-memory)
// that BoltBackend persists snapshots into.
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	// Bucket returns a bucket, or nil if it doesn't exist. Use sub="" for a
	// root bucket, non-empty for a nested one.
	Bucket(name, sub string) storageBucket

	// CreateBucket creates a bucket (and its root, for nested ones) if missing.
	CreateBucket(name, sub string) (storageBucket, error)

	// DeleteBucket deletes a nested bucket; sub must be non-empty.
	DeleteBucket(name, sub string) error

	Commit() error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback() error
}

// storageBucket is a sorted key-value collection.
type storageBucket interface {
	// Get returns nil if the key is missing. The slice is only valid until
	// the transaction ends.
	Get(key []byte) []byte
	Put(key, value []byte) error
	Cursor() storageCursor
	KeyCount() int
}

// storageCursor walks a bucket in key order; nil key means the end.
type storageCursor interface {
	First() (key, value []byte)
	Next() (key, value []byte)
}
