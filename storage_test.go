package tupledb

import (
	"testing"

	"go.etcd.io/bbolt"
)

func storages(t *testing.T) map[string]storage {
	bdb := must(bbolt.Open(tempPath(t, "storage.bolt"), 0666, &bbolt.Options{NoSync: true}))
	bst := newBoltStorage(bdb)
	mst := newMemStorage()
	t.Cleanup(func() {
		bst.Close()
		mst.Close()
	})
	return map[string]storage{"bolt": bst, "mem": mst}
}

func TestStorage_BucketsAndCursor(t *testing.T) {
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			tx := must(st.BeginTx(true))
			if tx.Bucket("root", "leaf") != nil {
				t.Fatalf("Bucket before CreateBucket = non-nil, wanted nil")
			}
			buck := must(tx.CreateBucket("root", "leaf"))
			mustPut(t, buck, []byte("b"), []byte("2"))
			mustPut(t, buck, []byte("a"), []byte("1"))
			mustPut(t, buck, []byte("a"), []byte("0"))
			ensure(tx.Commit())

			tx = must(st.BeginTx(false))
			defer tx.Rollback()
			buck = tx.Bucket("root", "leaf")
			if buck == nil {
				t.Fatalf("Bucket after commit = nil")
			}
			deepEqual(t, buck.KeyCount(), 2)
			deepEqual(t, string(buck.Get([]byte("a"))), "0")
			if buck.Get([]byte("c")) != nil {
				t.Errorf("Get(missing) = non-nil, wanted nil")
			}

			var keys []string
			c := buck.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				keys = append(keys, string(k))
			}
			deepEqual(t, keys, []string{"a", "b"})
		})
	}
}

func TestStorage_RollbackDiscards(t *testing.T) {
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			tx := must(st.BeginTx(true))
			mustPut(t, must(tx.CreateBucket("root", "leaf")), []byte("a"), []byte("1"))
			ensure(tx.Rollback())

			tx = must(st.BeginTx(false))
			defer tx.Rollback()
			if tx.Bucket("root", "leaf") != nil {
				t.Fatalf("Bucket after rollback = non-nil, wanted nil")
			}
		})
	}
}

func TestStorage_DeleteBucket(t *testing.T) {
	for name, st := range storages(t) {
		t.Run(name, func(t *testing.T) {
			tx := must(st.BeginTx(true))
			defer tx.Rollback()
			if err := tx.DeleteBucket("root", "leaf"); err != errBucketNotFound {
				t.Fatalf("DeleteBucket(missing) = %v, wanted errBucketNotFound", err)
			}
			must(tx.CreateBucket("root", "leaf"))
			ensure(tx.DeleteBucket("root", "leaf"))
			if tx.Bucket("root", "leaf") != nil {
				t.Fatalf("Bucket after DeleteBucket = non-nil, wanted nil")
			}
			ensure(tx.Commit())
			ensure(tx.Rollback())
		})
	}
}

func mustPut(t *testing.T, buck storageBucket, k, v []byte) {
	t.Helper()
	if err := buck.Put(k, v); err != nil {
		t.Fatalf("Put(%q) failed: %v", k, err)
	}
}
