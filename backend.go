package tupledb

import "context"

// Backend is the collaborator that owns the backing document. Load reports
// found=false when no document exists yet. Store replaces the whole document.
//
// The engine never calls Store concurrently with itself.
type Backend[T any] interface {
	Load(ctx context.Context) (doc T, found bool, err error)
	Store(ctx context.Context, doc T) error
}
