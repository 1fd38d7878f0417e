package tupledb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// FileBackend keeps a document as a single JSON file. The location is any
// URL afs understands; a bare path means the local file system.
//
// Store writes to a sibling temp file and moves it over the target, so a
// reader (or a crash) never observes a half-written document.
type FileBackend[T any] struct {
	URL string
	fs  afs.Service
}

func NewFileBackend[T any](url string) *FileBackend[T] {
	return &FileBackend[T]{
		URL: url,
		fs:  afs.New(),
	}
}

func (b *FileBackend[T]) String() string {
	return b.URL
}

func (b *FileBackend[T]) Load(ctx context.Context) (T, bool, error) {
	var doc T
	exists, err := b.fs.Exists(ctx, b.URL)
	if err != nil {
		return doc, false, fmt.Errorf("tupledb: checking %s: %w", b.URL, err)
	}
	if !exists {
		return doc, false, nil
	}
	raw, err := b.fs.DownloadWithURL(ctx, b.URL)
	if err != nil {
		return doc, false, fmt.Errorf("tupledb: reading %s: %w", b.URL, err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, false, dataErrf(b.URL, raw, err, "malformed document")
	}
	return doc, true, nil
}

func (b *FileBackend[T]) Store(ctx context.Context, doc T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tupledb: encoding %s: %w", b.URL, err)
	}
	tmp := b.URL + ".tmp"
	if err := b.fs.Upload(ctx, tmp, file.DefaultFileOsMode, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("tupledb: writing %s: %w", tmp, err)
	}
	if err := b.fs.Move(ctx, tmp, b.URL); err != nil {
		_ = b.fs.Delete(ctx, tmp)
		return fmt.Errorf("tupledb: replacing %s: %w", b.URL, err)
	}
	return nil
}
