package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound = errors.New("storage: object not found")
	// ErrExists is returned by Commit when PutOpts.NoOverwrite is set and the
	// key is already taken.
	ErrExists = errors.New("storage: object already exists")
)

// Keys are slash-separated relative paths, e.g. "chunks/<session>/000-099".
type PutOpts struct {
	Size        int64
	NoOverwrite bool
}

type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

type Driver interface {
	Name() string
	BeginWrite(ctx context.Context, key string, opts PutOpts) (WriteSession, error)
	// ReadAt reads n bytes from off; n < 0 reads to the end.
	ReadAt(ctx context.Context, key string, off, n int64) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, bool, error)
	// List returns the objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// WriteSession stages an object; nothing is visible under the key until
// Commit succeeds.
type WriteSession interface {
	Writer() io.Writer
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}
