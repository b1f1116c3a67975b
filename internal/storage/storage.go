package storage

import (
	"context"
	"io"
)

type Storage struct {
	driver Driver
}

func NewWithDriver(d Driver) *Storage {
	return &Storage{driver: d}
}

func (s *Storage) Driver() Driver {
	return s.driver
}

// Name is the disk name reported to upload listeners.
func (s *Storage) Name() string {
	return s.driver.Name()
}

// Put streams r into key. The object only appears once the copy completed.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, opts PutOpts) (int64, error) {
	ws, err := s.driver.BeginWrite(ctx, key, opts)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(ws.Writer(), r)
	if err != nil {
		_ = ws.Abort(ctx)
		return n, err
	}
	return n, ws.Commit(ctx)
}

func (s *Storage) Begin(ctx context.Context, key string, opts PutOpts) (WriteSession, error) {
	return s.driver.BeginWrite(ctx, key, opts)
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.driver.ReadAt(ctx, key, 0, -1)
}

func (s *Storage) ReadAt(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	return s.driver.ReadAt(ctx, key, off, n)
}

func (s *Storage) Stat(ctx context.Context, key string) (ObjectInfo, bool, error) {
	return s.driver.Stat(ctx, key)
}

func (s *Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return s.driver.List(ctx, prefix)
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.driver.Delete(ctx, key)
}

func (s *Storage) DeletePrefix(ctx context.Context, prefix string) error {
	return s.driver.DeletePrefix(ctx, prefix)
}
