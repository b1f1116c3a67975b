// Package memdriver keeps objects in process memory. It backs tests and the
// "memory" disk.
package memdriver

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DanikLP1/chunk-upload-service/internal/storage"
)

type object struct {
	data    []byte
	modTime time.Time
}

type Mem struct {
	mu      sync.RWMutex
	objects map[string]object
	// Now stamps committed objects; tests replace it to age sessions.
	Now func() time.Time
}

func New() *Mem {
	return &Mem{objects: make(map[string]object), Now: time.Now}
}

func (m *Mem) Name() string { return "memory" }

type writeSession struct {
	m    *Mem
	key  string
	opts storage.PutOpts
	buf  bytes.Buffer
	done bool
}

func (m *Mem) BeginWrite(ctx context.Context, key string, opts storage.PutOpts) (storage.WriteSession, error) {
	return &writeSession{m: m, key: key, opts: opts}, nil
}

func (ws *writeSession) Writer() io.Writer { return &ws.buf }

func (ws *writeSession) Commit(ctx context.Context) error {
	if ws.done {
		return nil
	}
	ws.done = true
	ws.m.mu.Lock()
	defer ws.m.mu.Unlock()
	if _, ok := ws.m.objects[ws.key]; ok && ws.opts.NoOverwrite {
		return storage.ErrExists
	}
	ws.m.objects[ws.key] = object{data: bytes.Clone(ws.buf.Bytes()), modTime: ws.m.Now()}
	return nil
}

func (ws *writeSession) Abort(ctx context.Context) error {
	ws.done = true
	ws.buf.Reset()
	return nil
}

func (m *Mem) ReadAt(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	m.mu.RLock()
	o, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	data := o.data
	if off > int64(len(data)) {
		off = int64(len(data))
	}
	data = data[off:]
	if n >= 0 && n < int64(len(data)) {
		data = data[:n]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Mem) Stat(ctx context.Context, key string) (storage.ObjectInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, false, nil
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(o.data)), ModTime: o.modTime}, true, nil
}

func (m *Mem) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []storage.ObjectInfo
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(o.data)), ModTime: o.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Mem) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Mem) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}
