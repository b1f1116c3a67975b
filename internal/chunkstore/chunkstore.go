// Package chunkstore persists the chunks of open upload sessions.
//
// A chunk lives at {chunkDir}/{sessionKey}/{start}-{end} with both offsets
// zero-padded to the digit count of the total, so lexicographic order is byte
// order. The name is the only metadata a chunk has.
package chunkstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
)

// MaxKeyLen leaves room for "." + extension in a 255-byte file name.
const MaxKeyLen = 200

// ValidateKey rejects session keys that are not a single path segment.
// Spaces, unicode and punctuation from client file names are fine.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || len(key) > MaxKeyLen ||
		!utf8.ValidString(key) || strings.ContainsAny(key, "/\\") || strings.Contains(key, ".tmp-") ||
		strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return apperr.Validation("sessionKey", apperr.RuleSafeName, "`%s` contains invalid characters", "sessionKey")
	}
	return nil
}

type Chunk struct {
	Key     string
	Start   int64
	End     int64
	Size    int64
	ModTime time.Time
}

type Store struct {
	st  *storage.Storage
	dir string
}

func New(st *storage.Storage, chunkDir string) *Store {
	dir := strings.Trim(chunkDir, "/")
	if dir == "" {
		dir = "chunks"
	}
	return &Store{st: st, dir: dir}
}

func (s *Store) Storage() *storage.Storage { return s.st }

func (s *Store) namespace(sessionKey string) string {
	return path.Join(s.dir, sessionKey) + "/"
}

// ChunkName is the padded "start-end" name of r.
func ChunkName(r ranges.Range) string {
	w := len(strconv.FormatInt(r.Total(), 10))
	return fmt.Sprintf("%0*d-%0*d", w, r.Start(), w, r.End())
}

// ParseChunkName reverses ChunkName.
func ParseChunkName(name string) (start, end int64, err error) {
	a, b, ok := strings.Cut(name, "-")
	if !ok {
		return 0, 0, fmt.Errorf("chunkstore: bad chunk name %q", name)
	}
	if start, err = strconv.ParseInt(a, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("chunkstore: bad chunk name %q: %w", name, err)
	}
	if end, err = strconv.ParseInt(b, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("chunkstore: bad chunk name %q: %w", name, err)
	}
	return start, end, nil
}

// Store writes body as the chunk r of sessionKey. Storing the same range
// again replaces the earlier copy, so retries are harmless.
func (s *Store) Store(ctx context.Context, sessionKey string, r ranges.Range, body io.Reader) (string, error) {
	if err := ValidateKey(sessionKey); err != nil {
		return "", err
	}
	key := s.namespace(sessionKey) + ChunkName(r)
	if _, err := s.st.Put(ctx, key, body, storage.PutOpts{}); err != nil {
		return "", fmt.Errorf("store chunk %s: %w", key, err)
	}
	return key, nil
}

// List returns the chunks of sessionKey in ascending byte order. An unknown
// session yields an empty list.
func (s *Store) List(ctx context.Context, sessionKey string) ([]Chunk, error) {
	if err := ValidateKey(sessionKey); err != nil {
		return nil, err
	}
	ns := s.namespace(sessionKey)
	objs, err := s.st.List(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("list chunks %s: %w", ns, err)
	}
	out := make([]Chunk, 0, len(objs))
	for _, o := range objs {
		name := strings.TrimPrefix(o.Key, ns)
		if strings.Contains(name, "/") {
			continue
		}
		start, end, err := ParseChunkName(name)
		if err != nil {
			continue
		}
		out = append(out, Chunk{Key: o.Key, Start: start, End: end, Size: o.Size, ModTime: o.ModTime})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out, nil
}

// Exists checks one chunk, or the namespace itself when chunkName is empty.
func (s *Store) Exists(ctx context.Context, sessionKey, chunkName string) (bool, error) {
	if chunkName == "" {
		chunks, err := s.List(ctx, sessionKey)
		if err != nil {
			return false, err
		}
		return len(chunks) > 0, nil
	}
	if err := ValidateKey(sessionKey); err != nil {
		return false, err
	}
	if strings.ContainsAny(chunkName, "/\\") {
		return false, nil
	}
	_, ok, err := s.st.Stat(ctx, s.namespace(sessionKey)+chunkName)
	return ok, err
}

// LastEnd reports the end offset of the furthest stored chunk, or -1 when the
// session has none.
func (s *Store) LastEnd(ctx context.Context, sessionKey string) (int64, error) {
	chunks, err := s.List(ctx, sessionKey)
	if err != nil {
		return -1, err
	}
	end := int64(-1)
	for _, c := range chunks {
		end = max(end, c.End)
	}
	return end, nil
}

func (s *Store) DeleteNamespace(ctx context.Context, sessionKey string) error {
	if err := ValidateKey(sessionKey); err != nil {
		return err
	}
	return s.st.DeletePrefix(ctx, s.namespace(sessionKey))
}

// Namespace summarises one session directory.
type Namespace struct {
	Key          string
	Chunks       int
	Size         int64
	LastModified time.Time
}

// Namespaces lists every open session, sorted by key.
func (s *Store) Namespaces(ctx context.Context) ([]Namespace, error) {
	root := s.dir + "/"
	objs, err := s.st.List(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	byKey := map[string]*Namespace{}
	var keys []string
	for _, o := range objs {
		key, _, ok := strings.Cut(strings.TrimPrefix(o.Key, root), "/")
		if !ok || key == "" {
			continue
		}
		ns, seen := byKey[key]
		if !seen {
			ns = &Namespace{Key: key}
			byKey[key] = ns
			keys = append(keys, key)
		}
		ns.Chunks++
		ns.Size += o.Size
		if o.ModTime.After(ns.LastModified) {
			ns.LastModified = o.ModTime
		}
	}
	sort.Strings(keys)
	out := make([]Namespace, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byKey[k])
	}
	return out, nil
}
