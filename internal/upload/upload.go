// Package upload coordinates chunked upload sessions: it stores each chunk,
// decides when a session is complete, merges it once and reports the result.
package upload

import (
	"context"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/chunkstore"
	"github.com/DanikLP1/chunk-upload-service/internal/merge"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
)

// Policy decides when a session counts as complete.
type Policy int

const (
	// PolicyLast trusts the range that reports itself as the final one.
	PolicyLast Policy = iota
	// PolicyCount waits until as many chunks as declared are stored, which
	// is the only safe test when chunks arrive in parallel.
	PolicyCount
)

func (p Policy) String() string {
	if p == PolicyCount {
		return "count"
	}
	return "last"
}

type Config struct {
	Disk      string
	ChunkDir  string
	MergedDir string
	// Sweep removes the chunk namespace once the merge succeeded.
	Sweep bool
}

// Completed describes a merged upload.
type Completed struct {
	Disk       string
	Path       string
	SessionKey string
	Size       int64
}

// Notifier is called at most once per completed session.
type Notifier func(ctx context.Context, c Completed)

type Chunk struct {
	SessionKey string
	Range      ranges.Range
	Policy     Policy
	// Extension of the client file name; empty or "bin" means unknown.
	Extension string
	Body      io.Reader
}

type Result struct {
	Percentage int `json:"done"`
	// Chunks lists the chunks that have arrived so far while the session is
	// still open.
	Chunks    []string `json:"chunks,omitempty"`
	Finished  bool     `json:"finished"`
	FinalPath string   `json:"path,omitempty"`
	// Duplicate marks a response for a session that was already merged.
	Duplicate bool `json:"-"`
}

type Option func(*Coordinator)

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithMergeHook observes every merge attempt; result is "merged",
// "already_merged" or "failed".
func WithMergeHook(fn func(result string, d time.Duration)) Option {
	return func(c *Coordinator) { c.onMerge = fn }
}

// WithStoreHook observes the size of every stored chunk.
func WithStoreHook(fn func(n int64)) Option {
	return func(c *Coordinator) { c.onStore = fn }
}

type Coordinator struct {
	cfg     Config
	st      *storage.Storage
	chunks  *chunkstore.Store
	merger  *merge.Engine
	notify  Notifier
	log     *slog.Logger
	onMerge func(string, time.Duration)
	onStore func(int64)
}

func New(st *storage.Storage, cfg Config, notify Notifier, opts ...Option) *Coordinator {
	if cfg.Disk == "" {
		cfg.Disk = st.Name()
	}
	c := &Coordinator{
		cfg:     cfg,
		st:      st,
		chunks:  chunkstore.New(st, cfg.ChunkDir),
		merger:  merge.New(st, cfg.MergedDir),
		notify:  notify,
		log:     slog.New(slog.DiscardHandler),
		onMerge: func(string, time.Duration) {},
		onStore: func(int64) {},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Coordinator) Config() Config            { return c.cfg }
func (c *Coordinator) Chunks() *chunkstore.Store { return c.chunks }
func (c *Coordinator) Merger() *merge.Engine     { return c.merger }
func (c *Coordinator) Storage() *storage.Storage { return c.st }

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// HandleChunk stores one chunk and, when the session is complete, merges it,
// sweeps the namespace and notifies. Concurrent final chunks may both reach
// the merge; the publish guard lets exactly one of them notify.
func (c *Coordinator) HandleChunk(ctx context.Context, ch Chunk) (Result, error) {
	if err := chunkstore.ValidateKey(ch.SessionKey); err != nil {
		return Result{}, err
	}
	if ch.Body == nil {
		return Result{}, apperr.Validation("file", apperr.RuleRequired, "File not found in request body")
	}

	body := &countingReader{r: ch.Body}
	key, err := c.chunks.Store(ctx, ch.SessionKey, ch.Range, body)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return Result{}, err
		}
		return Result{}, apperr.Internal(err, "store chunk")
	}
	c.onStore(body.n)
	c.log.Debug("upload.chunk_stored", "session", ch.SessionKey, "key", key, "bytes", body.n)

	stored, err := c.chunks.List(ctx, ch.SessionKey)
	if err != nil {
		return Result{}, apperr.Internal(err, "list chunks")
	}

	if !c.complete(ch, stored) {
		// a nearly empty namespace may be a late duplicate of a session that
		// was merged and swept already
		if len(stored) <= 1 {
			if prev, ok, err := c.merger.Lookup(ctx, ch.SessionKey); err != nil {
				return Result{}, apperr.Internal(err, "lookup merged file")
			} else if ok {
				return c.finish(ctx, ch.SessionKey, prev)
			}
		}
		return Result{Percentage: c.progress(ch, stored), Chunks: keys(stored)}, nil
	}

	began := time.Now()
	res, err := c.merger.Merge(ctx, ch.SessionKey, stored, ch.Extension)
	if err != nil {
		c.onMerge("failed", time.Since(began))
		return Result{}, err
	}
	if res.AlreadyMerged {
		c.onMerge("already_merged", time.Since(began))
	} else {
		c.onMerge("merged", time.Since(began))
	}
	return c.finish(ctx, ch.SessionKey, res)
}

func (c *Coordinator) finish(ctx context.Context, sessionKey string, res merge.Result) (Result, error) {
	if c.cfg.Sweep {
		if err := c.chunks.DeleteNamespace(ctx, sessionKey); err != nil {
			return Result{}, apperr.Internal(err, "sweep chunks")
		}
	}
	if res.AlreadyMerged {
		c.log.Info("upload.duplicate_last", "session", sessionKey, "path", res.Path)
	} else {
		c.log.Info("upload.merged", "session", sessionKey, "path", res.Path, "size", res.Size)
		c.emit(ctx, Completed{Disk: c.cfg.Disk, Path: res.Path, SessionKey: sessionKey, Size: res.Size})
	}
	return Result{Percentage: 100, Finished: true, FinalPath: res.Path, Duplicate: res.AlreadyMerged}, nil
}

func (c *Coordinator) emit(ctx context.Context, done Completed) {
	if c.notify != nil {
		c.notify(ctx, done)
	}
}

func (c *Coordinator) complete(ch Chunk, stored []chunkstore.Chunk) bool {
	if ch.Policy == PolicyCount {
		n := ch.Range.NumberOfChunks()
		return n > 0 && int64(len(stored)) >= n
	}
	return ch.Range.IsLast()
}

func (c *Coordinator) progress(ch Chunk, stored []chunkstore.Chunk) int {
	if ch.Policy == PolicyCount {
		return ranges.Percent(int64(len(stored)), ch.Range.NumberOfChunks())
	}
	return ch.Range.Percentage()
}

func keys(cs []chunkstore.Chunk) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Key
	}
	return out
}

// StoreWhole saves a body that arrived in one request under the merged
// directory and notifies. name must be a bare file name.
func (c *Coordinator) StoreWhole(ctx context.Context, name string, body io.Reader) (Result, error) {
	if err := chunkstore.ValidateKey(name); err != nil {
		return Result{}, err
	}
	key := path.Join(c.merger.Dir(), name)
	n, err := c.st.Put(ctx, key, body, storage.PutOpts{NoOverwrite: true})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return Result{}, err
		}
		return Result{}, apperr.Internal(err, "store upload")
	}
	c.onStore(n)
	c.log.Info("upload.stored_whole", "path", key, "size", n)
	c.emit(ctx, Completed{Disk: c.cfg.Disk, Path: key, Size: n})
	return Result{Percentage: 100, Finished: true, FinalPath: key}, nil
}

// Sweep deletes the namespaces whose newest chunk is older than maxAge and
// returns how many were removed.
func (c *Coordinator) Sweep(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	nss, err := c.chunks.Namespaces(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, ns := range nss {
		if now.Sub(ns.LastModified) < maxAge {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := c.chunks.DeleteNamespace(ctx, ns.Key); err != nil {
			return removed, err
		}
		removed++
		c.log.Debug("upload.namespace_expired", "session", ns.Key, "chunks", ns.Chunks, "age", now.Sub(ns.LastModified))
	}
	return removed, nil
}
