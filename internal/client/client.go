// Package client uploads local files to a Content-Range (blueimp) endpoint
// in chunks, retrying each chunk on transient failures.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultChunkSize = 8 * units.MiB
	APIKeyHeader     = "X-Api-Key"
)

type Config struct {
	// Endpoint is the full upload URL, e.g. http://host:8080/upload/blueimp.
	Endpoint  string
	ChunkSize int64
	// Concurrency bounds the chunks in flight between the first and the
	// last one.
	Concurrency int
	RetryMax    int
	APIKey      string
	// Param is the multipart field name of the file part.
	Param  string
	Logger *slog.Logger
	// HTTPClient overrides the retrying client; its cookie jar keeps the
	// session stable across chunks.
	HTTPClient *retryablehttp.Client
}

type Result struct {
	Path   string
	Size   int64
	Chunks int
}

type Uploader struct {
	cfg    Config
	http   *retryablehttp.Client
	logger *slog.Logger
}

// ParseSize accepts sizes such as "8MiB" or "512k".
func ParseSize(s string) (int64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("size must be positive: %q", s)
	}
	return n, nil
}

func New(cfg Config) *Uploader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Param == "" {
		cfg.Param = "file"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = retryablehttp.NewClient()
		hc.RetryMax = 4
		if cfg.RetryMax > 0 {
			hc.RetryMax = cfg.RetryMax
		}
		hc.RetryWaitMin = 200 * time.Millisecond
		hc.RetryWaitMax = 5 * time.Second
		hc.Logger = logger
	}
	if hc.HTTPClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		hc.HTTPClient.Jar = jar
	}
	return &Uploader{cfg: cfg, http: hc, logger: logger}
}

// UploadFile sends the file at path.
func (u *Uploader) UploadFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return Result{}, err
	}
	return u.Upload(ctx, filepath.Base(path), f, fi.Size())
}

// Upload sends size bytes of r as name. The first chunk goes alone so the
// server can issue a session, the middle ones run in parallel, and the last
// one, which triggers the merge, goes after all others were accepted.
func (u *Uploader) Upload(ctx context.Context, name string, r io.ReaderAt, size int64) (Result, error) {
	if size <= 0 {
		return Result{}, errors.New("client: cannot upload an empty file")
	}
	n := int((size + u.cfg.ChunkSize - 1) / u.cfg.ChunkSize)
	started := time.Now()
	u.logger.Info("upload.start", "name", name, "size", units.HumanSize(float64(size)), "chunks", n)

	var last response
	var err error
	if last, err = u.sendChunk(ctx, name, r, 0, size); err != nil {
		return Result{}, err
	}
	if n > 2 {
		if err := u.sendParallel(ctx, name, r, 1, n-1, size); err != nil {
			return Result{}, err
		}
	}
	if n > 1 {
		if last, err = u.sendChunk(ctx, name, r, n-1, size); err != nil {
			return Result{}, err
		}
	}
	if !last.Finished {
		return Result{}, fmt.Errorf("client: server did not finish the upload (done=%d)", last.Done)
	}
	u.logger.Info("upload.done", "name", name, "path", last.Path, "dur", time.Since(started).Round(time.Millisecond))
	return Result{Path: last.Path, Size: size, Chunks: n}, nil
}

// sendParallel sends chunks [from, to) with at most Concurrency in flight.
func (u *Uploader) sendParallel(ctx context.Context, name string, r io.ReaderAt, from, to int, size int64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, to-from)
	semaphore := make(chan struct{}, u.cfg.Concurrency)
	for i := from; i < to; i++ {
		go func(index int) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			_, err := u.sendChunk(ctx, name, r, index, size)
			errc <- err
		}(i)
	}
	var first error
	for i := from; i < to; i++ {
		if err := <-errc; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

type response struct {
	Done     int    `json:"done"`
	Finished bool   `json:"finished"`
	Path     string `json:"path"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (u *Uploader) sendChunk(ctx context.Context, name string, r io.ReaderAt, index int, size int64) (response, error) {
	start := int64(index) * u.cfg.ChunkSize
	end := min(start+u.cfg.ChunkSize, size) - 1

	data := make([]byte, end-start+1)
	if _, err := r.ReadAt(data, start); err != nil && !errors.Is(err, io.EOF) {
		return response{}, fmt.Errorf("read chunk %d: %w", index+1, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	w, err := mw.CreateFormFile(u.cfg.Param, name)
	if err != nil {
		return response{}, err
	}
	if _, err := w.Write(data); err != nil {
		return response{}, err
	}
	if err := mw.Close(); err != nil {
		return response{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u.cfg.Endpoint, body.Bytes())
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	if u.cfg.APIKey != "" {
		req.Header.Set(APIKeyHeader, u.cfg.APIKey)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("chunk %d: %w", index+1, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return response{}, fmt.Errorf("chunk %d rejected with status %d: %s", index+1, resp.StatusCode, e.Error.Message)
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("decode chunk %d response: %w", index+1, err)
	}
	u.logger.Debug("upload.chunk_sent", "chunk", index+1, "done", out.Done)
	return out, nil
}
