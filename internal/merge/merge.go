// Package merge assembles the chunks of a finished session into one file.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/chunkstore"
	"github.com/DanikLP1/chunk-upload-service/internal/sniff"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
)

// BufferSize bounds how much of a chunk is held in memory while copying.
const BufferSize = 4096

var extRe = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

type Result struct {
	Path string
	Size int64
	// AlreadyMerged is set when an earlier merge of the same stem won.
	AlreadyMerged bool
}

type Engine struct {
	st  *storage.Storage
	dir string
}

func New(st *storage.Storage, mergedDir string) *Engine {
	dir := strings.Trim(mergedDir, "/")
	if dir == "" {
		dir = "merged"
	}
	return &Engine{st: st, dir: dir}
}

// Dir is the output namespace merged files are published under.
func (e *Engine) Dir() string { return e.dir }

// NormalizeExt lower-cases ext and drops anything that is not a plain
// alphanumeric extension.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !extRe.MatchString(ext) {
		return ""
	}
	return ext
}

// Lookup finds a published file named stem.<ext>. Only a bare extension
// counts: "abc.def.png" belongs to stem "abc.def", not "abc".
func (e *Engine) Lookup(ctx context.Context, stem string) (Result, bool, error) {
	prefix := path.Join(e.dir, stem) + "."
	objs, err := e.st.List(ctx, prefix)
	if err != nil {
		return Result{}, false, err
	}
	for _, o := range objs {
		ext, ok := strings.CutPrefix(o.Key, prefix)
		if !ok || !extRe.MatchString(ext) {
			continue
		}
		return Result{Path: o.Key, Size: o.Size, AlreadyMerged: true}, true, nil
	}
	return Result{}, false, nil
}

// Merge concatenates chunks, which must be in byte order, into
// {dir}/{stem}.{ext}. A placeholder ext is replaced by one sniffed from the
// first bytes. The file becomes visible only after every chunk was copied,
// and an existing file under the stem is never replaced.
func (e *Engine) Merge(ctx context.Context, stem string, chunks []chunkstore.Chunk, ext string) (Result, error) {
	if err := chunkstore.ValidateKey(stem); err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		return Result{}, apperr.NotFound("no chunks stored for %s", stem)
	}
	if prev, ok, err := e.Lookup(ctx, stem); err != nil {
		return Result{}, apperr.Internal(err, "lookup merged file")
	} else if ok {
		return prev, nil
	}

	ext = NormalizeExt(ext)
	if sniff.IsPlaceholder(ext) {
		head, err := e.head(ctx, chunks)
		if err != nil {
			return e.lost(ctx, stem, apperr.Internal(err, "read chunk head"))
		}
		ext = sniff.ExtensionOr(head)
	}
	target := path.Join(e.dir, stem+"."+ext)

	ws, err := e.st.Begin(ctx, target, storage.PutOpts{NoOverwrite: true})
	if errors.Is(err, storage.ErrExists) {
		return e.existing(ctx, target)
	}
	if err != nil {
		return Result{}, apperr.Internal(err, "begin merge")
	}

	buf := make([]byte, BufferSize)
	var size int64
	for _, c := range chunks {
		n, err := e.appendChunk(ctx, ws.Writer(), c.Key, buf)
		size += n
		if err != nil {
			_ = ws.Abort(ctx)
			return e.lost(ctx, stem, apperr.Internal(err, fmt.Sprintf("merge chunk %s", c.Key)))
		}
	}
	if err := ws.Commit(ctx); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return e.existing(ctx, target)
		}
		return Result{}, apperr.Internal(err, "publish merged file")
	}
	return Result{Path: target, Size: size}, nil
}

func (e *Engine) existing(ctx context.Context, target string) (Result, error) {
	info, _, err := e.st.Stat(ctx, target)
	if err != nil {
		return Result{}, apperr.Internal(err, "stat merged file")
	}
	return Result{Path: target, Size: info.Size, AlreadyMerged: true}, nil
}

// lost resolves a failed merge: chunks vanish when a concurrent merge of the
// same stem published and swept first, in which case its result stands.
func (e *Engine) lost(ctx context.Context, stem string, cause error) (Result, error) {
	if prev, ok, err := e.Lookup(ctx, stem); err == nil && ok {
		return prev, nil
	}
	return Result{}, cause
}

// onlyReader hides WriterTo so io.CopyBuffer really uses the buffer.
type onlyReader struct{ io.Reader }

func (e *Engine) appendChunk(ctx context.Context, w io.Writer, key string, buf []byte) (int64, error) {
	rc, err := e.st.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.CopyBuffer(w, onlyReader{rc}, buf)
}

// head reads up to sniff.HeadSize leading bytes across the chunks.
func (e *Engine) head(ctx context.Context, chunks []chunkstore.Chunk) ([]byte, error) {
	head := make([]byte, 0, sniff.HeadSize)
	for _, c := range chunks {
		if len(head) == sniff.HeadSize {
			break
		}
		rc, err := e.st.ReadAt(ctx, c.Key, 0, int64(sniff.HeadSize-len(head)))
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		head = append(head, b...)
	}
	return head, nil
}
