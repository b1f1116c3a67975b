package fsdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/DanikLP1/chunk-upload-service/internal/storage"
)

const tmpMarker = ".tmp-"

type FS struct {
	Root string
}

func New(root string) *FS { return &FS{Root: root} }

func (d *FS) Name() string { return "local" }

func (d *FS) pathFor(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "\\") {
		return "", fmt.Errorf("fsdriver: invalid key %q", key)
	}
	p := filepath.Join(d.Root, filepath.FromSlash(clean[1:]))
	rel, err := filepath.Rel(d.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("fsdriver: key %q escapes root", key)
	}
	return p, nil
}

type writeSession struct {
	tmpPath     string
	finalPath   string
	dirPath     string
	f           *os.File
	noOverwrite bool
	written     int64
}

func (d *FS) BeginWrite(ctx context.Context, key string, opts storage.PutOpts) (storage.WriteSession, error) {
	final, err := d.pathFor(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp := final + tmpMarker + ulid.Make().String()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &writeSession{
		tmpPath:     tmp,
		finalPath:   final,
		dirPath:     dir,
		f:           f,
		noOverwrite: opts.NoOverwrite,
	}, nil
}

func (ws *writeSession) Writer() io.Writer { return ws }

func (ws *writeSession) Write(p []byte) (int, error) {
	n, err := ws.f.Write(p)
	ws.written += int64(n)
	return n, err
}

func (ws *writeSession) Commit(ctx context.Context) error {
	if err := ws.f.Sync(); err != nil {
		_ = ws.f.Close()
		_ = os.Remove(ws.tmpPath)
		return err
	}
	if err := ws.f.Close(); err != nil {
		_ = os.Remove(ws.tmpPath)
		return err
	}

	if ws.noOverwrite {
		// link fails if the name is taken, so two racing commits cannot both win
		err := os.Link(ws.tmpPath, ws.finalPath)
		_ = os.Remove(ws.tmpPath)
		if errors.Is(err, fs.ErrExist) {
			return storage.ErrExists
		}
		if err != nil {
			return err
		}
	} else if err := os.Rename(ws.tmpPath, ws.finalPath); err != nil {
		_ = os.Remove(ws.tmpPath)
		return err
	}

	if dir, err := os.Open(ws.dirPath); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

func (ws *writeSession) Abort(ctx context.Context) error {
	_ = ws.f.Close()
	return os.Remove(ws.tmpPath)
}

func (d *FS) ReadAt(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	final, err := d.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(final)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if off > 0 {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	if n >= 0 {
		return struct {
			io.Reader
			io.Closer
		}{Reader: io.LimitReader(f, n), Closer: f}, nil
	}
	return f, nil
}

func (d *FS) Stat(ctx context.Context, key string) (storage.ObjectInfo, bool, error) {
	final, err := d.pathFor(key)
	if err != nil {
		return storage.ObjectInfo{}, false, err
	}
	fi, err := os.Stat(final)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ObjectInfo{}, false, nil
		}
		return storage.ObjectInfo{}, false, err
	}
	if fi.IsDir() {
		return storage.ObjectInfo{}, false, nil
	}
	return storage.ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()}, true, nil
}

// List walks the directory holding prefix. In-flight temp files are skipped.
func (d *FS) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	dirKey := prefix
	if !strings.HasSuffix(dirKey, "/") {
		dirKey = path.Dir(dirKey)
	}
	base := d.Root
	if dirKey != "" && dirKey != "." && dirKey != "/" {
		p, err := d.pathFor(dirKey)
		if err != nil {
			return nil, err
		}
		base = p
	}

	var out []storage.ObjectInfo
	err := filepath.WalkDir(base, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if e.IsDir() {
			if p != base && !strings.HasPrefix(key+"/", prefix) && !strings.HasPrefix(prefix, key+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.Contains(e.Name(), tmpMarker) {
			return nil
		}
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		out = append(out, storage.ObjectInfo{Key: key, Size: fi.Size(), ModTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (d *FS) Delete(ctx context.Context, key string) error {
	final, err := d.pathFor(key)
	if err != nil {
		return err
	}
	err = os.Remove(final)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// DeletePrefix removes a whole directory when prefix ends in "/", otherwise
// every listed object.
func (d *FS) DeletePrefix(ctx context.Context, prefix string) error {
	if strings.HasSuffix(prefix, "/") {
		p, err := d.pathFor(prefix)
		if err != nil {
			return err
		}
		return os.RemoveAll(p)
	}
	objs, err := d.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, o := range objs {
		if err := d.Delete(ctx, o.Key); err != nil {
			return err
		}
	}
	return nil
}
