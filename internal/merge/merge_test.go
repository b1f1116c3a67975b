package merge

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/chunkstore"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
	"github.com/DanikLP1/chunk-upload-service/internal/storage/fsdriver"
	"github.com/DanikLP1/chunk-upload-service/internal/storage/memdriver"
)

// storeSplit stores data in chunkSize pieces under sessionKey.
func storeSplit(t *testing.T, cs *chunkstore.Store, sessionKey string, data []byte, chunkSize int) []chunkstore.Chunk {
	t.Helper()
	ctx := context.Background()
	total := int64(len(data))
	for start := 0; start < len(data); start += chunkSize {
		end := min(start+chunkSize, len(data)) - 1
		r, err := ranges.NewContentRange(int64(start), int64(end), total)
		require.NoError(t, err)
		_, err = cs.Store(ctx, sessionKey, r, bytes.NewReader(data[start:end+1]))
		require.NoError(t, err)
	}
	chunks, err := cs.List(ctx, sessionKey)
	require.NoError(t, err)
	return chunks
}

func readKey(t *testing.T, st *storage.Storage, key string) []byte {
	t.Helper()
	rc, err := st.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestMergeRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := storage.NewWithDriver(fsdriver.New(t.TempDir()))
	cs := chunkstore.New(st, "chunks")
	e := New(st, "merged")

	data := make([]byte, 10*BufferSize+123)
	_, _ = rand.Read(data)
	chunks := storeSplit(t, cs, "roundtrip", data, 3*BufferSize+7)

	res, err := e.Merge(ctx, "roundtrip", chunks, "dat")
	require.NoError(t, err)
	assert.Equal(t, "merged/roundtrip.dat", res.Path)
	assert.EqualValues(t, len(data), res.Size)
	assert.False(t, res.AlreadyMerged)
	assert.Equal(t, data, readKey(t, st, res.Path))
}

func TestMergeSniffsPlaceholderExtension(t *testing.T) {
	ctx := context.Background()
	st := storage.NewWithDriver(memdriver.New())
	cs := chunkstore.New(st, "chunks")
	e := New(st, "merged")

	data := []byte("%PDF-1.4\n" + strings.Repeat("stream data ", 50))
	chunks := storeSplit(t, cs, "doc", data, 4)

	res, err := e.Merge(ctx, "doc", chunks, "bin")
	require.NoError(t, err)
	assert.Equal(t, "merged/doc.pdf", res.Path)

	chunks = storeSplit(t, cs, "blob", []byte{0x00, 0x01, 0x02, 0xff, 0xfe}, 2)
	res, err = e.Merge(ctx, "blob", chunks, "")
	require.NoError(t, err)
	assert.Equal(t, "merged/blob.bin", res.Path)
}

func TestMergeIsGuarded(t *testing.T) {
	ctx := context.Background()
	st := storage.NewWithDriver(fsdriver.New(t.TempDir()))
	cs := chunkstore.New(st, "chunks")
	e := New(st, "merged")

	chunks := storeSplit(t, cs, "once", []byte("hello world"), 5)
	first, err := e.Merge(ctx, "once", chunks, "txt")
	require.NoError(t, err)

	second, err := e.Merge(ctx, "once", chunks, "txt")
	require.NoError(t, err)
	assert.True(t, second.AlreadyMerged)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, first.Size, second.Size)

	objs, err := st.List(ctx, "merged/")
	require.NoError(t, err)
	assert.Len(t, objs, 1)
}

func TestMergeWithoutChunks(t *testing.T) {
	e := New(storage.NewWithDriver(memdriver.New()), "merged")
	_, err := e.Merge(context.Background(), "empty", nil, "txt")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

// failingDriver breaks reads of one key to simulate a storage fault mid-merge.
type failingDriver struct {
	storage.Driver
	badKey string
}

func (d failingDriver) ReadAt(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	if key == d.badKey {
		return nil, errors.New("disk on fire")
	}
	return d.Driver.ReadAt(ctx, key, off, n)
}

func TestFailedMergeLeavesNoFile(t *testing.T) {
	ctx := context.Background()
	mem := memdriver.New()
	good := storage.NewWithDriver(mem)
	chunks := storeSplit(t, chunkstore.New(good, "chunks"), "broken", []byte("abcdefghij"), 4)
	require.Len(t, chunks, 3)

	st := storage.NewWithDriver(failingDriver{Driver: mem, badKey: chunks[2].Key})
	e := New(st, "merged")
	_, err := e.Merge(ctx, "broken", chunks, "txt")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	objs, err := st.List(ctx, "merged/")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, "png", NormalizeExt(".PNG"))
	assert.Equal(t, "", NormalizeExt("../etc"))
	assert.Equal(t, "", NormalizeExt(""))
	assert.Equal(t, "tar", NormalizeExt("tar"))
}

func TestLookupIgnoresLongerStems(t *testing.T) {
	ctx := context.Background()
	st := storage.NewWithDriver(memdriver.New())
	_, err := st.Put(ctx, "merged/abcd.txt", strings.NewReader("x"), storage.PutOpts{})
	require.NoError(t, err)

	_, ok, err := New(st, "merged").Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupIgnoresDottedStems(t *testing.T) {
	ctx := context.Background()
	st := storage.NewWithDriver(memdriver.New())
	for _, key := range []string{"merged/abc.def.png", "merged/200_report.tar.tar", "merged/abc.PNG"} {
		_, err := st.Put(ctx, key, strings.NewReader("x"), storage.PutOpts{})
		require.NoError(t, err)
	}
	e := New(st, "merged")

	for _, stem := range []string{"abc", "200_report"} {
		_, ok, err := e.Lookup(ctx, stem)
		require.NoError(t, err)
		assert.False(t, ok, stem)
	}

	res, ok, err := e.Lookup(ctx, "abc.def")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "merged/abc.def.png", res.Path)
	assert.True(t, res.AlreadyMerged)
}
