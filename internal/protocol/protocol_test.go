package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
	"github.com/DanikLP1/chunk-upload-service/internal/storage/memdriver"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

type part struct {
	field, filename string
	data            []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type env struct {
	st   *storage.Storage
	deps Deps

	mu   sync.Mutex
	done []upload.Completed
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{st: storage.NewWithDriver(memdriver.New())}
	c := upload.New(e.st, upload.Config{ChunkDir: "chunks", MergedDir: "merged", Sweep: true},
		func(_ context.Context, c upload.Completed) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.done = append(e.done, c)
		})
	e.deps = Deps{Coordinator: c, Identifier: identifier.Nop{}, NewName: func() string { return "fixed" }}
	return e
}

func (e *env) handler(t *testing.T, name string, o Options) Handler {
	t.Helper()
	h, err := New(name, e.deps, o)
	require.NoError(t, err)
	return h
}

func (e *env) read(t *testing.T, key string) string {
	t.Helper()
	rc, err := e.st.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func body(t *testing.T, res Response) map[string]any {
	t.Helper()
	raw, err := json.Marshal(res.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func serve(t *testing.T, h Handler, r *http.Request) Response {
	t.Helper()
	res, err := h.Handle(r.Context(), r)
	require.NoError(t, err)
	return res
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{
		"blueimp", "dropzone", "fine-uploader", "flow-js", "monolith",
		"ng-file-upload", "plupload", "resumable-js", "simple-uploader-js",
	}, Names())

	_, err := New("tus", newEnv(t).deps, Options{})
	assert.ErrorIs(t, err, ErrUnknownProtocol)

	_, err = New("blueimp", Deps{}, Options{})
	assert.Error(t, err)
}

func TestMonolith(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "monolith", Options{})

	res := serve(t, h, multipartRequest(t, http.MethodPost, "/upload/monolith", nil,
		part{"file", "note.txt", []byte("just some text")}))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.True(t, res.Stored)
	b := body(t, res)
	assert.EqualValues(t, 100, b["done"])
	assert.Equal(t, "merged/fixed.txt", b["path"])
	assert.Equal(t, "just some text", e.read(t, "merged/fixed.txt"))
	require.Len(t, e.done, 1)

	_, err := h.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/upload/monolith", nil))
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindMethodNotAllowed, ae.Kind)
	assert.Equal(t, []string{http.MethodPost}, ae.Allow)
}

func TestMonolithNeedsIdentity(t *testing.T) {
	e := newEnv(t)
	e.deps.Identifier = identifier.Session{}
	h := e.handler(t, "monolith", Options{})

	r := multipartRequest(t, http.MethodPost, "/upload/monolith", nil, part{"file", "a.txt", []byte("a")})
	_, err := h.Handle(r.Context(), r)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	r = multipartRequest(t, http.MethodPost, "/upload/monolith", nil, part{"file", "a.txt", []byte("a")})
	ctx := identifier.WithSessionID(r.Context(), "s1")
	res, err := h.Handle(ctx, r.WithContext(ctx))
	require.NoError(t, err)
	assert.True(t, res.Stored)
}

func TestFileValidation(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "monolith", Options{})

	r := multipartRequest(t, http.MethodPost, "/", map[string]string{"x": "1"})
	_, err := h.Handle(r.Context(), r)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.EqualError(t, err, "File not found in request body")

	r = multipartRequest(t, http.MethodPost, "/", nil,
		part{"file", "a.txt", []byte("a")}, part{"file", "b.txt", []byte("b")})
	_, err = h.Handle(r.Context(), r)
	assert.Equal(t, apperr.KindUnprocessable, apperr.KindOf(err))
	assert.Equal(t, apperr.RuleSingleFile, apperr.RuleOf(err))

	e.deps.MaxChunkBytes = 4
	h = e.handler(t, "monolith", Options{})
	r = multipartRequest(t, http.MethodPost, "/", nil, part{"file", "a.txt", []byte("0123456789")})
	_, err = h.Handle(r.Context(), r)
	assert.Equal(t, apperr.KindPayloadTooLarge, apperr.KindOf(err))
}

func blueimpChunk(t *testing.T, field string, data []byte, start, total int) *http.Request {
	r := multipartRequest(t, http.MethodPost, "/upload/blueimp", nil, part{field, "hello.txt", data})
	r.Header.Set("Content-Range", "bytes "+strconv.Itoa(start)+"-"+strconv.Itoa(start+len(data)-1)+"/"+strconv.Itoa(total))
	return r
}

func TestBlueimp(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "blueimp", Options{})
	data := []byte("hello world!")
	resume := func() map[string]any {
		r := httptest.NewRequest(http.MethodGet, "/upload/blueimp?file=hello.txt&totalSize=12", nil)
		res := serve(t, h, r)
		assert.False(t, res.Stored)
		return body(t, res)
	}

	info := serve(t, h, httptest.NewRequest(http.MethodOptions, "/upload/blueimp", nil))
	assert.Equal(t, http.StatusOK, info.Status)
	assert.Equal(t, "no-cache", info.Header.Get("Pragma"))
	assert.Equal(t, []any{}, info.Body)

	assert.Nil(t, resume()["file"])

	res := serve(t, h, blueimpChunk(t, "file", data[:5], 0, 12))
	assert.EqualValues(t, 41, body(t, res)["done"])
	assert.Equal(t, map[string]any{"name": "hello.txt", "size": float64(5)}, resume()["file"])

	serve(t, h, blueimpChunk(t, "files[]", data[5:10], 5, 12))
	res = serve(t, h, blueimpChunk(t, "file", data[10:], 10, 12))
	b := body(t, res)
	assert.EqualValues(t, 100, b["done"])
	assert.Equal(t, true, b["finished"])
	assert.Equal(t, "merged/12_hello.txt.txt", b["path"])
	assert.Equal(t, "hello world!", e.read(t, "merged/12_hello.txt.txt"))
	require.Len(t, e.done, 1)

	// swept after the merge
	assert.Nil(t, resume()["file"])
}

func TestBlueimpPlainFileNameUnderNop(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "blueimp", Options{})
	send := func(data []byte, start int) map[string]any {
		r := multipartRequest(t, http.MethodPost, "/upload/blueimp", nil, part{"file", "my photo (1).txt", data})
		r.Header.Set("Content-Range", "bytes "+strconv.Itoa(start)+"-"+strconv.Itoa(start+len(data)-1)+"/8")
		return body(t, serve(t, h, r))
	}
	send([]byte("abcd"), 0)
	b := send([]byte("efgh"), 4)
	assert.Equal(t, "merged/8_my photo (1).txt.txt", b["path"])
	assert.Equal(t, "abcdefgh", e.read(t, "merged/8_my photo (1).txt.txt"))
}

func TestBlueimpRejects(t *testing.T) {
	h := newEnv(t).handler(t, "blueimp", Options{})

	_, err := h.Handle(context.Background(), httptest.NewRequest(http.MethodDelete, "/", nil))
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Len(t, ae.Allow, 6)

	r := multipartRequest(t, http.MethodPost, "/", nil, part{"file", "a.txt", []byte("a")})
	_, err = h.Handle(r.Context(), r)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Content-Range", apperr.FieldOf(err))

	_, err = h.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/?file=a.txt", nil))
	assert.Equal(t, "totalSize", apperr.FieldOf(err))
}

func dzFields(uuid string, index, count, chunkSize, total int) map[string]string {
	return map[string]string{
		"dzuuid":            uuid,
		"dzchunkindex":      strconv.Itoa(index),
		"dztotalchunkcount": strconv.Itoa(count),
		"dzchunksize":       strconv.Itoa(chunkSize),
		"dztotalfilesize":   strconv.Itoa(total),
		"dzchunkbyteoffset": strconv.Itoa(index * chunkSize),
	}
}

func TestDropzoneOutOfOrder(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "dropzone", Options{})
	data := []byte("abcdefghij")
	send := func(i int) map[string]any {
		end := min((i+1)*4, len(data))
		r := multipartRequest(t, http.MethodPost, "/upload/dropzone", dzFields("dz-1", i, 3, 4, 10),
			part{"file", "letters.txt", data[i*4 : end]})
		return body(t, serve(t, h, r))
	}

	assert.EqualValues(t, 33, send(2)["done"])
	assert.EqualValues(t, 66, send(0)["done"])
	b := send(1)
	assert.Equal(t, true, b["finished"])
	assert.Equal(t, "merged/dz-1.txt", b["path"])
	assert.Equal(t, "abcdefghij", e.read(t, "merged/dz-1.txt"))
	assert.Len(t, e.done, 1)
}

func TestDropzoneMonolithAndMissingField(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "dropzone", Options{})

	r := multipartRequest(t, http.MethodPost, "/", nil, part{"file", "a.txt", []byte("plain text body")})
	b := body(t, serve(t, h, r))
	assert.Equal(t, "merged/fixed.txt", b["path"])

	f := dzFields("dz-2", 0, 2, 4, 8)
	delete(f, "dzchunkbyteoffset")
	r = multipartRequest(t, http.MethodPost, "/", f, part{"file", "a.txt", []byte("abcd")})
	_, err := h.Handle(r.Context(), r)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "dzchunkbyteoffset", apperr.FieldOf(err))
}

func TestFineUploader(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "fine-uploader", Options{})
	fields := func(i int) map[string]string {
		return map[string]string{
			"qquuid":           "fu-1",
			"qqpartindex":      strconv.Itoa(i),
			"qqtotalparts":     "2",
			"qqchunksize":      "3",
			"qqtotalfilesize":  "6",
			"qqpartbyteoffset": strconv.Itoa(i * 3),
			"qqfilename":       "six.txt",
		}
	}

	b := body(t, serve(t, h, multipartRequest(t, http.MethodPost, "/", fields(0), part{"qqfile", "blob", []byte("abc")})))
	assert.Equal(t, true, b["success"])
	assert.EqualValues(t, 50, b["done"])

	b = body(t, serve(t, h, multipartRequest(t, http.MethodPost, "/", fields(1), part{"qqfile", "blob", []byte("def")})))
	assert.Equal(t, true, b["success"])
	assert.Equal(t, "merged/fu-1.txt", b["path"])
	assert.Equal(t, "abcdef", e.read(t, "merged/fu-1.txt"))
}

func resumableFields(prefix string, n int) url.Values {
	v := url.Values{}
	v.Set(prefix+"ChunkNumber", strconv.Itoa(n))
	v.Set(prefix+"TotalChunks", "2")
	v.Set(prefix+"ChunkSize", "5")
	v.Set(prefix+"TotalSize", "8")
	v.Set(prefix+"Identifier", "res-1")
	v.Set(prefix+"Filename", "notes.txt")
	v.Set(prefix+"RelativePath", "notes.txt")
	v.Set(prefix+"CurrentChunkSize", "5")
	return v
}

func flatten(v url.Values) map[string]string {
	out := map[string]string{}
	for k := range v {
		out[k] = v.Get(k)
	}
	return out
}

func TestResumableTestThenUpload(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "resumable-js", Options{})
	fields := func(n int) url.Values {
		v := resumableFields("resumable", n)
		v.Set("resumableType", "text/plain")
		return v
	}
	test := func(n int) Response {
		return serve(t, h, httptest.NewRequest(http.MethodGet, "/?"+fields(n).Encode(), nil))
	}

	assert.Equal(t, http.StatusNoContent, test(1).Status)

	b := body(t, serve(t, h, multipartRequest(t, http.MethodPost, "/", flatten(fields(1)), part{"file", "blob", []byte("12345")})))
	assert.EqualValues(t, 50, b["done"])

	res := test(1)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, []string{"OK"}, res.Body)
	assert.Equal(t, http.StatusNoContent, test(2).Status)

	b = body(t, serve(t, h, multipartRequest(t, http.MethodPost, "/", flatten(fields(2)), part{"file", "blob", []byte("678")})))
	assert.Equal(t, "merged/res-1.txt", b["path"])
	assert.Equal(t, "12345678", e.read(t, "merged/res-1.txt"))

	_, err := h.Handle(context.Background(), httptest.NewRequest(http.MethodPut, "/", nil))
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{http.MethodPost, http.MethodGet}, ae.Allow)

	// resumableType is part of the field set
	v := resumableFields("resumable", 1)
	_, err = h.Handle(context.Background(), httptest.NewRequest(http.MethodGet, "/?"+v.Encode(), nil))
	assert.Equal(t, "resumableType", apperr.FieldOf(err))
}

func TestResumableNamespace(t *testing.T) {
	h := newEnv(t).handler(t, "resumable-js", Options{ParameterNamespace: "x_"})
	v := resumableFields("x_resumable", 1)
	v.Set("x_resumableType", "text/plain")
	res := serve(t, h, httptest.NewRequest(http.MethodGet, "/?"+v.Encode(), nil))
	assert.Equal(t, http.StatusNoContent, res.Status)
}

func TestFlowAndSimpleUploaderNames(t *testing.T) {
	for _, tc := range []struct {
		name   string
		fields url.Values
	}{
		{"flow-js", resumableFields("flow", 1)},
		{"simple-uploader-js", func() url.Values {
			v := url.Values{}
			v.Set("chunkNumber", "1")
			v.Set("totalChunks", "1")
			v.Set("chunkSize", "8")
			v.Set("totalSize", "8")
			v.Set("identifier", "su-1")
			v.Set("filename", "notes.txt")
			v.Set("relativePath", "notes.txt")
			v.Set("currentChunkSize", "8")
			return v
		}()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			h := e.handler(t, tc.name, Options{})
			r := multipartRequest(t, http.MethodPost, "/", flatten(tc.fields), part{"file", "blob", []byte("abcde")})
			res := serve(t, h, r)
			assert.True(t, res.Stored)
		})
	}
}

func TestPlupload(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "plupload", Options{})
	send := func(i int, data string) map[string]any {
		f := map[string]string{"name": "pic.txt", "chunk": strconv.Itoa(i), "chunks": "2"}
		return body(t, serve(t, h, multipartRequest(t, http.MethodPost, "/", f, part{"file", "blob", []byte(data)})))
	}

	assert.EqualValues(t, 50, send(0, "left-")["done"])
	b := send(1, "right")
	assert.EqualValues(t, 100, b["done"])
	assert.Equal(t, "merged/2_pic.txt.txt", b["path"])
	assert.Equal(t, "left-right", e.read(t, "merged/2_pic.txt.txt"))

	r := multipartRequest(t, http.MethodPost, "/", map[string]string{"chunk": "0", "chunks": "2"}, part{"file", "blob", []byte("x")})
	_, err := h.Handle(r.Context(), r)
	assert.Equal(t, "name", apperr.FieldOf(err))
}

func TestNgFileUpload(t *testing.T) {
	e := newEnv(t)
	h := e.handler(t, "ng-file-upload", Options{})
	resume := func() map[string]any {
		return body(t, serve(t, h, httptest.NewRequest(http.MethodGet, "/?file=a.txt&totalSize=6", nil)))
	}
	send := func(n int, data string) map[string]any {
		f := map[string]string{
			"_chunkNumber":      strconv.Itoa(n),
			"_chunkSize":        "3",
			"_currentChunkSize": strconv.Itoa(len(data)),
			"_totalSize":        "6",
		}
		return body(t, serve(t, h, multipartRequest(t, http.MethodPost, "/", f, part{"file", "a.txt", []byte(data)})))
	}

	assert.Equal(t, map[string]any{"file": "a.txt", "size": float64(0)}, resume())
	assert.EqualValues(t, 50, send(0, "abc")["done"])
	assert.EqualValues(t, 3, resume()["size"])
	b := send(1, "def")
	assert.Equal(t, "merged/6_a.txt.txt", b["path"])
	assert.Equal(t, "abcdef", e.read(t, "merged/6_a.txt.txt"))

	b = body(t, serve(t, h, multipartRequest(t, http.MethodPost, "/", nil, part{"file", "whole.txt", []byte("a whole file")})))
	assert.Equal(t, "merged/fixed.txt", b["path"])
}
