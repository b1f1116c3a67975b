package protocol

import (
	"context"
	"net/http"
	"net/url"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/chunkstore"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

// paramNames are the wire names of the resumable.js family. Empty names are
// not sent by that client.
type paramNames struct {
	ChunkNumber      string
	TotalChunks      string
	ChunkSize        string
	TotalSize        string
	Identifier       string
	FileName         string
	RelativePath     string
	CurrentChunkSize string
	Type             string
}

var (
	resumableNames = paramNames{
		ChunkNumber:      "resumableChunkNumber",
		TotalChunks:      "resumableTotalChunks",
		ChunkSize:        "resumableChunkSize",
		TotalSize:        "resumableTotalSize",
		Identifier:       "resumableIdentifier",
		FileName:         "resumableFilename",
		RelativePath:     "resumableRelativePath",
		CurrentChunkSize: "resumableCurrentChunkSize",
		Type:             "resumableType",
	}
	flowNames = paramNames{
		ChunkNumber:      "flowChunkNumber",
		TotalChunks:      "flowTotalChunks",
		ChunkSize:        "flowChunkSize",
		TotalSize:        "flowTotalSize",
		Identifier:       "flowIdentifier",
		FileName:         "flowFilename",
		RelativePath:     "flowRelativePath",
		CurrentChunkSize: "flowCurrentChunkSize",
	}
	simpleUploaderNames = paramNames{
		ChunkNumber:      "chunkNumber",
		TotalChunks:      "totalChunks",
		ChunkSize:        "chunkSize",
		TotalSize:        "totalSize",
		Identifier:       "identifier",
		FileName:         "filename",
		RelativePath:     "relativePath",
		CurrentChunkSize: "currentChunkSize",
	}
)

func (p paramNames) prefixed(ns string) paramNames {
	if ns == "" {
		return p
	}
	for _, f := range []*string{
		&p.ChunkNumber, &p.TotalChunks, &p.ChunkSize, &p.TotalSize, &p.Identifier,
		&p.FileName, &p.RelativePath, &p.CurrentChunkSize, &p.Type,
	} {
		if *f != "" {
			*f = ns + *f
		}
	}
	return p
}

func (p paramNames) all() []string {
	var out []string
	for _, n := range []string{
		p.ChunkNumber, p.TotalChunks, p.ChunkSize, p.TotalSize, p.Identifier,
		p.FileName, p.RelativePath, p.CurrentChunkSize, p.Type,
	} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (p paramNames) rangeFields() ranges.FieldNames {
	return ranges.FieldNames{
		Index:          p.ChunkNumber,
		NumberOfChunks: p.TotalChunks,
		ChunkSize:      p.ChunkSize,
		TotalSize:      p.TotalSize,
	}
}

// resumable serves resumable.js and its forks. A test request asks whether
// a chunk is already stored so the client can skip it.
type resumable struct {
	name         string
	d            Deps
	param        string
	testMethod   string
	uploadMethod string
	names        paramNames
}

func newResumableJS(d Deps, o Options) Handler {
	return newResumable("resumable-js", d, o, resumableNames.prefixed(o.ParameterNamespace))
}

func newFlowJS(d Deps, o Options) Handler {
	return newResumable("flow-js", d, o, flowNames)
}

func newSimpleUploaderJS(d Deps, o Options) Handler {
	return newResumable("simple-uploader-js", d, o, simpleUploaderNames)
}

func newResumable(name string, d Deps, o Options, names paramNames) *resumable {
	return &resumable{
		name:         name,
		d:            d,
		param:        o.Param,
		testMethod:   o.TestMethod,
		uploadMethod: o.UploadMethod,
		names:        names,
	}
}

func (h *resumable) Name() string { return h.name }

func (h *resumable) Handle(ctx context.Context, r *http.Request) (Response, error) {
	switch r.Method {
	case h.testMethod:
		return h.resume(ctx, r)
	case h.uploadMethod:
		return h.save(ctx, r)
	}
	return Response{}, apperr.MethodNotAllowed(h.uploadMethod, h.testMethod)
}

func (h *resumable) sessionKey(ctx context.Context, f url.Values) (string, error) {
	return h.d.Identifier.Generate(ctx, f.Get(h.names.Identifier))
}

func (h *resumable) resume(ctx context.Context, r *http.Request) (Response, error) {
	q := r.URL.Query()
	if err := ranges.Require(q, h.names.all()...); err != nil {
		return Response{}, err
	}
	rg, err := ranges.ParseOneBased(q, h.names.rangeFields())
	if err != nil {
		return Response{}, err
	}
	key, err := h.sessionKey(ctx, q)
	if err != nil {
		return Response{}, err
	}
	ok, err := h.d.Coordinator.Chunks().Exists(ctx, key, chunkstore.ChunkName(rg))
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{Status: http.StatusNoContent}, nil
	}
	return jsonResponse(http.StatusOK, []string{"OK"}), nil
}

func (h *resumable) save(ctx context.Context, r *http.Request) (Response, error) {
	if err := parseForm(r, h.d.MaxChunkBytes); err != nil {
		return Response{}, err
	}
	defer cleanup(r)

	fh, err := formFile(r, h.param)
	if err != nil {
		return Response{}, err
	}
	form := r.PostForm
	if err := ranges.Require(form, h.names.all()...); err != nil {
		return Response{}, err
	}
	rg, err := ranges.ParseOneBased(form, h.names.rangeFields())
	if err != nil {
		return Response{}, err
	}
	key, err := h.sessionKey(ctx, form)
	if err != nil {
		return Response{}, err
	}
	res, err := storeChunk(ctx, h.d, fh, key, rg, upload.PolicyCount, form.Get(h.names.FileName))
	if err != nil {
		return Response{}, err
	}
	return resultResponse(res), nil
}
