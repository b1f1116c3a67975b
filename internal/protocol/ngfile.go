package protocol

import (
	"context"
	"net/http"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

// ngFileUpload serves ng-file-upload. A POST without form fields is a whole
// file; a GET reports how many bytes the server already holds.
type ngFileUpload struct {
	d Deps
}

func newNgFileUpload(d Deps, _ Options) Handler { return &ngFileUpload{d: d} }

func (h *ngFileUpload) Name() string { return "ng-file-upload" }

type ngFileResume struct {
	File string `json:"file"`
	Size int64  `json:"size"`
}

func (h *ngFileUpload) Handle(ctx context.Context, r *http.Request) (Response, error) {
	switch r.Method {
	case http.MethodGet:
		return h.resume(ctx, r)
	case http.MethodPost:
		return h.save(ctx, r)
	}
	return Response{}, apperr.MethodNotAllowed(http.MethodGet, http.MethodPost)
}

func (h *ngFileUpload) resume(ctx context.Context, r *http.Request) (Response, error) {
	q := r.URL.Query()
	if err := ranges.Require(q, "file", "totalSize"); err != nil {
		return Response{}, err
	}
	total, err := ranges.Int(q, "totalSize")
	if err != nil {
		return Response{}, err
	}
	name := q.Get("file")
	key, err := identifier.FileIdentifier(ctx, h.d.Identifier, total, name)
	if err != nil {
		return Response{}, err
	}
	last, err := h.d.Coordinator.Chunks().LastEnd(ctx, key)
	if err != nil {
		return Response{}, err
	}
	return jsonResponse(http.StatusOK, ngFileResume{File: name, Size: last + 1}), nil
}

func (h *ngFileUpload) save(ctx context.Context, r *http.Request) (Response, error) {
	if err := parseForm(r, h.d.MaxChunkBytes); err != nil {
		return Response{}, err
	}
	defer cleanup(r)

	fh, err := formFile(r, "file")
	if err != nil {
		return Response{}, err
	}
	form := r.PostForm
	if len(form) == 0 {
		res, err := saveWhole(ctx, h.d, fh)
		if err != nil {
			return Response{}, err
		}
		return resultResponse(res), nil
	}

	n := ranges.DefaultCurrentSizeNames
	if err := ranges.Require(form, n.Number, n.ChunkSize, n.TotalSize, n.CurrentSize); err != nil {
		return Response{}, err
	}
	rg, err := ranges.ParseCurrentSize(form, n)
	if err != nil {
		return Response{}, err
	}
	key, err := identifier.FileIdentifier(ctx, h.d.Identifier, rg.Total(), fh.Filename)
	if err != nil {
		return Response{}, err
	}
	res, err := storeChunk(ctx, h.d, fh, key, rg, upload.PolicyLast, fh.Filename)
	if err != nil {
		return Response{}, err
	}
	return resultResponse(res), nil
}
