package protocol

import (
	"context"
	"net/http"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

// blueimp speaks jQuery-File-Upload: the byte range travels in the
// Content-Range header and a GET tells the client where to resume.
type blueimp struct {
	d     Deps
	param string
}

func newBlueimp(d Deps, o Options) Handler { return &blueimp{d: d, param: o.Param} }

func (h *blueimp) Name() string { return "blueimp" }

type blueimpFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type blueimpResume struct {
	File *blueimpFile `json:"file"`
}

func (h *blueimp) Handle(ctx context.Context, r *http.Request) (Response, error) {
	switch {
	case methodIn(r, http.MethodHead, http.MethodOptions):
		return h.info(), nil
	case methodIn(r, http.MethodGet):
		return h.resume(ctx, r)
	case methodIn(r, http.MethodPost, http.MethodPut, http.MethodPatch):
		return h.save(ctx, r)
	}
	return Response{}, apperr.MethodNotAllowed(
		http.MethodHead, http.MethodOptions, http.MethodGet,
		http.MethodPost, http.MethodPut, http.MethodPatch,
	)
}

func (h *blueimp) info() Response {
	hdr := http.Header{}
	hdr.Set("Pragma", "no-cache")
	hdr.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	hdr.Set("Content-Disposition", `inline; filename="files.json"`)
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set("Vary", "Accept")
	return Response{Status: http.StatusOK, Header: hdr, Body: []any{}}
}

func (h *blueimp) resume(ctx context.Context, r *http.Request) (Response, error) {
	q := r.URL.Query()
	if err := ranges.Require(q, h.param, "totalSize"); err != nil {
		return Response{}, err
	}
	total, err := ranges.Int(q, "totalSize")
	if err != nil {
		return Response{}, err
	}
	name := q.Get(h.param)
	key, err := identifier.FileIdentifier(ctx, h.d.Identifier, total, name)
	if err != nil {
		return Response{}, err
	}
	last, err := h.d.Coordinator.Chunks().LastEnd(ctx, key)
	if err != nil {
		return Response{}, err
	}
	if last < 0 {
		return jsonResponse(http.StatusOK, blueimpResume{}), nil
	}
	return jsonResponse(http.StatusOK, blueimpResume{File: &blueimpFile{Name: name, Size: last + 1}}), nil
}

func (h *blueimp) save(ctx context.Context, r *http.Request) (Response, error) {
	if err := parseForm(r, h.d.MaxChunkBytes); err != nil {
		return Response{}, err
	}
	defer cleanup(r)

	fh, err := formFile(r, h.param, h.param+"s[]", h.param+"s")
	if err != nil {
		return Response{}, err
	}
	rg, err := ranges.ParseContentRange(r.Header.Get(ranges.ContentRangeHeader))
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
