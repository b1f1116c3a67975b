package protocol

import (
	"context"
	"net/http"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

// plupload counts chunks instead of bytes. The part itself is usually named
// "blob", so the real file name comes from the name field.
type plupload struct {
	d Deps
}

func newPlupload(d Deps, _ Options) Handler { return &plupload{d: d} }

func (h *plupload) Name() string { return "plupload" }

func (h *plupload) Handle(ctx context.Context, r *http.Request) (Response, error) {
	if r.Method != http.MethodPost {
		return Response{}, apperr.MethodNotAllowed(http.MethodPost)
	}
	if err := parseForm(r, h.d.MaxChunkBytes); err != nil {
		return Response{}, err
	}
	defer cleanup(r)

	fh, err := formFile(r, "file")
	if err != nil {
		return Response{}, err
	}
	form := r.PostForm
	if err := ranges.Require(form, "name"); err != nil {
		return Response{}, err
	}
	rg, err := ranges.ParseCounter(form, ranges.DefaultCounterNames)
	if err != nil {
		return Response{}, err
	}
	name := form.Get("name")
	key, err := identifier.FileIdentifier(ctx, h.d.Identifier, rg.Total(), name)
	if err != nil {
		return Response{}, err
	}
	res, err := storeChunk(ctx, h.d, fh, key, rg, upload.PolicyLast, name)
	if err != nil {
		return Response{}, err
	}
	return resultResponse(res), nil
}
