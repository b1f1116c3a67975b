package protocol

import (
	"context"
	"net/http"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

// monolith accepts whole files in one POST.
type monolith struct {
	d     Deps
	param string
}

func newMonolith(d Deps, o Options) Handler { return &monolith{d: d, param: o.Param} }

func (h *monolith) Name() string { return "monolith" }

func (h *monolith) Handle(ctx context.Context, r *http.Request) (Response, error) {
	if r.Method != http.MethodPost {
		return Response{}, apperr.MethodNotAllowed(http.MethodPost)
	}
	if err := parseForm(r, h.d.MaxChunkBytes); err != nil {
		return Response{}, err
	}
	defer cleanup(r)

	fh, err := formFile(r, h.param)
	if err != nil {
		return Response{}, err
	}
	res, err := saveWhole(ctx, h.d, fh)
	if err != nil {
		return Response{}, err
	}
	return resultResponse(res), nil
}
