package protocol

import (
	"context"
	"net/http"
	"net/url"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

// zeroBased serves clients that number chunks from zero and name the session
// themselves (Dropzone, Fine Uploader). A request without any chunk field is
// a whole file.
type zeroBased struct {
	name  string
	d     Deps
	param string

	uuid     string
	offset   string
	fileName string
	fields   ranges.FieldNames
	// chunked lists the fields whose presence marks a chunked request.
	chunked []string
	// success adds the flag Fine Uploader looks for.
	success bool
}

func newDropzone(d Deps, o Options) Handler {
	fields := ranges.FieldNames{
		Index:          "dzchunkindex",
		NumberOfChunks: "dztotalchunkcount",
		ChunkSize:      "dzchunksize",
		TotalSize:      "dztotalfilesize",
	}
	return &zeroBased{
		name:    "dropzone",
		d:       d,
		param:   o.Param,
		uuid:    "dzuuid",
		offset:  "dzchunkbyteoffset",
		fields:  fields,
		chunked: []string{"dzuuid", fields.Index, fields.TotalSize, fields.ChunkSize, fields.NumberOfChunks, "dzchunkbyteoffset"},
	}
}

func newFineUploader(d Deps, o Options) Handler {
	param := o.Param
	if param == "file" {
		param = "qqfile"
	}
	fields := ranges.FieldNames{
		Index:          "qqpartindex",
		NumberOfChunks: "qqtotalparts",
		ChunkSize:      "qqchunksize",
		TotalSize:      "qqtotalfilesize",
	}
	return &zeroBased{
		name:     "fine-uploader",
		d:        d,
		param:    param,
		uuid:     "qquuid",
		offset:   "qqpartbyteoffset",
		fileName: "qqfilename",
		fields:   fields,
		// qquuid and qqtotalfilesize come with every request
		chunked: []string{fields.Index, fields.NumberOfChunks, fields.ChunkSize, "qqpartbyteoffset"},
		success: true,
	}
}

func (h *zeroBased) Name() string { return h.name }

func (h *zeroBased) Handle(ctx context.Context, r *http.Request) (Response, error) {
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

	form := r.PostForm
	if !ranges.Has(form, h.chunked...) {
		res, err := saveWhole(ctx, h.d, fh)
		if err != nil {
			return Response{}, err
		}
		return h.respond(res), nil
	}

	if err := ranges.Require(form, h.uuid, h.fields.Index, h.fields.TotalSize, h.fields.ChunkSize, h.fields.NumberOfChunks, h.offset); err != nil {
		return Response{}, err
	}
	rg, err := ranges.ParseZeroBased(form, h.fields)
	if err != nil {
		return Response{}, err
	}
	res, err := storeChunk(ctx, h.d, fh, form.Get(h.uuid), rg, upload.PolicyCount, h.clientName(form, fh.Filename))
	if err != nil {
		return Response{}, err
	}
	return h.respond(res), nil
}

func (h *zeroBased) clientName(form url.Values, fallback string) string {
	if h.fileName != "" {
		if n := form.Get(h.fileName); n != "" {
			return n
		}
	}
	return fallback
}

type fineUploaderResult struct {
	upload.Result
	Success bool `json:"success"`
}

func (h *zeroBased) respond(res upload.Result) Response {
	out := resultResponse(res)
	if h.success {
		out.Body = fineUploaderResult{Result: res, Success: true}
	}
	return out
}
