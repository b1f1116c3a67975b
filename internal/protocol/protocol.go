// Package protocol binds the wire formats of the common JavaScript upload
// libraries to the upload coordinator. Each binding reads its library's field
// names, builds a range and a session key, and answers in the shape the
// library expects.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

type Response struct {
	Status int
	Header http.Header
	// Body is JSON-encoded; nil writes no body.
	Body any
	// Stored is set when the request carried file bytes that were saved.
	Stored bool
}

func jsonResponse(status int, body any) Response {
	return Response{Status: status, Body: body}
}

type Handler interface {
	Name() string
	Handle(ctx context.Context, r *http.Request) (Response, error)
}

type Deps struct {
	Coordinator *upload.Coordinator
	Identifier  identifier.Identifier
	// MaxChunkBytes caps a single uploaded part; zero disables the cap.
	MaxChunkBytes int64
	// NewName yields the random part of monolith file names.
	NewName func() string
}

type Options struct {
	// Param is the multipart field holding the file.
	Param string
	// TestMethod and UploadMethod apply to the resumable family.
	TestMethod   string
	UploadMethod string
	// ParameterNamespace prefixes every resumable-js field name.
	ParameterNamespace string
}

type factory func(Deps, Options) Handler

var registry = map[string]factory{
	"monolith":           newMonolith,
	"blueimp":            newBlueimp,
	"dropzone":           newDropzone,
	"fine-uploader":      newFineUploader,
	"resumable-js":       newResumableJS,
	"flow-js":            newFlowJS,
	"simple-uploader-js": newSimpleUploaderJS,
	"plupload":           newPlupload,
	"ng-file-upload":     newNgFileUpload,
}

var ErrUnknownProtocol = errors.New("unknown protocol")

// Names lists the registered bindings in lexical order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func New(name string, d Deps, o Options) (Handler, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	if d.Coordinator == nil {
		return nil, errors.New("protocol: coordinator is required")
	}
	if d.Identifier == nil {
		d.Identifier = identifier.Session{}
	}
	if d.NewName == nil {
		d.NewName = uuid.NewString
	}
	if o.Param == "" {
		o.Param = "file"
	}
	if o.TestMethod == "" {
		o.TestMethod = http.MethodGet
	}
	if o.UploadMethod == "" {
		o.UploadMethod = http.MethodPost
	}
	return f(d, o), nil
}

// NewAll builds every registered binding with the same deps and options.
func NewAll(d Deps, o Options) (map[string]Handler, error) {
	out := make(map[string]Handler, len(registry))
	for _, n := range Names() {
		h, err := New(n, d, o)
		if err != nil {
			return nil, err
		}
		out[n] = h
	}
	return out, nil
}

func methodIn(r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	return false
}

func resultResponse(res upload.Result) Response {
	return Response{Status: http.StatusOK, Body: res, Stored: true}
}
