package protocol

import (
	"bufio"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
	"github.com/DanikLP1/chunk-upload-service/internal/ranges"
	"github.com/DanikLP1/chunk-upload-service/internal/sniff"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

const (
	// parts above this are spooled to temp files by mime/multipart
	memoryLimit = 8 << 20
	// room for the form fields around the file part
	formOverhead = 1 << 20
)

// parseForm reads the request form, multipart or not. The body is capped at
// maxBytes plus some room for the other fields.
func parseForm(r *http.Request, maxBytes int64) error {
	if maxBytes > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+formOverhead)
	}
	err := r.ParseMultipartForm(memoryLimit)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return apperr.TooLarge("file", "request body exceeds %d bytes", mbe.Limit)
	}
	return apperr.Validation("file", apperr.RuleMalformed, "malformed request body: %v", err)
}

func cleanup(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// formFile returns the single file sent under names[0], or the first file of
// a fallback field.
func formFile(r *http.Request, names ...string) (*multipart.FileHeader, error) {
	if r.MultipartForm != nil {
		for i, n := range names {
			fhs := r.MultipartForm.File[n]
			if len(fhs) == 0 {
				continue
			}
			if len(fhs) > 1 && i == 0 {
				return nil, apperr.Unprocessable(n, apperr.RuleSingleFile, "File parameter cannot be an array")
			}
			return fhs[0], nil
		}
	}
	return nil, apperr.Validation(names[0], apperr.RuleRequired, "File not found in request body")
}

func checkSize(fh *multipart.FileHeader, maxBytes int64) error {
	if maxBytes > 0 && fh.Size > maxBytes {
		return apperr.TooLarge("file", "chunk exceeds %d bytes", maxBytes)
	}
	return nil
}

// storeChunk feeds one uploaded part to the coordinator. filename supplies
// the extension of the merged file.
func storeChunk(ctx context.Context, d Deps, fh *multipart.FileHeader, key string, rg ranges.Range, policy upload.Policy, filename string) (upload.Result, error) {
	if err := checkSize(fh, d.MaxChunkBytes); err != nil {
		return upload.Result{}, err
	}
	f, err := fh.Open()
	if err != nil {
		return upload.Result{}, apperr.Internal(err, "open uploaded part")
	}
	defer f.Close()
	return d.Coordinator.HandleChunk(ctx, upload.Chunk{
		SessionKey: key,
		Range:      rg,
		Policy:     policy,
		Extension:  path.Ext(filename),
		Body:       f,
	})
}

// saveWhole stores a file sent in a single request under a random name whose
// extension is sniffed from its first bytes.
func saveWhole(ctx context.Context, d Deps, fh *multipart.FileHeader) (upload.Result, error) {
	if err := checkSize(fh, d.MaxChunkBytes); err != nil {
		return upload.Result{}, err
	}
	f, err := fh.Open()
	if err != nil {
		return upload.Result{}, apperr.Internal(err, "open uploaded file")
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, sniff.HeadSize)
	head, _ := br.Peek(sniff.HeadSize)
	name, err := identifier.UploadedFileIdentifierName(ctx, d.Identifier, d.NewName(), head)
	if err != nil {
		return upload.Result{}, err
	}
	return d.Coordinator.StoreWhole(ctx, name, br)
}
