package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/db"
)

type listUploadsResponse struct {
	Uploads []db.Upload `json:"uploads"`
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, apperr.Validation("limit", apperr.RulePositive, "`limit` must be a positive integer"))
			return
		}
		limit = min(n, 1000)
	}

	list, err := s.db.ListUploads(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		writeError(w, r, apperr.Internal(err, "list uploads"))
		return
	}
	if list == nil {
		list = []db.Upload{}
	}
	writeJSON(w, http.StatusOK, listUploadsResponse{Uploads: list})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, apperr.Validation("id", apperr.RuleInteger, "`id` must be an integer"))
		return
	}
	u, err := s.db.FindUpload(r.Context(), uint(id), ownerFrom(r.Context()))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, r, apperr.NotFound("upload %d not found", id))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Internal(err, "find upload"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}
