package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
	"github.com/DanikLP1/chunk-upload-service/internal/db"
	"github.com/DanikLP1/chunk-upload-service/internal/metrics"
	"github.com/DanikLP1/chunk-upload-service/internal/protocol"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("protocol")
	log := loggerFrom(r).With(slog.String("protocol", name))

	h, ok := s.handlers[name]
	if !ok {
		writeError(w, r, apperr.NotFound("unknown upload protocol %q", name))
		return
	}

	ctx := WithProtocol(r.Context(), name)
	res, err := h.Handle(ctx, r.WithContext(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Stored {
		metrics.ChunksStored.WithLabelValues(name).Inc()
		log.Debug("chunk.stored", "status", res.Status)
	}
	writeResponse(w, res)
}

func writeResponse(w http.ResponseWriter, res protocol.Response) {
	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if res.Body == nil {
		w.WriteHeader(res.Status)
		return
	}
	writeJSON(w, res.Status, res.Body)
}

// notify records a finished upload in the ledger. It runs once per
// published file; RecordUpload ignores repeats anyway.
func (s *Server) notify(ctx context.Context, c upload.Completed) {
	log := loggerFromCtx(ctx)
	metrics.UploadsCompleted.Inc()

	u := &db.Upload{
		Path:       c.Path,
		Disk:       c.Disk,
		SessionKey: c.SessionKey,
		Size:       c.Size,
		Protocol:   ProtocolFrom(ctx),
		OwnerID:    ownerFrom(ctx),
	}
	created, err := s.db.RecordUpload(ctx, u)
	if err != nil {
		log.Error("upload.record_fail", "path", c.Path, "err", err)
		return
	}
	log.Info("upload.completed", "path", c.Path, "size", c.Size, "disk", c.Disk, "recorded", created)
}
