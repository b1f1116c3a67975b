// internal/server/middleware_logging.go
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

const RequestIDHeader = "X-Request-Id"

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (s *Server) WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.Logger.Error("panic", "req_id", requestIDFrom(r), "path", r.URL.Path, "err", rec)
				writeError(w, r, apperr.Internal(errPanic, "panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) WithRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := ulid.Make().String()
		ctx := WithRequestID(r.Context(), reqID)

		l := s.Logger.With(
			slog.String("req_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
		)
		ctx = context.WithValue(ctx, ctxLoggerKey, l)

		ww := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()

		// полезно вернуть ID запроса клиенту
		ww.Header().Set(RequestIDHeader, reqID)

		next.ServeHTTP(ww, r.WithContext(ctx))

		l.Info("request",
			slog.Int("status", ww.status),
			slog.Duration("dur", time.Since(start)),
			slog.Int64("bytes", ww.written),
		)
	})
}
