package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanikLP1/chunk-upload-service/internal/db"
	"github.com/DanikLP1/chunk-upload-service/internal/identifier"
	"github.com/DanikLP1/chunk-upload-service/internal/metrics"
	"github.com/DanikLP1/chunk-upload-service/internal/protocol"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

type Options struct {
	Upload   upload.Config
	Protocol protocol.Options
	// Identifier is "session", "auth" or "nop".
	Identifier     string
	SessionCookie  string
	AllowAnonymous bool
	MaxChunkBytes  int64
}

type Server struct {
	db       *db.DB
	storage  *storage.Storage
	coord    *upload.Coordinator
	handlers map[string]protocol.Handler
	opts     Options
	Logger   *slog.Logger
}

func New(database *db.DB, d storage.Driver, logger *slog.Logger, opts Options) (*Server, error) {
	if database == nil {
		return nil, errors.New("server: database is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SessionCookie == "" {
		opts.SessionCookie = "chunkd_session"
	}

	s := &Server{
		db:      database,
		storage: storage.NewWithDriver(d),
		opts:    opts,
		Logger:  logger,
	}
	metrics.Register()
	s.coord = upload.New(s.storage, opts.Upload, s.notify,
		upload.WithLogger(logger.With(slog.String("comp", "upload"))),
		upload.WithMergeHook(func(result string, d time.Duration) {
			metrics.Merges.WithLabelValues(result).Inc()
			metrics.MergeDuration.Observe(d.Seconds())
		}),
		upload.WithStoreHook(func(n int64) { metrics.ChunkBytes.Add(float64(n)) }),
	)

	id, err := identifier.New(opts.Identifier)
	if err != nil {
		return nil, err
	}
	if _, ok := id.(identifier.Auth); ok && opts.AllowAnonymous {
		id = identifier.Auth{Source: anonymousAuth}
	}
	s.handlers, err = protocol.NewAll(protocol.Deps{
		Coordinator:   s.coord,
		Identifier:    id,
		MaxChunkBytes: opts.MaxChunkBytes,
	}, opts.Protocol)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Coordinator() *upload.Coordinator { return s.coord }

// Router возвращает http.Handler без middleware
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Health/Ready (полезно для k8s)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			loggerFrom(r).Warn("readyz.db_fail", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("/upload/{protocol}", s.handleUpload)
	mux.HandleFunc("GET /uploads", s.handleListUploads)
	mux.HandleFunc("GET /uploads/{id}", s.handleGetUpload)

	return mux
}

// Handler is the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	return WrapWriteCheck(s.WithRecover(s.WithRequestLogger(s.IdentityMiddleware(s.Router()))))
}
