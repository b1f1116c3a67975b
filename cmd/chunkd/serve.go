package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DanikLP1/chunk-upload-service/internal/config"
	"github.com/DanikLP1/chunk-upload-service/internal/db"
	"github.com/DanikLP1/chunk-upload-service/internal/protocol"
	"github.com/DanikLP1/chunk-upload-service/internal/server"
)

func serverOptions(cfg config.Config) server.Options {
	return server.Options{
		Upload: cfg.Storage(),
		Protocol: protocol.Options{
			Param:              cfg.Param,
			TestMethod:         cfg.ResumableTestMethod,
			UploadMethod:       cfg.ResumableUpload,
			ParameterNamespace: cfg.ResumableNamespace,
		},
		Identifier:     cfg.Identifier,
		SessionCookie:  cfg.SessionCookie,
		AllowAnonymous: cfg.AllowAnonymous,
		MaxChunkBytes:  cfg.MaxChunkBytes,
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if addr != "" {
				cfg.Addr = addr
			}
			logger := newLogger(cfg, os.Stdout)

			ctx, cancel := signalContext()
			defer cancel()

			database, err := db.OpenSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			drv, err := openDriver(ctx, cfg)
			if err != nil {
				return err
			}
			srv, err := server.New(database, drv, logger, serverOptions(cfg))
			if err != nil {
				return err
			}
			if cfg.GCEvery > 0 {
				srv.StartGC(ctx, cfg.GCEvery, cfg.GCMaxAge)
			}

			hs := &http.Server{
				Addr:              cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				logger.Info("listening", slog.String("addr", cfg.Addr), slog.String("disk", drv.Name()))
				errc <- hs.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
			defer stop()
			return hs.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	return cmd
}
