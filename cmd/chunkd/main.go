package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DanikLP1/chunk-upload-service/internal/config"
	"github.com/DanikLP1/chunk-upload-service/internal/logging"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
	"github.com/DanikLP1/chunk-upload-service/internal/storage/fsdriver"
	"github.com/DanikLP1/chunk-upload-service/internal/storage/memdriver"
	"github.com/DanikLP1/chunk-upload-service/internal/storage/s3driver"
)

func main() {
	if err := newRoot().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "chunkd",
		Short:         "chunked upload receiver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newUploadCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newUsersCmd())
	return root
}

// newLogger пишет в stderr, чтобы не мешать выводу команд; serve пишет в stdout.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.LogLevel,
		JSON:   cfg.LogJSON,
		Writer: w,
	})
}

// openDriver выбирает бэкенд по DISK.
func openDriver(ctx context.Context, cfg config.Config) (storage.Driver, error) {
	switch cfg.Disk {
	case "", "local":
		return fsdriver.New(cfg.DataDir), nil
	case "memory":
		return memdriver.New(), nil
	case "s3":
		return s3driver.New(ctx, cfg.S3())
	}
	return nil, fmt.Errorf("unknown disk %q", cfg.Disk)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
