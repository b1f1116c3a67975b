package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DanikLP1/chunk-upload-service/internal/config"
	"github.com/DanikLP1/chunk-upload-service/internal/storage"
	"github.com/DanikLP1/chunk-upload-service/internal/upload"
)

func newSweepCmd() *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete abandoned chunk namespaces once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if !cmd.Flags().Changed("max-age") {
				maxAge = cfg.GCMaxAge
			}
			ctx, cancel := signalContext()
			defer cancel()

			drv, err := openDriver(ctx, cfg)
			if err != nil {
				return err
			}
			coord := upload.New(storage.NewWithDriver(drv), cfg.Storage(), nil,
				upload.WithLogger(newLogger(cfg, os.Stderr)))
			n, err := coord.Sweep(ctx, maxAge, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d namespaces\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "age after which a namespace is abandoned (default GC_MAX_AGE)")
	return cmd
}
