package main

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/DanikLP1/chunk-upload-service/internal/client"
	"github.com/DanikLP1/chunk-upload-service/internal/config"
)

func newUploadCmd() *cobra.Command {
	var (
		url, chunkSize, apiKey string
		parallel, retries      int
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a local file in Content-Range chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := client.ParseSize(chunkSize)
			if err != nil {
				return fmt.Errorf("invalid --chunk-size: %w", err)
			}
			ctx, cancel := signalContext()
			defer cancel()

			u := client.New(client.Config{
				Endpoint:    url,
				ChunkSize:   size,
				Concurrency: parallel,
				RetryMax:    retries,
				APIKey:      apiKey,
				Logger:      newLogger(config.New(), os.Stderr),
			})
			res, err := u.UploadFile(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d chunks)\n", res.Path, units.HumanSize(float64(res.Size)), res.Chunks)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080/upload/blueimp", "blueimp upload endpoint")
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "8MiB", "chunk size")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "chunks in flight")
	cmd.Flags().IntVar(&retries, "retries", 4, "retries per chunk")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "value for the X-Api-Key header")
	return cmd
}
