// internal/server/gc.go
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanikLP1/chunk-upload-service/internal/metrics"
)

// SweepOnce removes chunk namespaces untouched for maxAge: sessions the
// client gave up on, or strays recreated by a retried last chunk.
func (s *Server) SweepOnce(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := s.coord.Sweep(ctx, maxAge, time.Now())
	metrics.GCNamespacesDeleted.Add(float64(n))
	return n, err
}

func (s *Server) StartGC(ctx context.Context, every, maxAge time.Duration) {
	log := s.Logger.With(slog.String("comp", "gc"))

	go func() {
		log.Info("gc.started", "every", every.String(), "max_age", maxAge.String())
		t := time.NewTicker(every)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("gc.stopped", "reason", "context canceled")
				return
			case <-t.C:
				start := time.Now()
				n, err := s.SweepOnce(ctx, maxAge)
				if err != nil {
					// частичный проход не страшен, добьём в следующий раз
					log.Error("gc.sweep_fail", "deleted", n, "err", err)
					continue
				}
				if n == 0 {
					log.Debug("gc.nothing_to_do")
					continue
				}
				log.Info("gc.pass_end",
					"deleted_namespaces", n,
					"dur_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}()
}
