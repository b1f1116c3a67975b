package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ChunksStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chunkd",
		Name:      "chunks_stored_total",
		Help:      "Total number of upload requests whose bytes were stored",
	}, []string{"protocol"})

	ChunkBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chunkd",
		Name:      "chunk_bytes_total",
		Help:      "Total number of chunk bytes written to storage",
	})

	Merges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chunkd",
		Name:      "merges_total",
		Help:      "Total merge attempts by result (merged, already_merged, failed)",
	}, []string{"result"})

	MergeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chunkd",
		Name:      "merge_duration_seconds",
		Help:      "Time spent merging the chunks of one session",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
	})

	UploadsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chunkd",
		Name:      "uploads_completed_total",
		Help:      "Total number of uploads published as a final file",
	})

	GCNamespacesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chunkd",
		Subsystem: "gc",
		Name:      "namespaces_deleted_total",
		Help:      "Total number of stale chunk namespaces removed",
	})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ChunksStored)
		prometheus.MustRegister(ChunkBytes)
		prometheus.MustRegister(Merges)
		prometheus.MustRegister(MergeDuration)
		prometheus.MustRegister(UploadsCompleted)
		prometheus.MustRegister(GCNamespacesDeleted)

		// vectors without children are not exported
		for _, result := range []string{"merged", "already_merged", "failed"} {
			Merges.WithLabelValues(result)
		}
	})
}

func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
