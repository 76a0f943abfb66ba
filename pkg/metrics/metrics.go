package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pipeline holds the Prometheus collectors for an ingest run.
type Pipeline struct {
	DocumentsStored prometheus.Counter
	ChunksStored    prometheus.Counter
	EmbedDuration   prometheus.Histogram
	UpsertDuration  prometheus.Histogram
	CursorPosition  prometheus.Gauge
	UpsertRetries   prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// NewPipeline registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		DocumentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "savora",
			Name:      "documents_stored_total",
			Help:      "Documents durably stored this run",
		}),

		ChunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "savora",
			Name:      "chunks_stored_total",
			Help:      "Chunks durably stored this run",
		}),

		EmbedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "savora",
			Name:      "embed_duration_seconds",
			Help:      "Chunk embedding duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		UpsertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "savora",
			Name:      "upsert_duration_seconds",
			Help:      "Chunk upsert duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		CursorPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "savora",
			Name:      "cursor_position",
			Help:      "Last durably stored document index",
		}),

		UpsertRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "savora",
			Name:      "upsert_retries_total",
			Help:      "Upsert attempts beyond the first",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "savora",
			Name:      "embedding_cache_hits_total",
			Help:      "Embedding cache hits",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "savora",
			Name:      "embedding_cache_misses_total",
			Help:      "Embedding cache misses",
		}),
	}

	reg.MustRegister(
		m.DocumentsStored, m.ChunksStored,
		m.EmbedDuration, m.UpsertDuration,
		m.CursorPosition, m.UpsertRetries,
		m.CacheHits, m.CacheMisses,
	)

	return m
}

// Handler returns the HTTP handler serving /metrics and /health.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve exposes the registry on the given port for Prometheus scrape.
func Serve(reg *prometheus.Registry, port int, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listener started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	return srv
}
