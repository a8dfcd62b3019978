package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chunk Upload Metrics
//
// These metrics track per-chunk PUT performance on both ends of the
// bounded-concurrency upload scheduler. Use them to tune chunk size and
// worker count.

var (
	// ChunkUploadDuration tracks the time to upload individual chunks.
	ChunkUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chunk_upload_duration_seconds",
			Help:    "Individual chunk upload duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)

	// ChunkUploadsTotal counts chunk upload outcomes.
	// Labels: status (success, retry, error)
	ChunkUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunk_uploads_total",
			Help: "Total number of chunk uploads",
		},
		[]string{"status"},
	)

	// ParallelUploadWorkers tracks the number of active chunk upload workers.
	ParallelUploadWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parallel_upload_workers",
			Help: "Number of active parallel upload workers",
		},
	)
)

// RecordChunkSuccess records a successful chunk upload.
func RecordChunkSuccess() {
	ChunkUploadsTotal.WithLabelValues("success").Inc()
}

// RecordChunkRetry records a chunk upload retry.
func RecordChunkRetry() {
	ChunkUploadsTotal.WithLabelValues("retry").Inc()
}

// RecordChunkError records a chunk upload that exhausted its retries.
func RecordChunkError() {
	ChunkUploadsTotal.WithLabelValues("error").Inc()
}
