package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store Metrics
//
// These metrics track the durable store (memory or badger backend) that
// holds upload and chunk bookkeeping. Use them to compare backend latency
// and catch a growing backlog of stale uploads.

var (
	// StoreOperationDuration tracks the latency of individual store calls.
	// Labels: operation (init_upload, put_chunk, get_upload, try_begin_finalize,
	// complete_upload, fail_upload, list_stale, delete_upload), backend (memory, badger)
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Durable store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
		},
		[]string{"operation", "backend"},
	)

	// StoreErrorsTotal counts store operation failures.
	// Labels: operation, backend
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total durable store operation errors",
		},
		[]string{"operation", "backend"},
	)

	// StaleUploadsCleaned counts uploads removed by the stale-upload sweep.
	StaleUploadsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stale_uploads_cleaned_total",
			Help: "Total number of stale uploads removed by the cleanup sweep",
		},
	)
)

// RecordStoreOperation records the duration and outcome of a store call.
func RecordStoreOperation(operation, backend string, durationSeconds float64, err error) {
	StoreOperationDuration.WithLabelValues(operation, backend).Observe(durationSeconds)
	if err != nil {
		StoreErrorsTotal.WithLabelValues(operation, backend).Inc()
	}
}
