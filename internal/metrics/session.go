package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session Metrics
//
// These metrics track upload lifecycle and reliability from the client's
// perspective: how long uploads take end to end, how often chunks need
// to retry, and what kinds of errors occur.

var (
	// SessionDuration tracks the total time from upload start to
	// completion, including retries and pauses.
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_duration_seconds",
			Help:    "Total upload session duration from start to completion",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34 minutes
		},
	)

	// RetryAttemptsTotal counts retry attempts during an upload.
	// Labels: operation (chunk, finalize), reason (network, timeout, server_error)
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total retry attempts by operation and reason",
		},
		[]string{"operation", "reason"},
	)

	// ErrorsTotal counts errors by type and operation.
	// Labels: type (network, validation, permission, disk, hash_mismatch), operation (chunk, finalize)
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total errors by type and operation",
		},
		[]string{"type", "operation"},
	)
)

// RecordUploadSession records the duration of a completed upload session.
func RecordUploadSession(durationSeconds float64) {
	SessionDuration.Observe(durationSeconds)
}

// RecordRetry records a retry attempt.
func RecordRetry(operation, reason string) {
	RetryAttemptsTotal.WithLabelValues(operation, reason).Inc()
}

// RecordError records an error by type and operation.
func RecordError(errorType, operation string) {
	ErrorsTotal.WithLabelValues(errorType, operation).Inc()
}
