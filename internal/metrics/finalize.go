package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Finalize Metrics
//
// These metrics track the server-side finalize step: the single-winner
// transition from UPLOADING to PROCESSING, the streaming hash over the
// assembled blob, and the resulting hash comparison.

var (
	// FinalizeDuration tracks the time to hash and verify an assembled
	// upload, from the winning finalize call to a terminal state.
	FinalizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finalize_duration_seconds",
			Help:    "Finalize (hash + verify) duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)

	// FinalizesTotal counts finalize outcomes.
	// Labels: status (success, hash_mismatch, incomplete, error)
	FinalizesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finalizes_total",
			Help: "Total number of finalize attempts by outcome",
		},
		[]string{"status"},
	)

	// ChecksumVerifications counts the outcome of comparing the computed
	// hash against the client-declared hash.
	// Labels: result (match, mismatch)
	ChecksumVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checksum_verifications_total",
			Help: "Total checksum verifications by result",
		},
		[]string{"result"},
	)
)

// RecordFinalizeSuccess records a successful finalize and its duration.
func RecordFinalizeSuccess(durationSeconds float64) {
	FinalizeDuration.Observe(durationSeconds)
	FinalizesTotal.WithLabelValues("success").Inc()
	ChecksumVerifications.WithLabelValues("match").Inc()
}

// RecordFinalizeHashMismatch records a finalize that produced a hash not
// matching the client's declared hash.
func RecordFinalizeHashMismatch(durationSeconds float64) {
	FinalizeDuration.Observe(durationSeconds)
	FinalizesTotal.WithLabelValues("hash_mismatch").Inc()
	ChecksumVerifications.WithLabelValues("mismatch").Inc()
}

// RecordFinalizeIncomplete records a finalize attempt rejected because not
// all chunks had been received.
func RecordFinalizeIncomplete() {
	FinalizesTotal.WithLabelValues("incomplete").Inc()
}
