package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload Metrics
//
// These metrics track whole-file uploads as observed by the server, from
// the init request through finalize. Use them to monitor upload
// performance, success rates, and identify bottlenecks in the pipeline.

var (
	// UploadDuration tracks the time from init to a terminal state
	// (COMPLETED or FAILED) for an upload.
	// Labels: file_ext
	UploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upload_duration_seconds",
			Help:    "Upload duration in seconds, from init to terminal state",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~51s
		},
		[]string{"file_ext"},
	)

	// UploadSize tracks the declared total size of uploaded files in bytes.
	// Labels: file_ext
	UploadSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upload_size_bytes",
			Help:    "Upload size in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 20), // 1KB to 512MB
		},
		[]string{"file_ext"},
	)

	// UploadThroughput tracks upload speed in Mbps, measured across all
	// chunks of an upload.
	// Labels: file_ext
	UploadThroughput = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upload_throughput_mbps",
			Help:    "Upload throughput in Mbps",
			Buckets: prometheus.ExponentialBuckets(1, 2, 15), // 1 Mbps to ~16Gbps
		},
		[]string{"file_ext"},
	)

	// UploadsTotal counts uploads by terminal outcome.
	// Labels: file_ext, status (success, error)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Total number of uploads by terminal outcome",
		},
		[]string{"file_ext", "status"},
	)

	// ActiveUploads tracks the number of uploads currently in the
	// UPLOADING or PROCESSING state.
	ActiveUploads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_uploads",
			Help: "Number of active uploads",
		},
	)
)
