package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
//
// These metrics track HTTP request performance and rate limiting on the
// upload server's API surface.

var (
	// HTTPRequestDuration tracks HTTP request processing time.
	// Labels: method (GET, POST, PUT, DELETE), path, status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by endpoint and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RateLimitedRequests counts chunk requests whose body reads were put
	// under a per-client rate limiter.
	// Labels: client_ip
	RateLimitedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"client_ip"},
	)
)

// RecordRateLimit records a rate-limited request for a client IP.
func RecordRateLimit(clientIP string) {
	RateLimitedRequests.WithLabelValues(clientIP).Inc()
}
