// Package metrics provides Prometheus metrics for monitoring the upload
// service.
//
// The metrics package is organized into logical modules:
//
//   - upload.go: server-side whole-upload duration, size, and throughput metrics
//   - chunks.go: per-chunk upload metrics for the parallel upload engine
//   - finalize.go: server-side finalize/assembly and hashing metrics
//   - store.go: durable store operation latency and error metrics
//   - session.go: upload lifecycle, retries, and error tracking
//   - http.go: HTTP request performance and rate limiting metrics
//
// Usage Examples:
//
// Recording an upload:
//
//	start := time.Now()
//	metrics.ActiveUploads.Inc()
//	defer metrics.ActiveUploads.Dec()
//	// ... perform upload ...
//	metrics.UploadDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())
//	metrics.UploadsTotal.WithLabelValues("pdf", "success").Inc()
//
// Recording a finalize:
//
//	metrics.FinalizeDuration.Observe(time.Since(start).Seconds())
//	metrics.FinalizesTotal.WithLabelValues("success").Inc()
//
// All metrics are automatically registered with Prometheus and exposed
// via the /metrics endpoint when the server starts.
package metrics
