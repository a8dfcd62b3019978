package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		UploadDuration,
		UploadSize,
		UploadThroughput,
		UploadsTotal,
		ActiveUploads,
		ChunkUploadDuration,
		ChunkUploadsTotal,
		ParallelUploadWorkers,
		FinalizeDuration,
		FinalizesTotal,
		ChecksumVerifications,
		StoreOperationDuration,
		StoreErrorsTotal,
		StaleUploadsCleaned,
		SessionDuration,
		RetryAttemptsTotal,
		ErrorsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
		RateLimitedRequests,
	}

	for _, c := range collectors {
		if c == nil {
			t.Error("Found nil metric")
		}
	}
}

func TestUploadMetrics(t *testing.T) {
	UploadDuration.WithLabelValues(".txt").Observe(1.5)
	UploadSize.WithLabelValues(".txt").Observe(1024)
	UploadThroughput.WithLabelValues(".txt").Observe(100)
	UploadsTotal.WithLabelValues(".txt", "success").Inc()

	count := testutil.ToFloat64(UploadsTotal.WithLabelValues(".txt", "success"))
	if count < 1 {
		t.Errorf("Expected UploadsTotal >= 1, got %f", count)
	}
}

func TestActiveUploadsGauge(t *testing.T) {
	ActiveUploads.Inc()

	active := testutil.ToFloat64(ActiveUploads)
	if active < 1 {
		t.Errorf("Expected ActiveUploads >= 1, got %f", active)
	}

	ActiveUploads.Dec()
}

func TestChunkMetrics(t *testing.T) {
	ChunkUploadDuration.Observe(0.5)
	ChunkUploadsTotal.WithLabelValues("success").Inc()
	ParallelUploadWorkers.Set(3)

	count := testutil.ToFloat64(ChunkUploadsTotal.WithLabelValues("success"))
	if count < 1 {
		t.Errorf("Expected ChunkUploadsTotal >= 1, got %f", count)
	}

	workers := testutil.ToFloat64(ParallelUploadWorkers)
	if workers != 3 {
		t.Errorf("Expected ParallelUploadWorkers = 3, got %f", workers)
	}
}

func TestFinalizeMetrics(t *testing.T) {
	RecordFinalizeSuccess(0.25)

	count := testutil.ToFloat64(FinalizesTotal.WithLabelValues("success"))
	if count < 1 {
		t.Errorf("Expected FinalizesTotal success >= 1, got %f", count)
	}

	matches := testutil.ToFloat64(ChecksumVerifications.WithLabelValues("match"))
	if matches < 1 {
		t.Errorf("Expected ChecksumVerifications match >= 1, got %f", matches)
	}
}

func TestStoreMetrics(t *testing.T) {
	RecordStoreOperation("put_chunk", "memory", 0.001, nil)

	StaleUploadsCleaned.Inc()
	cleaned := testutil.ToFloat64(StaleUploadsCleaned)
	if cleaned < 1 {
		t.Errorf("Expected StaleUploadsCleaned >= 1, got %f", cleaned)
	}
}

func TestSessionMetrics(t *testing.T) {
	RecordRetry("chunk", "network")
	RecordError("network", "upload")

	retries := testutil.ToFloat64(RetryAttemptsTotal.WithLabelValues("chunk", "network"))
	if retries < 1 {
		t.Errorf("Expected RetryAttemptsTotal >= 1, got %f", retries)
	}
}
