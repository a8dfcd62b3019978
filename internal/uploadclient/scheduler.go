package uploadclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	uerrors "github.com/resiliome/upload/internal/errors"
	"github.com/resiliome/upload/internal/metrics"
)

// runScheduler dispatches every PENDING chunk through a worker pool of
// size MaxConcurrency (spec §4.1, Design Notes' "cleaner restatement").
// Each worker holds its chunk's slot for the chunk's entire retry
// lifetime, including backoff sleeps, rather than releasing it back to a
// queue between attempts — this is the fix for the reference
// implementation's flagged race (spec §9 "Chunk retry path"): a worker
// never returns to pick up new work until its current chunk reaches a
// terminal per-chunk state, so max_concurrency in-flight requests (P8)
// is never exceeded even transiently.
func (s *Session) runScheduler(ctx context.Context) error {
	s.mu.Lock()
	pending := make([]int, 0, len(s.chunks))
	for _, c := range s.chunks {
		if c.Status == ChunkPending {
			pending = append(pending, c.Index)
		}
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	jobs := make(chan int, len(pending))
	for _, idx := range pending {
		jobs <- idx
	}
	close(jobs)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	errs := make(chan error, len(pending))

	concurrency := s.config.MaxConcurrency
	if concurrency > len(pending) {
		concurrency = len(pending)
	}
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := s.dispatchChunk(workerCtx, idx); err != nil {
					errs <- err
					cancelWorkers()
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// dispatchChunk runs one chunk's full per-chunk state machine: reads its
// byte range, PUTs it, and on failure retries with exponential backoff
// up to MaxRetries before declaring ERROR_FATAL (spec §4.1).
func (s *Session) dispatchChunk(ctx context.Context, idx int) error {
	plan := s.chunkByIndex(idx) // local copy; only this worker ever touches idx
	attempts := plan.Attempts

	for {
		if err := s.waitIfPaused(ctx); err != nil {
			return err
		}

		s.setChunkStatus(idx, ChunkUploading, attempts)

		buf := make([]byte, plan.size())
		if _, err := s.file.ReadAt(buf, plan.Start); err != nil {
			metrics.RecordError("disk", "chunk")
			return s.failChunk(idx, attempts, fmt.Errorf("read chunk %d: %w", idx, err))
		}

		chunkStart := time.Now()
		err := s.client.PutChunk(ctx, s.uploadID, idx, plan.Start, buf)
		if err == nil {
			metrics.ChunkUploadDuration.Observe(time.Since(chunkStart).Seconds())
			metrics.RecordChunkSuccess()
			s.setChunkStatus(idx, ChunkSuccess, attempts)
			s.uploadedBytes.Add(int64(len(buf)))
			s.emitProgress()
			return nil
		}

		attempts++
		if attempts > s.config.MaxRetries {
			metrics.RecordChunkError()
			metrics.RecordError("network", "chunk")
			return s.failChunk(idx, attempts, uerrors.ChunkUploadError(idx, attempts, err))
		}

		metrics.RecordChunkRetry()
		metrics.RecordRetry("chunk", "network")
		s.setChunkStatus(idx, ChunkErrorRetry, attempts)
		s.emitProgress()

		delay := backoffDelay(attempts, s.config.BaseDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Session) failChunk(idx int, attempts int, err error) error {
	s.setChunkStatus(idx, ChunkErrorFatal, attempts)
	s.emitProgress()
	return err
}

func (s *Session) chunkByIndex(idx int) chunkPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[idx]
}

func (s *Session) setChunkStatus(idx int, status ChunkStatus, attempts int) {
	s.mu.Lock()
	s.chunks[idx].Status = status
	s.chunks[idx].Attempts = attempts
	s.mu.Unlock()
}
