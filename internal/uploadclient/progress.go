package uploadclient

import "time"

// emitProgress builds and delivers a Progress snapshot (spec §4.1
// "Progress contract"): progress_pct = 100*uploaded_bytes/file_size,
// speed = uploaded_bytes/elapsed_seconds, eta = remaining_bytes/speed.
func (s *Session) emitProgress() {
	if s.config.OnProgress == nil {
		return
	}

	s.mu.Lock()
	chunks := make([]ChunkInfo, len(s.chunks))
	for i, c := range s.chunks {
		chunks[i] = ChunkInfo{Index: c.Index, Status: c.Status, Attempts: c.Attempts}
	}
	status := s.status
	s.mu.Unlock()

	uploaded := s.uploadedBytes.Load()
	elapsed := time.Since(s.startTime).Seconds()

	var pct float64
	if s.fileSize > 0 {
		pct = 100 * float64(uploaded) / float64(s.fileSize)
	}

	var speedMbps float64
	if elapsed > 0 {
		speedMbps = (float64(uploaded) * 8) / (elapsed * 1_000_000)
	}

	var etaSeconds float64
	remaining := s.fileSize - uploaded
	if speedMbps > 0 && remaining > 0 {
		bytesPerSecond := speedMbps * 1_000_000 / 8
		etaSeconds = float64(remaining) / bytesPerSecond
	}

	s.config.OnProgress(Progress{
		Chunks:      chunks,
		ProgressPct: pct,
		Status:      status,
		SpeedMbps:   speedMbps,
		ETASeconds:  etaSeconds,
	})
}
