package uploadserver

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/resiliome/upload/internal/apierror"
	"github.com/resiliome/upload/internal/logging"
	"github.com/resiliome/upload/internal/metrics"
)

// handleCleanup implements DELETE /api/files (spec §4.4): an on-demand
// invocation of the same sweep the background ticker runs periodically.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	n, err := s.Sweep(r.Context())
	if err != nil {
		logging.Error("cleanup sweep failed", zap.Error(err))
		apierror.Internal(w, "cleanup failed")
		return
	}
	apierror.WriteJSON(w, http.StatusOK, map[string]int{"cleaned": n})
}

// Sweep marks every UPLOADING upload older than StaleTTL as FAILED and
// removes its blob (spec §4.4). Idempotent: a second call in quick
// succession finds nothing left to sweep.
func (s *Server) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.StaleTTL)
	stale, err := s.Store.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, up := range stale {
		if err := s.archiveStaleBlob(up); err != nil {
			logging.Warn("archive stale blob failed", zap.String("upload_id", up.ID), zap.Error(err))
		}
		if err := s.Blob.Delete(up.ID); err != nil {
			logging.Warn("delete stale blob failed", zap.String("upload_id", up.ID), zap.Error(err))
		}
		if err := s.Store.FailUpload(ctx, up.ID); err != nil {
			logging.Warn("fail stale upload failed", zap.String("upload_id", up.ID), zap.Error(err))
			continue
		}
		s.Hub.Finish(up.ID)
		metrics.StaleUploadsCleaned.Inc()
		cleaned++
	}
	return cleaned, nil
}
