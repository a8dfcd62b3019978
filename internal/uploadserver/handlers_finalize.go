package uploadserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/resiliome/upload/internal/apierror"
	"github.com/resiliome/upload/internal/finalizer"
	"github.com/resiliome/upload/internal/logging"
	"github.com/resiliome/upload/internal/store"
)

type finalizeRequest struct {
	ClientHash string `json:"clientHash"`
}

type finalizeResponse struct {
	Status     string   `json:"status"`
	UploadID   string   `json:"uploadId"`
	Hash       string   `json:"hash"`
	ZipContent []string `json:"zipContent"`
}

// handleFinalize implements POST /api/upload/{uploadId}/finalize (spec §4.3).
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("id")

	var req finalizeRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	res, err := s.Finalizer.Finalize(r.Context(), uploadID, req.ClientHash)

	switch {
	case err == nil || errors.Is(err, finalizer.ErrAlreadyCompleted):
		s.Hub.Finish(uploadID)
		apierror.WriteJSON(w, http.StatusOK, finalizeResponse{
			Status:     string(res.Status),
			UploadID:   res.UploadID,
			Hash:       res.Hash,
			ZipContent: res.ZipContent,
		})
	case errors.Is(err, store.ErrNotFound):
		apierror.NotFound(w, "unknown upload id")
	case errors.Is(err, finalizer.ErrProcessing), errors.Is(err, finalizer.ErrFailed):
		apierror.Conflict(w, err.Error())
	case errors.Is(err, finalizer.ErrIncomplete):
		apierror.BadRequest(w, "not all chunks uploaded")
	case errors.Is(err, finalizer.ErrHashMismatch):
		s.Hub.Finish(uploadID)
		apierror.WriteWithHashes(w, http.StatusBadRequest, "hash mismatch", res.Hash, req.ClientHash)
	default:
		logging.Error("finalize failed", zap.String("upload_id", uploadID), zap.Error(err))
		apierror.Internal(w, "failed to finalize upload")
	}
}
