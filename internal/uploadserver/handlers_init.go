package uploadserver

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/resiliome/upload/internal/apierror"
	"github.com/resiliome/upload/internal/logging"
	"github.com/resiliome/upload/internal/metrics"
	"github.com/resiliome/upload/internal/store"
)

const maxInitBodyBytes = 64 * 1024

type initRequest struct {
	Filename    string `json:"filename"`
	TotalSize   int64  `json:"totalSize"`
	TotalChunks int    `json:"totalChunks"`
}

type initResponse struct {
	UploadID       string `json:"uploadId"`
	Status         string `json:"status"`
	UploadedChunks []int  `json:"uploadedChunks"`
}

// handleInit implements POST /api/upload/init (spec §4.2).
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxInitBodyBytes)).Decode(&req); err != nil {
		apierror.BadRequest(w, "malformed JSON body")
		return
	}
	if err := validateInitRequest(req.Filename, req.TotalSize, req.TotalChunks); err != nil {
		apierror.BadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	start := time.Now()
	up, uploadedChunks, err := s.Store.InitUpload(ctx, req.Filename, req.TotalSize, req.TotalChunks)
	metrics.RecordStoreOperation("init_upload", s.StoreBackend, time.Since(start).Seconds(), err)
	if err != nil {
		logging.Error("init upload failed", zap.String("filename", req.Filename), zap.Error(err))
		apierror.Internal(w, "failed to initialize upload")
		return
	}

	// spec §4.2 step 1: an Upload record can outlive its blob (e.g. the
	// uploads directory was cleared out-of-band). Reset the chunk ledger
	// and hand back an empty resume set rather than minting a new id.
	if !s.Blob.Exists(up.ID) && len(uploadedChunks) > 0 {
		if err := s.Store.ResetChunks(ctx, up.ID); err != nil {
			logging.Error("reset chunks failed", zap.String("upload_id", up.ID), zap.Error(err))
			apierror.Internal(w, "failed to reset upload state")
			return
		}
		uploadedChunks = []int{}
	}
	if err := s.Blob.Ensure(up.ID); err != nil {
		logging.Error("ensure blob failed", zap.String("upload_id", up.ID), zap.Error(err))
		apierror.Internal(w, "failed to allocate upload storage")
		return
	}

	apierror.WriteJSON(w, http.StatusOK, initResponse{
		UploadID:       up.ID,
		Status:         string(store.StatusUploading),
		UploadedChunks: uploadedChunks,
	})
}
