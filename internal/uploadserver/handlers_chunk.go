package uploadserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/resiliome/upload/internal/apierror"
	"github.com/resiliome/upload/internal/logging"
	"github.com/resiliome/upload/internal/metrics"
	"github.com/resiliome/upload/internal/store"
)

// handleChunk implements PUT /api/upload/{uploadId}/chunk/{chunkIndex}
// (spec §4.2). X-Chunk-Offset is authoritative for placement; the index in
// the path identifies the Chunk record.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metrics.ParallelUploadWorkers.Inc()
	defer metrics.ParallelUploadWorkers.Dec()

	uploadID := r.PathValue("id")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		apierror.BadRequest(w, "invalid chunk index")
		return
	}

	offsetHeader := r.Header.Get("X-Chunk-Offset")
	offset, err := strconv.ParseInt(offsetHeader, 10, 64)
	if err != nil {
		apierror.BadRequest(w, "missing or invalid X-Chunk-Offset header")
		return
	}

	ctx := r.Context()
	up, err := s.Store.GetUpload(ctx, uploadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apierror.NotFound(w, "unknown upload id")
			return
		}
		logging.Error("get upload failed", zap.String("upload_id", uploadID), zap.Error(err))
		apierror.Internal(w, "failed to load upload")
		return
	}
	if up.Status != store.StatusUploading {
		apierror.Conflict(w, fmt.Sprintf("upload is %s, not accepting chunks", up.Status))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, up.TotalSize-offset+1))
	if err != nil {
		logging.Error("read chunk body failed", zap.String("upload_id", uploadID), zap.Int("index", index), zap.Error(err))
		apierror.Internal(w, "failed to read chunk body")
		return
	}

	if err := validateChunkRequest(index, up.TotalChunks, offset, up.TotalSize, int64(len(body))); err != nil {
		apierror.BadRequest(w, err.Error())
		return
	}

	if err := s.Blob.WriteAt(uploadID, body, offset); err != nil {
		metrics.RecordChunkError()
		logging.Error("write chunk failed", zap.String("upload_id", uploadID), zap.Int("index", index), zap.Error(err))
		apierror.Internal(w, "failed to write chunk")
		return
	}

	putStart := time.Now()
	err = s.Store.PutChunk(ctx, uploadID, index)
	metrics.RecordStoreOperation("put_chunk", s.StoreBackend, time.Since(putStart).Seconds(), err)
	if err != nil {
		metrics.RecordChunkError()
		logging.Error("record chunk failed", zap.String("upload_id", uploadID), zap.Int("index", index), zap.Error(err))
		apierror.Internal(w, "failed to record chunk")
		return
	}

	metrics.ChunkUploadDuration.Observe(time.Since(start).Seconds())
	metrics.RecordChunkSuccess()
	s.Hub.ReportChunk(uploadID, up.Filename, up.TotalSize, int64(len(body)))

	apierror.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
