// Package finalizer implements the server-side single-winner finalize
// protocol (spec §4.3): hashing the assembled blob incrementally and
// peeking its ZIP central directory without decompressing entries.
// Hashing is grounded on the teacher's streaming-buffer discipline
// (protocol.GetOptimalBufferSize); the archive peek is adapted from
// zip.go's ZipDirectory — writing a zip there, reading one here via
// archive/zip.NewReader over an io.ReaderAt.
package finalizer

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/resiliome/upload/internal/blob"
	"github.com/resiliome/upload/internal/metrics"
	"github.com/resiliome/upload/internal/protocol"
	"github.com/resiliome/upload/internal/store"
)

// notZipSentinel is returned in ZipContent when the blob is not a valid
// ZIP archive (spec §4.3 step 6: informational, not an error).
var notZipSentinel = []string{"(Not a valid ZIP archive)"}

var (
	// ErrAlreadyCompleted indicates the upload was already COMPLETED;
	// Result still carries the stored hash for an idempotent 200.
	ErrAlreadyCompleted = errors.New("finalizer: upload already completed")
	// ErrProcessing indicates a concurrent finalize is in flight (409).
	ErrProcessing = errors.New("finalizer: finalize already in progress")
	// ErrFailed indicates the upload is already in a terminal FAILED state.
	ErrFailed = errors.New("finalizer: upload already failed")
	// ErrIncomplete indicates fewer than TotalChunks chunk records exist.
	ErrIncomplete = errors.New("finalizer: not all chunks uploaded")
	// ErrHashMismatch indicates a supplied clientHash disagreed with the
	// computed serverHash.
	ErrHashMismatch = errors.New("finalizer: hash mismatch")
)

// Result is the outcome of a finalize attempt.
type Result struct {
	UploadID   string
	Status     store.Status
	Hash       string
	ZipContent []string
}

// Finalizer performs the UPLOADING -> PROCESSING -> COMPLETED|FAILED
// transition for one upload.
type Finalizer struct {
	Store store.Store
	Blob  blob.Store

	// RequireCompleteness enables the optional completeness check (spec
	// §4.3 "Completeness check (optional)"): reject finalize before
	// hashing if the chunk count doesn't match TotalChunks. Disabling it
	// relies solely on clientHash comparison to detect incomplete blobs.
	RequireCompleteness bool
}

// New creates a Finalizer with the completeness check enabled.
func New(s store.Store, b blob.Store) *Finalizer {
	return &Finalizer{Store: s, Blob: b, RequireCompleteness: true}
}

// Finalize runs the single-winner protocol for uploadID. clientHash may be
// empty, meaning the caller did not supply one.
func (f *Finalizer) Finalize(ctx context.Context, uploadID, clientHash string) (*Result, error) {
	up, err := f.Store.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	switch up.Status {
	case store.StatusCompleted:
		return &Result{UploadID: uploadID, Status: store.StatusCompleted, Hash: up.FinalHash}, ErrAlreadyCompleted
	case store.StatusProcessing:
		return nil, ErrProcessing
	case store.StatusFailed:
		return nil, ErrFailed
	}

	won, after, err := f.Store.TryBeginFinalize(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race between GetUpload and TryBeginFinalize; report
		// whatever the winner already achieved.
		switch after.Status {
		case store.StatusCompleted:
			return &Result{UploadID: uploadID, Status: store.StatusCompleted, Hash: after.FinalHash}, ErrAlreadyCompleted
		default:
			return nil, ErrProcessing
		}
	}

	start := time.Now()
	ext := fileExt(up.Filename)

	if f.RequireCompleteness {
		n, err := f.Store.ChunkCount(ctx, uploadID)
		if err != nil {
			_ = f.Store.FailUpload(ctx, uploadID)
			recordUploadOutcome(ext, up, start, "error")
			return nil, err
		}
		if n != up.TotalChunks {
			_ = f.Store.FailUpload(ctx, uploadID)
			metrics.RecordFinalizeIncomplete()
			recordUploadOutcome(ext, up, start, "error")
			return nil, ErrIncomplete
		}
	}

	ra, size, err := f.Blob.OpenReaderAt(uploadID)
	if err != nil {
		_ = f.Store.FailUpload(ctx, uploadID)
		recordUploadOutcome(ext, up, start, "error")
		return nil, fmt.Errorf("open blob for finalize: %w", err)
	}
	defer func() { _ = ra.Close() }()

	hash, err := streamHash(ra, size)
	if err != nil {
		_ = f.Store.FailUpload(ctx, uploadID)
		recordUploadOutcome(ext, up, start, "error")
		return nil, fmt.Errorf("hash blob: %w", err)
	}

	if clientHash != "" && clientHash != hash {
		_ = f.Store.FailUpload(ctx, uploadID)
		metrics.RecordFinalizeHashMismatch(time.Since(start).Seconds())
		recordUploadOutcome(ext, up, start, "error")
		return &Result{UploadID: uploadID, Status: store.StatusFailed, Hash: hash}, ErrHashMismatch
	}

	names := peekZipEntries(ra, size)

	completed, err := f.Store.CompleteUpload(ctx, uploadID, hash)
	if err != nil {
		return nil, err
	}
	metrics.RecordFinalizeSuccess(time.Since(start).Seconds())
	recordUploadOutcome(ext, up, start, "success")

	return &Result{
		UploadID:   uploadID,
		Status:     completed.Status,
		Hash:       completed.FinalHash,
		ZipContent: names,
	}, nil
}

// fileExt mirrors the teacher's upload-metric label derivation
// (internal/server/upload.go): lowercase extension, or "no_ext".
func fileExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "no_ext"
	}
	return ext
}

// recordUploadOutcome records the whole-upload lifecycle metrics (spec's
// DOMAIN STACK "upload" metrics group) at the moment an upload reaches a
// terminal state, from init (up.CreatedAt) to now.
func recordUploadOutcome(ext string, up *store.Upload, start time.Time, status string) {
	duration := time.Since(up.CreatedAt).Seconds()
	metrics.UploadDuration.WithLabelValues(ext).Observe(duration)
	metrics.UploadSize.WithLabelValues(ext).Observe(float64(up.TotalSize))

	processingSeconds := time.Since(start).Seconds()
	if processingSeconds > 0 {
		mbps := (float64(up.TotalSize) * 8) / (processingSeconds * 1_000_000)
		metrics.UploadThroughput.WithLabelValues(ext).Observe(mbps)
	}
	metrics.UploadsTotal.WithLabelValues(ext, status).Inc()
}

// streamHash computes SHA-256 over [0, size) using a bounded buffer, never
// materializing the whole blob in memory (spec §5 resource discipline).
func streamHash(r io.ReaderAt, size int64) (string, error) {
	h := sha256.New()
	buf := make([]byte, protocol.GetOptimalBufferSize(size))

	var offset int64
	for offset < size {
		n, err := r.ReadAt(buf, offset)
		if n > 0 {
			h.Write(buf[:n])
			offset += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// peekZipEntries reads only the ZIP central directory, collecting entry
// names without decompressing any payload. A non-ZIP blob is not an error
// (spec §4.3 step 6); it yields the sentinel entry.
func peekZipEntries(r io.ReaderAt, size int64) []string {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return append([]string(nil), notZipSentinel...)
	}
	names := make([]string, 0, len(zr.File))
	for _, file := range zr.File {
		names = append(names, file.Name)
	}
	return names
}
