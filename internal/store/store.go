// Package store defines the durable record-keeping contract for uploads
// and their chunks. Implementations live in store/memory (ephemeral,
// process-local) and store/badger (durable, crash-recoverable).
package store

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of an Upload (spec §3, invariant I2).
type Status string

const (
	StatusUploading  Status = "UPLOADING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ErrNotFound is returned when an upload id has no matching record.
var ErrNotFound = errors.New("store: upload not found")

// ErrNotUploading describes an upload that is not currently in UPLOADING
// status (it is PROCESSING, COMPLETED, or FAILED). TryBeginFinalize does
// not return it; it reports that case as (false, upload, nil).
var ErrNotUploading = errors.New("store: upload not in UPLOADING status")

// Upload is the durable record for one transfer attempt of one file.
type Upload struct {
	ID          string
	Filename    string
	TotalSize   int64
	TotalChunks int
	Status      Status
	FinalHash   string // set only when Status == StatusCompleted
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the durable key/value contract for upload and chunk records,
// with transactional status transitions (spec §2 item 1, §6).
type Store interface {
	// InitUpload looks up an existing non-terminal upload matching
	// (filename, totalSize). If found, it returns the existing id and the
	// sorted set of already-uploaded chunk indices. Otherwise it creates a
	// new Upload in UPLOADING status with zero chunks uploaded.
	InitUpload(ctx context.Context, filename string, totalSize int64, totalChunks int) (*Upload, []int, error)

	// PutChunk upserts the chunk record (uploadID, index) -> UPLOADED with
	// the current time. Idempotent: re-uploading the same index leaves
	// exactly one chunk row (P1).
	PutChunk(ctx context.Context, uploadID string, index int) error

	// UploadedChunks returns the sorted set of chunk indices recorded as
	// UPLOADED for the given upload.
	UploadedChunks(ctx context.Context, uploadID string) ([]int, error)

	// ResetChunks deletes all chunk records for uploadID while keeping the
	// Upload row (and its id) intact. Used by init when a prior Upload
	// record is found but its blob has gone missing (spec §4.2 step 1).
	ResetChunks(ctx context.Context, uploadID string) error

	// ChunkCount returns the number of distinct chunk indices recorded as
	// UPLOADED for the given upload.
	ChunkCount(ctx context.Context, uploadID string) (int, error)

	// GetUpload returns the Upload record, or ErrNotFound.
	GetUpload(ctx context.Context, uploadID string) (*Upload, error)

	// TryBeginFinalize atomically transitions UPLOADING -> PROCESSING. It
	// returns (true, upload, nil) for the caller that performs the
	// transition, and (false, upload, nil) for any other caller that
	// observes a different status (PROCESSING, COMPLETED, or FAILED) so
	// the handler can respond 409/200 idempotently (P4).
	TryBeginFinalize(ctx context.Context, uploadID string) (bool, *Upload, error)

	// CompleteUpload transitions PROCESSING -> COMPLETED and sets
	// finalHash. Returns the updated Upload.
	CompleteUpload(ctx context.Context, uploadID, finalHash string) (*Upload, error)

	// FailUpload transitions the upload (from any non-terminal status) to
	// FAILED.
	FailUpload(ctx context.Context, uploadID string) error

	// ListStale returns all UPLOADING uploads created before olderThan.
	ListStale(ctx context.Context, olderThan time.Time) ([]*Upload, error)

	// DeleteUpload removes the upload record and all of its chunk records.
	DeleteUpload(ctx context.Context, uploadID string) error

	// Close releases any resources held by the store.
	Close() error
}
