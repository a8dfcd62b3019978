// Package memory provides a process-local, non-durable implementation of
// store.Store backed by sync.Map and per-upload mutexes. It is grounded on
// the teacher's sync.Map session bookkeeping (getOrCreateSession's
// LoadOrStore race-free create) and generalized from an in-process upload
// session to the full Upload/Chunk record model.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resiliome/upload/internal/store"
)

type record struct {
	mu     sync.Mutex
	upload store.Upload
	chunks map[int]time.Time // index -> received_at
}

// Store is an in-memory store.Store. Safe for concurrent use. State does
// not survive process restart, matching an ephemeral deployment profile;
// use store/badger for crash recovery.
type Store struct {
	byID sync.Map // uploadID -> *record
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) find(uploadID string) (*record, bool) {
	v, ok := s.byID.Load(uploadID)
	if !ok {
		return nil, false
	}
	return v.(*record), true
}

// InitUpload implements store.Store.
func (s *Store) InitUpload(ctx context.Context, filename string, totalSize int64, totalChunks int) (*store.Upload, []int, error) {
	var reused *record
	s.byID.Range(func(_, v any) bool {
		r := v.(*record)
		r.mu.Lock()
		match := r.upload.Filename == filename && r.upload.TotalSize == totalSize &&
			(r.upload.Status == store.StatusUploading || r.upload.Status == store.StatusProcessing)
		r.mu.Unlock()
		if match {
			reused = r
			return false
		}
		return true
	})

	if reused != nil {
		reused.mu.Lock()
		up := reused.upload
		chunks := make([]int, 0, len(reused.chunks))
		for idx := range reused.chunks {
			chunks = append(chunks, idx)
		}
		reused.mu.Unlock()
		sort.Ints(chunks)
		return &up, chunks, nil
	}

	now := time.Now()
	id := uuid.NewString()
	r := &record{
		upload: store.Upload{
			ID:          id,
			Filename:    filename,
			TotalSize:   totalSize,
			TotalChunks: totalChunks,
			Status:      store.StatusUploading,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		chunks: make(map[int]time.Time),
	}

	// LoadOrStore avoids a second goroutine overwriting a concurrently
	// created record for the same id (collision is astronomically
	// unlikely with uuid.NewString but the guard costs nothing).
	actual, _ := s.byID.LoadOrStore(id, r)
	stored := actual.(*record)
	stored.mu.Lock()
	up := stored.upload
	stored.mu.Unlock()
	return &up, []int{}, nil
}

// PutChunk implements store.Store.
func (s *Store) PutChunk(ctx context.Context, uploadID string, index int) error {
	r, ok := s.find(uploadID)
	if !ok {
		return store.ErrNotFound
	}
	r.mu.Lock()
	r.chunks[index] = time.Now()
	r.upload.UpdatedAt = time.Now()
	r.mu.Unlock()
	return nil
}

// UploadedChunks implements store.Store.
func (s *Store) UploadedChunks(ctx context.Context, uploadID string) ([]int, error) {
	r, ok := s.find(uploadID)
	if !ok {
		return nil, store.ErrNotFound
	}
	r.mu.Lock()
	chunks := make([]int, 0, len(r.chunks))
	for idx := range r.chunks {
		chunks = append(chunks, idx)
	}
	r.mu.Unlock()
	sort.Ints(chunks)
	return chunks, nil
}

// ResetChunks implements store.Store.
func (s *Store) ResetChunks(ctx context.Context, uploadID string) error {
	r, ok := s.find(uploadID)
	if !ok {
		return store.ErrNotFound
	}
	r.mu.Lock()
	r.chunks = make(map[int]time.Time)
	r.upload.UpdatedAt = time.Now()
	r.mu.Unlock()
	return nil
}

// ChunkCount implements store.Store.
func (s *Store) ChunkCount(ctx context.Context, uploadID string) (int, error) {
	r, ok := s.find(uploadID)
	if !ok {
		return 0, store.ErrNotFound
	}
	r.mu.Lock()
	n := len(r.chunks)
	r.mu.Unlock()
	return n, nil
}

// GetUpload implements store.Store.
func (s *Store) GetUpload(ctx context.Context, uploadID string) (*store.Upload, error) {
	r, ok := s.find(uploadID)
	if !ok {
		return nil, store.ErrNotFound
	}
	r.mu.Lock()
	up := r.upload
	r.mu.Unlock()
	return &up, nil
}

// TryBeginFinalize implements store.Store.
func (s *Store) TryBeginFinalize(ctx context.Context, uploadID string) (bool, *store.Upload, error) {
	r, ok := s.find(uploadID)
	if !ok {
		return false, nil, store.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.upload.Status != store.StatusUploading {
		up := r.upload
		return false, &up, nil
	}
	r.upload.Status = store.StatusProcessing
	r.upload.UpdatedAt = time.Now()
	up := r.upload
	return true, &up, nil
}

// CompleteUpload implements store.Store.
func (s *Store) CompleteUpload(ctx context.Context, uploadID, finalHash string) (*store.Upload, error) {
	r, ok := s.find(uploadID)
	if !ok {
		return nil, store.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upload.Status = store.StatusCompleted
	r.upload.FinalHash = finalHash
	r.upload.UpdatedAt = time.Now()
	up := r.upload
	return &up, nil
}

// FailUpload implements store.Store.
func (s *Store) FailUpload(ctx context.Context, uploadID string) error {
	r, ok := s.find(uploadID)
	if !ok {
		return store.ErrNotFound
	}
	r.mu.Lock()
	r.upload.Status = store.StatusFailed
	r.upload.UpdatedAt = time.Now()
	r.mu.Unlock()
	return nil
}

// ListStale implements store.Store.
func (s *Store) ListStale(ctx context.Context, olderThan time.Time) ([]*store.Upload, error) {
	var stale []*store.Upload
	s.byID.Range(func(_, v any) bool {
		r := v.(*record)
		r.mu.Lock()
		if r.upload.Status == store.StatusUploading && r.upload.CreatedAt.Before(olderThan) {
			up := r.upload
			stale = append(stale, &up)
		}
		r.mu.Unlock()
		return true
	})
	return stale, nil
}

// DeleteUpload implements store.Store.
func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	s.byID.Delete(uploadID)
	return nil
}

// Close implements store.Store. Memory store holds no external resources.
func (s *Store) Close() error {
	return nil
}
