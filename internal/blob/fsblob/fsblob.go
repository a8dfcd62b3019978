// Package fsblob implements blob.Store on a local filesystem directory,
// one file per upload id, grounded on the teacher's pre-allocated
// *os.File + WriteAt chunk writer (internal/server/session.go's
// getOrCreateSession, chunks.go's writeChunk).
package fsblob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/resiliome/upload/internal/blob"
)

// Store is a blob.Store backed by one regular file per upload id under
// dir, named "<uploadID>.bin" (spec §6 persisted state layout).
type Store struct {
	dir string

	mu      sync.Mutex
	handles map[string]*os.File // open read/write handles, one per active upload
}

// New creates a Store rooted at dir, creating the directory if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{dir: dir, handles: make(map[string]*os.File)}, nil
}

func (s *Store) path(uploadID string) string {
	return filepath.Join(s.dir, uploadID+".bin")
}

func (s *Store) handle(uploadID string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.handles[uploadID]; ok {
		return f, nil
	}
	f, err := os.OpenFile(s.path(uploadID), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	s.handles[uploadID] = f
	return f, nil
}

// Ensure implements blob.Store.
func (s *Store) Ensure(uploadID string) error {
	_, err := s.handle(uploadID)
	return err
}

// WriteAt implements blob.Store. Writing beyond the current length leaves
// a sparse, implicitly zero-filled hole until a later write fills it
// (spec §3 Blob, I1).
func (s *Store) WriteAt(uploadID string, data []byte, offset int64) error {
	f, err := s.handle(uploadID)
	if err != nil {
		return err
	}
	n, err := f.WriteAt(data, offset)
	if err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// Open implements blob.Store, returning a fresh streaming handle
// independent of any cached read/write handle.
func (s *Store) Open(uploadID string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(uploadID))
	if err != nil {
		return nil, fmt.Errorf("open blob for read: %w", err)
	}
	return f, nil
}

// OpenReaderAt implements blob.Store.
func (s *Store) OpenReaderAt(uploadID string) (blob.ReaderAtCloser, int64, error) {
	f, err := os.Open(s.path(uploadID))
	if err != nil {
		return nil, 0, fmt.Errorf("open blob for random access: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat blob: %w", err)
	}
	return f, info.Size(), nil
}

// Exists implements blob.Store.
func (s *Store) Exists(uploadID string) bool {
	_, err := os.Stat(s.path(uploadID))
	return err == nil
}

// Delete implements blob.Store.
func (s *Store) Delete(uploadID string) error {
	s.mu.Lock()
	if f, ok := s.handles[uploadID]; ok {
		_ = f.Close()
		delete(s.handles, uploadID)
	}
	s.mu.Unlock()

	if err := os.Remove(s.path(uploadID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Close releases all cached file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.handles {
		_ = f.Close()
		delete(s.handles, id)
	}
	return nil
}
