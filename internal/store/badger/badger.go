// Package badger provides a durable, crash-recoverable implementation of
// store.Store on top of BadgerDB, grounded on the transactional
// get-or-create and JSON key/value encoding pattern used by dittofs's
// metadata store (pkg/metadata/store/badger).
package badger

import (
	"context"
	"fmt"
	"time"

	bdg "github.com/dgraph-io/badger/v4"

	"github.com/google/uuid"

	"github.com/resiliome/upload/internal/store"
)

// Store is a store.Store backed by an embedded BadgerDB instance.
type Store struct {
	db *bdg.DB
}

// Open opens (creating if absent) a BadgerDB instance rooted at dir.
func Open(dir string) (*Store, error) {
	opts := bdg.DefaultOptions(dir).WithLogger(nil)
	db, err := bdg.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordToUpload(rec *uploadRecord) *store.Upload {
	return &store.Upload{
		ID:          rec.ID,
		Filename:    rec.Filename,
		TotalSize:   rec.TotalSize,
		TotalChunks: rec.TotalChunks,
		Status:      rec.Status,
		FinalHash:   rec.FinalHash,
		CreatedAt:   time.Unix(0, rec.CreatedAt),
		UpdatedAt:   time.Unix(0, rec.UpdatedAt),
	}
}

// InitUpload implements store.Store.
func (s *Store) InitUpload(ctx context.Context, filename string, totalSize int64, totalChunks int) (*store.Upload, []int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var result *store.Upload
	var chunks []int

	err := s.db.Update(func(txn *bdg.Txn) error {
		match, matchedChunks, err := findNonTerminalUpload(txn, filename, totalSize)
		if err != nil {
			return err
		}
		if match != nil {
			result = match
			chunks = matchedChunks
			return nil
		}

		now := time.Now()
		up := &store.Upload{
			ID:          uuid.NewString(),
			Filename:    filename,
			TotalSize:   totalSize,
			TotalChunks: totalChunks,
			Status:      store.StatusUploading,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		b, err := encodeUpload(up)
		if err != nil {
			return err
		}
		if err := txn.Set(keyUpload(up.ID), b); err != nil {
			return fmt.Errorf("store upload: %w", err)
		}
		result = up
		chunks = []int{}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, chunks, nil
}

// findNonTerminalUpload scans the upload prefix for a non-terminal record
// matching (filename, totalSize). BadgerDB has no secondary index, so this
// is an O(n) scan over uploads; acceptable for the scale this store
// targets (single backend instance, spec §1 non-goals).
func findNonTerminalUpload(txn *bdg.Txn, filename string, totalSize int64) (*store.Upload, []int, error) {
	it := txn.NewIterator(bdg.DefaultIteratorOptions)
	defer it.Close()

	prefix := []byte(prefixUpload)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var up *store.Upload
		err := item.Value(func(val []byte) error {
			u, err := decodeUpload(val)
			if err != nil {
				return err
			}
			up = u
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		nonTerminal := up.Status == store.StatusUploading || up.Status == store.StatusProcessing
		if up.Filename != filename || up.TotalSize != totalSize || !nonTerminal {
			continue
		}
		indices, err := uploadedChunksTxn(txn, up.ID)
		if err != nil {
			return nil, nil, err
		}
		return up, indices, nil
	}
	return nil, nil, nil
}

func uploadedChunksTxn(txn *bdg.Txn, uploadID string) ([]int, error) {
	it := txn.NewIterator(bdg.DefaultIteratorOptions)
	defer it.Close()

	prefix := chunkPrefix(uploadID)
	var indices []int
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var index int
		key := it.Item().Key()
		// key = "c:<uploadID>:<index>"; index is the fixed-width suffix
		// after the final ':'.
		suffixStart := len(key) - 10
		if suffixStart < 0 {
			continue
		}
		if _, err := fmt.Sscanf(string(key[suffixStart:]), "%010d", &index); err != nil {
			continue
		}
		indices = append(indices, index)
	}
	return indices, nil
}

// PutChunk implements store.Store.
func (s *Store) PutChunk(ctx context.Context, uploadID string, index int) error {
	return s.db.Update(func(txn *bdg.Txn) error {
		if _, err := getUploadTxn(txn, uploadID); err != nil {
			return err
		}
		if err := txn.Set(keyChunk(uploadID, index), encodeNanos(time.Now().UnixNano())); err != nil {
			return fmt.Errorf("store chunk: %w", err)
		}
		return touchUpload(txn, uploadID)
	})
}

func touchUpload(txn *bdg.Txn, uploadID string) error {
	up, err := getUploadTxn(txn, uploadID)
	if err != nil {
		return err
	}
	up.UpdatedAt = time.Now()
	b, err := encodeUpload(up)
	if err != nil {
		return err
	}
	return txn.Set(keyUpload(uploadID), b)
}

func getUploadTxn(txn *bdg.Txn, uploadID string) (*store.Upload, error) {
	item, err := txn.Get(keyUpload(uploadID))
	if err == bdg.ErrKeyNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var up *store.Upload
	err = item.Value(func(val []byte) error {
		u, err := decodeUpload(val)
		if err != nil {
			return err
		}
		up = u
		return nil
	})
	return up, err
}

// UploadedChunks implements store.Store.
func (s *Store) UploadedChunks(ctx context.Context, uploadID string) ([]int, error) {
	var indices []int
	err := s.db.View(func(txn *bdg.Txn) error {
		if _, err := getUploadTxn(txn, uploadID); err != nil {
			return err
		}
		idx, err := uploadedChunksTxn(txn, uploadID)
		if err != nil {
			return err
		}
		indices = idx
		return nil
	})
	if indices == nil {
		indices = []int{}
	}
	return indices, err
}

// ResetChunks implements store.Store.
func (s *Store) ResetChunks(ctx context.Context, uploadID string) error {
	return s.db.Update(func(txn *bdg.Txn) error {
		if _, err := getUploadTxn(txn, uploadID); err != nil {
			return err
		}

		it := txn.NewIterator(bdg.DefaultIteratorOptions)
		prefix := chunkPrefix(uploadID)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return touchUpload(txn, uploadID)
	})
}

// ChunkCount implements store.Store.
func (s *Store) ChunkCount(ctx context.Context, uploadID string) (int, error) {
	indices, err := s.UploadedChunks(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	return len(indices), nil
}

// GetUpload implements store.Store.
func (s *Store) GetUpload(ctx context.Context, uploadID string) (*store.Upload, error) {
	var up *store.Upload
	err := s.db.View(func(txn *bdg.Txn) error {
		u, err := getUploadTxn(txn, uploadID)
		if err != nil {
			return err
		}
		up = u
		return nil
	})
	return up, err
}

// TryBeginFinalize implements store.Store.
func (s *Store) TryBeginFinalize(ctx context.Context, uploadID string) (bool, *store.Upload, error) {
	var won bool
	var up *store.Upload

	err := s.db.Update(func(txn *bdg.Txn) error {
		u, err := getUploadTxn(txn, uploadID)
		if err != nil {
			return err
		}
		if u.Status != store.StatusUploading {
			up = u
			won = false
			return nil
		}
		u.Status = store.StatusProcessing
		u.UpdatedAt = time.Now()
		b, err := encodeUpload(u)
		if err != nil {
			return err
		}
		if err := txn.Set(keyUpload(uploadID), b); err != nil {
			return err
		}
		up = u
		won = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return won, up, nil
}

// CompleteUpload implements store.Store.
func (s *Store) CompleteUpload(ctx context.Context, uploadID, finalHash string) (*store.Upload, error) {
	var up *store.Upload
	err := s.db.Update(func(txn *bdg.Txn) error {
		u, err := getUploadTxn(txn, uploadID)
		if err != nil {
			return err
		}
		u.Status = store.StatusCompleted
		u.FinalHash = finalHash
		u.UpdatedAt = time.Now()
		b, err := encodeUpload(u)
		if err != nil {
			return err
		}
		if err := txn.Set(keyUpload(uploadID), b); err != nil {
			return err
		}
		up = u
		return nil
	})
	return up, err
}

// FailUpload implements store.Store.
func (s *Store) FailUpload(ctx context.Context, uploadID string) error {
	return s.db.Update(func(txn *bdg.Txn) error {
		u, err := getUploadTxn(txn, uploadID)
		if err != nil {
			return err
		}
		u.Status = store.StatusFailed
		u.UpdatedAt = time.Now()
		b, err := encodeUpload(u)
		if err != nil {
			return err
		}
		return txn.Set(keyUpload(uploadID), b)
	})
}

// ListStale implements store.Store.
func (s *Store) ListStale(ctx context.Context, olderThan time.Time) ([]*store.Upload, error) {
	var stale []*store.Upload
	err := s.db.View(func(txn *bdg.Txn) error {
		it := txn.NewIterator(bdg.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixUpload)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				up, err := decodeUpload(val)
				if err != nil {
					return err
				}
				if up.Status == store.StatusUploading && up.CreatedAt.Before(olderThan) {
					stale = append(stale, up)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return stale, err
}

// DeleteUpload implements store.Store.
func (s *Store) DeleteUpload(ctx context.Context, uploadID string) error {
	return s.db.Update(func(txn *bdg.Txn) error {
		if err := txn.Delete(keyUpload(uploadID)); err != nil && err != bdg.ErrKeyNotFound {
			return err
		}

		it := txn.NewIterator(bdg.DefaultIteratorOptions)
		prefix := chunkPrefix(uploadID)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			keys = append(keys, k)
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
