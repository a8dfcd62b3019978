package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/resiliome/upload/internal/store"
)

// Key Namespace
//
// Data Type   Prefix   Key Format                 Value
// ========================================================================
// Upload      "u:"     u:<uploadID>                uploadRecord (JSON)
// Chunk       "c:"     c:<uploadID>:<chunkIndex>   received_at unix nano (binary)

const (
	prefixUpload = "u:"
	prefixChunk  = "c:"
)

func keyUpload(uploadID string) []byte {
	return []byte(prefixUpload + uploadID)
}

func keyChunk(uploadID string, index int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", prefixChunk, uploadID, index))
}

func chunkPrefix(uploadID string) []byte {
	return []byte(prefixChunk + uploadID + ":")
}

// uploadRecord mirrors store.Upload for JSON persistence; a distinct type
// keeps the wire encoding decoupled from the public struct's field order.
type uploadRecord struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	TotalSize   int64        `json:"total_size"`
	TotalChunks int          `json:"total_chunks"`
	Status      store.Status `json:"status"`
	FinalHash   string       `json:"final_hash,omitempty"`
	CreatedAt   int64        `json:"created_at"` // unix nano
	UpdatedAt   int64        `json:"updated_at"` // unix nano
}

func encodeUpload(u *store.Upload) ([]byte, error) {
	rec := uploadRecord{
		ID:          u.ID,
		Filename:    u.Filename,
		TotalSize:   u.TotalSize,
		TotalChunks: u.TotalChunks,
		Status:      u.Status,
		FinalHash:   u.FinalHash,
		CreatedAt:   u.CreatedAt.UnixNano(),
		UpdatedAt:   u.UpdatedAt.UnixNano(),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	return b, nil
}

func decodeUpload(b []byte) (*store.Upload, error) {
	var rec uploadRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	return recordToUpload(&rec), nil
}

func encodeNanos(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}
