package uploadserver

import (
	"errors"
	"fmt"
	"strings"
)

// Bounds on init/chunk request fields, grounded on the teacher's
// validate.go (ValidateTotalChunks, ValidateChunkID, ValidateOffset) but
// adapted to the spec's chunk/offset/size semantics.
const (
	maxTotalChunks = 1_000_000
	maxChunkSize   = 100 * 1024 * 1024 // 100MB, matches teacher's MaxChunkSize
)

func validateInitRequest(filename string, totalSize int64, totalChunks int) error {
	if _, err := sanitizeFilename(filename); err != nil {
		return fmt.Errorf("invalid filename: %w", err)
	}
	if totalSize < 0 {
		return errors.New("totalSize cannot be negative")
	}
	if totalChunks <= 0 {
		return errors.New("totalChunks must be positive")
	}
	if totalChunks > maxTotalChunks {
		return fmt.Errorf("totalChunks too large: %d (max %d)", totalChunks, maxTotalChunks)
	}
	return nil
}

func validateChunkRequest(index int, totalChunks int, offset, totalSize, bodyLength int64) error {
	if index < 0 {
		return fmt.Errorf("chunk index cannot be negative: %d", index)
	}
	if index >= totalChunks {
		return fmt.Errorf("chunk index %d exceeds total chunks %d", index, totalChunks)
	}
	if offset < 0 {
		return fmt.Errorf("offset cannot be negative: %d", offset)
	}
	if offset > totalSize {
		return fmt.Errorf("offset %d exceeds total size %d", offset, totalSize)
	}
	if offset+bodyLength > totalSize {
		return fmt.Errorf("chunk extends past total size: offset %d + %d bytes > %d", offset, bodyLength, totalSize)
	}
	if bodyLength > maxChunkSize {
		return fmt.Errorf("chunk body too large: %d bytes (max %d)", bodyLength, maxChunkSize)
	}
	return nil
}

// sanitizeFilename rejects filenames that would be unsafe if ever used to
// derive a filesystem path, even though blobs are keyed by upload id, not
// filename (spec §3: "filename ... not trusted for filesystem paths").
// Grounded on the teacher's sanitizeFilename (internal/server/sanitize.go).
func sanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty filename")
	}
	if strings.ContainsAny(name, "/\\") {
		return "", errors.New("filename contains path separators")
	}
	if strings.Contains(name, "\x00") {
		return "", errors.New("filename contains null bytes")
	}
	if strings.Contains(name, "..") {
		return "", errors.New("filename contains directory traversal sequence")
	}
	for _, r := range name {
		if r < 32 || r == 0x7F {
			return "", errors.New("filename contains control characters")
		}
	}
	if len(name) > 255 {
		return "", errors.New("filename too long (max 255 bytes)")
	}
	return name, nil
}
