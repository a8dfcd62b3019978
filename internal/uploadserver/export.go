package uploadserver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/resiliome/upload/internal/store"
)

// archiveStaleBlob streams a stale upload's partial blob through a zstd
// encoder into ArchiveDir before the blob is deleted, giving operators a
// forensic copy of whatever bytes a crashed client managed to send. Not
// part of the resumable-upload protocol itself (spec §4.4's cleanup only
// requires delete+FAILED); this is retention on top of it.
func (s *Server) archiveStaleBlob(up *store.Upload) error {
	if !s.ArchiveOnCleanup {
		return nil
	}
	if err := os.MkdirAll(s.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	src, err := s.Blob.Open(up.ID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open stale blob: %w", err)
	}
	defer func() { _ = src.Close() }()

	dstPath := filepath.Join(s.ArchiveDir, up.ID+".zst")
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}

	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return fmt.Errorf("compress stale blob: %w", err)
	}
	return enc.Close()
}
