// Package blob provides a random-access byte store keyed by upload id,
// supporting create-if-absent, sparse positional writes, and streaming
// reads (spec §2 item 2). The filesystem implementation is grounded on
// the teacher's WriteAt-based chunk writer (internal/server/chunks.go's
// writeChunk and session.go's pre-allocated file handle).
package blob

import "io"

// ReaderAtCloser is a seekable-by-offset reader that must be closed after
// use; the finalizer's hashing and zip-peek steps both need io.ReaderAt
// semantics over the same open handle.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store is the blob storage contract used by the server chunk assembler
// and finalizer.
type Store interface {
	// Ensure creates an empty blob for uploadID if one does not already
	// exist. Safe to call repeatedly.
	Ensure(uploadID string) error

	// WriteAt writes data at the given absolute offset, creating the blob
	// if necessary and growing it (with an implicit zero-filled hole) if
	// offset is beyond the current length.
	WriteAt(uploadID string, data []byte, offset int64) error

	// Open returns a streaming reader positioned at offset 0.
	Open(uploadID string) (io.ReadCloser, error)

	// OpenReaderAt returns a random-access reader plus the blob's current
	// length in bytes.
	OpenReaderAt(uploadID string) (ReaderAtCloser, int64, error)

	// Exists reports whether a blob for uploadID has been created.
	Exists(uploadID string) bool

	// Delete removes the blob for uploadID, if any.
	Delete(uploadID string) error
}
