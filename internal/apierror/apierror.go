// Package apierror provides a stable JSON error envelope for the upload
// server's HTTP surface, grounded on the WriteJSON/problem-response
// pattern used by dittofs's control-plane API handlers. Unlike that
// RFC 7807 envelope, spec §7 calls for a generic {error} string plus
// specific fields (hashes, offsets) where useful — never a stack trace.
package apierror

import (
	"encoding/json"
	"net/http"
)

// Envelope is the JSON body written on every non-2xx response.
type Envelope struct {
	Error      string `json:"error"`
	ServerHash string `json:"serverHash,omitempty"`
	ClientHash string `json:"clientHash,omitempty"`
}

// Write writes a JSON error envelope with the given status code.
func Write(w http.ResponseWriter, status int, message string) {
	WriteWithHashes(w, status, message, "", "")
}

// WriteWithHashes writes a JSON error envelope carrying the server and
// client hashes, used by the finalize hash-mismatch response (spec §4.3
// step 5).
func WriteWithHashes(w http.ResponseWriter, status int, message, serverHash, clientHash string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Error:      message,
		ServerHash: serverHash,
		ClientHash: clientHash,
	})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, message string) {
	Write(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	Write(w, http.StatusNotFound, message)
}

// Conflict writes a 409 response.
func Conflict(w http.ResponseWriter, message string) {
	Write(w, http.StatusConflict, message)
}

// Internal writes a 500 response. The message is a generic description;
// callers must not pass raw error strings that could leak internals.
func Internal(w http.ResponseWriter, message string) {
	Write(w, http.StatusInternalServerError, message)
}

// WriteJSON writes an arbitrary JSON payload with the given status code,
// used for success responses (init, put-chunk, finalize, cleanup).
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
