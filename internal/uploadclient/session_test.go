package uploadclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/resiliome/upload/internal/protocol"
)

// fakeServer is a minimal stand-in for the real uploadserver exercising
// just enough of spec §6's surface for the client engine tests:
// init/chunk/finalize against one in-memory blob.
type fakeServer struct {
	mu            sync.Mutex
	blob          []byte
	uploadedIdx   map[int]bool
	failChunks    map[int]int // chunkIndex -> remaining failures before success
	finalizeCalls int
}

func newFakeServer(totalSize int64) *fakeServer {
	return &fakeServer{
		blob:        make([]byte, totalSize),
		uploadedIdx: make(map[int]bool),
		failChunks:  make(map[int]int),
	}
}

func (f *fakeServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == protocol.InitRoute:
			f.mu.Lock()
			uploaded := make([]int, 0, len(f.uploadedIdx))
			for i := range f.uploadedIdx {
				uploaded = append(uploaded, i)
			}
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{
				"uploadId":       "fake-upload",
				"status":         "UPLOADING",
				"uploadedChunks": uploaded,
			})
		case r.Method == http.MethodPut:
			var idx int
			_, _ = fmt.Sscanf(r.Header.Get("X-Chunk-Index"), "%d", &idx)
			var offset int64
			_, _ = fmt.Sscanf(r.Header.Get("X-Chunk-Offset"), "%d", &offset)

			f.mu.Lock()
			if n := f.failChunks[idx]; n > 0 {
				f.failChunks[idx] = n - 1
				f.mu.Unlock()
				http.Error(w, "simulated failure", http.StatusInternalServerError)
				return
			}
			f.mu.Unlock()

			body, _ := readAll(r)
			f.mu.Lock()
			copy(f.blob[offset:], body)
			f.uploadedIdx[idx] = true
			f.mu.Unlock()

			_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
		case r.Method == http.MethodPost:
			f.mu.Lock()
			f.finalizeCalls++
			sum := sha256.Sum256(f.blob)
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":     "COMPLETED",
				"uploadId":   "fake-upload",
				"hash":       hex.EncodeToString(sum[:]),
				"zipContent": []string{"(Not a valid ZIP archive)"},
			})
		default:
			http.NotFound(w, r)
		}
	}
}

func readAll(r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}

func TestSessionHappyPath(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 12*1024*1024)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fs := newFakeServer(int64(len(data)))
	server := httptest.NewServer(fs.handler())
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.ChunkSize = 5 * 1024 * 1024
	cfg.BaseDelay = 10 * time.Millisecond

	var gotResult Result
	var completed bool
	cfg.OnComplete = func(r Result) { gotResult = r; completed = true }
	cfg.OnError = func(err error) { t.Errorf("unexpected OnError: %v", err) }

	sess, err := NewSession(path, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !completed {
		t.Fatal("OnComplete was never called")
	}
	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])
	if gotResult.Hash != want {
		t.Errorf("hash = %s, want %s", gotResult.Hash, want)
	}
}

func TestSessionRetriesTransientFailures(t *testing.T) {
	data := []byte("retry me please")
	dir := t.TempDir()
	path := filepath.Join(dir, "retry.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fs := newFakeServer(int64(len(data)))
	fs.failChunks[0] = 2 // fail twice, succeed on 3rd attempt
	server := httptest.NewServer(fs.handler())
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.ChunkSize = int64(len(data))
	cfg.MaxRetries = 3
	cfg.BaseDelay = 10 * time.Millisecond

	var errored bool
	cfg.OnError = func(err error) { errored = true }

	sess, err := NewSession(path, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if errored {
		t.Error("OnError should not fire when retries succeed within budget")
	}
}

func TestSessionFatalAfterMaxRetries(t *testing.T) {
	data := []byte("always fails")
	dir := t.TempDir()
	path := filepath.Join(dir, "fatal.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	fs := newFakeServer(int64(len(data)))
	fs.failChunks[0] = 100 // never succeeds within the retry budget
	server := httptest.NewServer(fs.handler())
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.ChunkSize = int64(len(data))
	cfg.MaxRetries = 2
	cfg.BaseDelay = 5 * time.Millisecond

	var errored bool
	cfg.OnError = func(err error) { errored = true }

	sess, err := NewSession(path, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if err := sess.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail after exhausting retries")
	}
	if !errored {
		t.Error("OnError should have fired on fatal chunk failure")
	}
}

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	base := 1 * time.Second
	if got := backoffDelay(1, base); got != 2*base {
		t.Errorf("attempt 1 = %v, want %v", got, 2*base)
	}
	if got := backoffDelay(2, base); got != 4*base {
		t.Errorf("attempt 2 = %v, want %v", got, 4*base)
	}
	if got := backoffDelay(3, base); got != 8*base {
		t.Errorf("attempt 3 = %v, want %v", got, 8*base)
	}
}

func TestBuildChunkPlanSeedsAlreadyUploaded(t *testing.T) {
	plan := buildChunkPlan(12*1024*1024, 5*1024*1024, []int{0, 1})
	if len(plan) != 3 {
		t.Fatalf("len(plan) = %d, want 3", len(plan))
	}
	if plan[0].Status != ChunkSuccess || plan[1].Status != ChunkSuccess {
		t.Errorf("chunks 0,1 should be seeded SUCCESS: %+v", plan)
	}
	if plan[2].Status != ChunkPending {
		t.Errorf("chunk 2 should be PENDING: %+v", plan[2])
	}
}
