package uploadserver

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/resiliome/upload/internal/blob/fsblob"
	"github.com/resiliome/upload/internal/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	st := memory.New()
	b, err := fsblob.New(t.TempDir())
	if err != nil {
		t.Fatalf("fsblob.New failed: %v", err)
	}
	srv := New(st, b, "memory", 0)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, srv
}

func doInit(t *testing.T, ts *httptest.Server, filename string, totalSize int64, totalChunks int) initResponse {
	t.Helper()
	body, _ := json.Marshal(initRequest{Filename: filename, TotalSize: totalSize, TotalChunks: totalChunks})
	resp, err := http.Post(ts.URL+"/api/upload/init", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d, want 200", resp.StatusCode)
	}
	var out initResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func doChunk(t *testing.T, ts *httptest.Server, uploadID string, index int, offset int64, data []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/upload/%s/chunk/%d", ts.URL, uploadID, index),
		bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Chunk-Index", fmt.Sprintf("%d", index))
	req.Header.Set("X-Chunk-Offset", fmt.Sprintf("%d", offset))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func doFinalize(t *testing.T, ts *httptest.Server, uploadID, clientHash string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(finalizeRequest{ClientHash: clientHash})
	resp, err := http.Post(ts.URL+"/api/upload/"+uploadID+"/finalize", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func chunkPlan(data []byte, chunkSize int) [][]byte {
	var chunks [][]byte
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

func TestHappyPathProducesExpectedHash(t *testing.T) {
	ts, _ := newTestServer(t)

	data := bytes.Repeat([]byte{0x41}, 12*1024*1024)
	chunks := chunkPlan(data, 5*1024*1024)

	init := doInit(t, ts, "a.bin", int64(len(data)), len(chunks))
	if init.Status != "UPLOADING" || len(init.UploadedChunks) != 0 {
		t.Fatalf("unexpected init response: %+v", init)
	}

	for i, c := range chunks {
		resp := doChunk(t, ts, init.UploadID, i, int64(i*5*1024*1024), c)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chunk %d status = %d, want 200", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doFinalize(t, ts, init.UploadID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize status = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()

	var out finalizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}

	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])
	if out.Hash != want {
		t.Errorf("hash = %s, want %s", out.Hash, want)
	}
	if out.Status != "COMPLETED" {
		t.Errorf("status = %s, want COMPLETED", out.Status)
	}
	if len(out.ZipContent) != 1 || out.ZipContent[0] != "(Not a valid ZIP archive)" {
		t.Errorf("unexpected zipContent: %v", out.ZipContent)
	}
}

func TestOutOfOrderChunksMatchHash(t *testing.T) {
	ts, _ := newTestServer(t)

	data := bytes.Repeat([]byte{0x41}, 12*1024*1024)
	chunks := chunkPlan(data, 5*1024*1024)
	init := doInit(t, ts, "b.bin", int64(len(data)), len(chunks))

	order := []int{2, 0, 1}
	for _, i := range order {
		resp := doChunk(t, ts, init.UploadID, i, int64(i*5*1024*1024), chunks[i])
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chunk %d status = %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doFinalize(t, ts, init.UploadID, "")
	defer resp.Body.Close()
	var out finalizeResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)

	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])
	if out.Hash != want {
		t.Errorf("hash = %s, want %s", out.Hash, want)
	}
}

func TestResumeReturnsUploadedChunks(t *testing.T) {
	ts, _ := newTestServer(t)

	data := bytes.Repeat([]byte{0x42}, 3*1024*1024)
	chunks := chunkPlan(data, 1024*1024)
	init := doInit(t, ts, "resume.bin", int64(len(data)), len(chunks))

	for _, i := range []int{0, 1} {
		resp := doChunk(t, ts, init.UploadID, i, int64(i*1024*1024), chunks[i])
		resp.Body.Close()
	}

	again := doInit(t, ts, "resume.bin", int64(len(data)), len(chunks))
	if again.UploadID != init.UploadID {
		t.Fatalf("expected same upload id, got %s vs %s", again.UploadID, init.UploadID)
	}
	if len(again.UploadedChunks) != 2 || again.UploadedChunks[0] != 0 || again.UploadedChunks[1] != 1 {
		t.Errorf("expected [0 1], got %v", again.UploadedChunks)
	}

	resp := doChunk(t, ts, init.UploadID, 2, 2*1024*1024, chunks[2])
	resp.Body.Close()

	fr := doFinalize(t, ts, init.UploadID, "")
	defer fr.Body.Close()
	var out finalizeResponse
	_ = json.NewDecoder(fr.Body).Decode(&out)

	sum := sha256.Sum256(data)
	want := hex.EncodeToString(sum[:])
	if out.Hash != want {
		t.Errorf("hash = %s, want %s", out.Hash, want)
	}
}

func TestHashMismatchFailsUpload(t *testing.T) {
	ts, _ := newTestServer(t)

	data := []byte("content for hashing")
	init := doInit(t, ts, "mismatch.bin", int64(len(data)), 1)
	resp := doChunk(t, ts, init.UploadID, 0, 0, data)
	resp.Body.Close()

	fr := doFinalize(t, ts, init.UploadID, "0000000000000000000000000000000000000000000000000000000000000000")
	defer fr.Body.Close()
	if fr.StatusCode != http.StatusBadRequest {
		t.Fatalf("finalize status = %d, want 400", fr.StatusCode)
	}
}

func TestDoubleFinalizeIsIdempotent(t *testing.T) {
	ts, _ := newTestServer(t)

	data := []byte("finalize me twice")
	init := doInit(t, ts, "twice.bin", int64(len(data)), 1)
	resp := doChunk(t, ts, init.UploadID, 0, 0, data)
	resp.Body.Close()

	first := doFinalize(t, ts, init.UploadID, "")
	defer first.Body.Close()
	var firstOut finalizeResponse
	_ = json.NewDecoder(first.Body).Decode(&firstOut)

	second := doFinalize(t, ts, init.UploadID, "")
	defer second.Body.Close()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("second finalize status = %d, want 200 (idempotent)", second.StatusCode)
	}
	var secondOut finalizeResponse
	_ = json.NewDecoder(second.Body).Decode(&secondOut)
	if secondOut.Hash != firstOut.Hash {
		t.Errorf("hash changed across idempotent finalize: %s vs %s", secondOut.Hash, firstOut.Hash)
	}
}

func TestZipContentPeek(t *testing.T) {
	ts, _ := newTestServer(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b/c.txt"} {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte("x"))
	}
	_ = zw.Close()
	data := buf.Bytes()

	init := doInit(t, ts, "archive.zip", int64(len(data)), 1)
	resp := doChunk(t, ts, init.UploadID, 0, 0, data)
	resp.Body.Close()

	fr := doFinalize(t, ts, init.UploadID, "")
	defer fr.Body.Close()
	var out finalizeResponse
	_ = json.NewDecoder(fr.Body).Decode(&out)

	if len(out.ZipContent) != 2 || out.ZipContent[0] != "a.txt" || out.ZipContent[1] != "b/c.txt" {
		t.Errorf("unexpected zipContent: %v", out.ZipContent)
	}
}

func TestChunkRejectsMissingOffsetHeader(t *testing.T) {
	ts, _ := newTestServer(t)
	init := doInit(t, ts, "bad.bin", 10, 1)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/upload/"+init.UploadID+"/chunk/0", bytes.NewReader([]byte("x")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFinalizeUnknownUploadReturns404(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := doFinalize(t, ts, "does-not-exist", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCleanupEndpointSweepsStaleUploads(t *testing.T) {
	ts, srv := newTestServer(t)
	srv.StaleTTL = 0 // everything UPLOADING is immediately stale

	init := doInit(t, ts, "stale.bin", 10, 1)
	_ = init

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/files", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out map[string]int
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out["cleaned"] != 1 {
		t.Errorf("cleaned = %d, want 1", out["cleaned"])
	}
}

func TestCleanupArchivesStaleBlobBeforeDeleting(t *testing.T) {
	ts, srv := newTestServer(t)
	srv.StaleTTL = 0
	archiveDir := t.TempDir()
	srv.ArchiveOnCleanup = true
	srv.ArchiveDir = archiveDir

	data := []byte("partial bytes from a crashed client")
	init := doInit(t, ts, "partial.bin", int64(len(data)), 1)
	doChunk(t, ts, init.UploadID, 0, 0, data)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/files", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	archivePath := filepath.Join(archiveDir, init.UploadID+".zst")
	compressed, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("expected archive file at %s: %v", archivePath, err)
	}

	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("new zstd reader: %v", err)
	}
	defer dec.Close()
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decompress archive: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("archived content = %q, want %q", got, data)
	}

	if _, err := srv.Blob.Open(init.UploadID); err == nil {
		t.Error("expected stale blob to be deleted after cleanup")
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
