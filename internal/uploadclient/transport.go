package uploadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/resiliome/upload/internal/protocol"
)

// apiClient issues the three HTTP calls the engine makes against the
// server surface in spec §6, grounded on the teacher's sendChunk
// (internal/client/uploader.go) request-building style.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, httpClient *http.Client) *apiClient {
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type initResponse struct {
	UploadID       string `json:"uploadId"`
	Status         string `json:"status"`
	UploadedChunks []int  `json:"uploadedChunks"`
}

// Init calls POST /api/upload/init (spec §4.2).
func (c *apiClient) Init(ctx context.Context, filename string, totalSize int64, totalChunks int) (*initResponse, error) {
	body, err := json.Marshal(map[string]any{
		"filename":    filename,
		"totalSize":   totalSize,
		"totalChunks": totalChunks,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+protocol.InitRoute, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var out initResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode init response: %w", err)
	}
	return &out, nil
}

// PutChunk calls PUT /api/upload/{uploadId}/chunk/{index} (spec §4.1
// "Per-chunk dispatch"). A 2xx response is SUCCESS; anything else is
// treated as a transient failure the scheduler will retry.
func (c *apiClient) PutChunk(ctx context.Context, uploadID string, index int, offset int64, data []byte) error {
	url := fmt.Sprintf("%s%s%s/chunk/%d", c.baseURL, protocol.UploadPathPrefix, uploadID, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Chunk-Index", fmt.Sprintf("%d", index))
	req.Header.Set("X-Chunk-Offset", fmt.Sprintf("%d", offset))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Finalize calls POST /api/upload/{uploadId}/finalize (spec §4.3).
func (c *apiClient) Finalize(ctx context.Context, uploadID, clientHash string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"clientHash": clientHash})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s%s/finalize", c.baseURL, protocol.UploadPathPrefix, uploadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var out struct {
		Status     string   `json:"status"`
		UploadID   string   `json:"uploadId"`
		Hash       string   `json:"hash"`
		ZipContent []string `json:"zipContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode finalize response: %w", err)
	}
	return &Result{UploadID: out.UploadID, Hash: out.Hash, ZipContent: out.ZipContent}, nil
}

func responseError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
}
