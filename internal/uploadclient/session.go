package uploadclient

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	uerrors "github.com/resiliome/upload/internal/errors"
	"github.com/resiliome/upload/internal/metrics"
)

const defaultChunkSize = 5 * 1024 * 1024 // 5 MiB, spec §4.1 default

// EngineStatus is the overall upload's status, distinct from any single
// chunk's ChunkStatus.
type EngineStatus string

const (
	StatusUploading  EngineStatus = "UPLOADING"
	StatusPaused     EngineStatus = "PAUSED"
	StatusProcessing EngineStatus = "PROCESSING"
	StatusCompleted  EngineStatus = "COMPLETED"
	StatusFailed     EngineStatus = "FAILED"
)

// Config holds the recognized client-side options (spec §4.1, §6).
type Config struct {
	ChunkSize      int64
	MaxConcurrency int
	MaxRetries     int
	BaseDelay      time.Duration
	ServerBaseURL  string
	HTTPClient     *http.Client

	OnProgress func(Progress)
	OnComplete func(Result)
	OnError    func(error)
}

// DefaultConfig mirrors the teacher's DefaultUploadConfig defaults,
// retargeted to the values spec §4.1/§6 calls out.
func DefaultConfig(serverBaseURL string) Config {
	return Config{
		ChunkSize:      defaultChunkSize,
		MaxConcurrency: 3,
		MaxRetries:     3,
		BaseDelay:      1 * time.Second,
		ServerBaseURL:  serverBaseURL,
		HTTPClient:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// ChunkInfo is the per-chunk snapshot surfaced in a Progress event.
type ChunkInfo struct {
	Index    int
	Status   ChunkStatus
	Attempts int
}

// Progress is emitted after every state-changing event (spec §4.1
// "Progress contract").
type Progress struct {
	Chunks      []ChunkInfo
	ProgressPct float64
	Status      EngineStatus
	SpeedMbps   float64
	ETASeconds  float64
}

// Result is the payload passed to OnComplete: the finalize response.
type Result struct {
	UploadID   string
	Hash       string
	ZipContent []string
}

// Session drives one file's upload from plan through finalize.
type Session struct {
	file     *os.File
	filename string
	fileSize int64
	config   Config

	client *apiClient

	uploadID string

	mu     sync.Mutex
	chunks []chunkPlan
	status EngineStatus

	uploadedBytes atomic.Int64
	startTime     time.Time

	// pauseGate is closed while running and replaced with a fresh,
	// open channel on Pause; workers block on it between attempts
	// (spec §4.1 "Pause/resume": in-flight requests complete, no new
	// dispatches occur until Resume).
	gateMu    sync.Mutex
	pauseGate chan struct{}

	cancel context.CancelFunc
}

// NewSession opens path and prepares a Session; it does not contact the
// server until Start is called.
func NewSession(path string, config Config) (*Session, error) {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	gate := make(chan struct{})
	close(gate) // not paused

	return &Session{
		file:      f,
		filename:  stat.Name(),
		fileSize:  stat.Size(),
		config:    config,
		client:    newAPIClient(config.ServerBaseURL, config.HTTPClient),
		status:    StatusUploading,
		pauseGate: gate,
	}, nil
}

// Start runs init, builds the chunk plan from the server's resume
// response, and drives the scheduler to completion (COMPLETED or
// FAILED). It blocks until the transfer reaches a terminal state.
func (s *Session) Start(ctx context.Context) error {
	defer s.file.Close()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	totalChunks := int((s.fileSize + s.config.ChunkSize - 1) / s.config.ChunkSize)
	if s.fileSize == 0 {
		totalChunks = 1
	}

	initResp, err := s.client.Init(ctx, s.filename, s.fileSize, totalChunks)
	if err != nil {
		return uerrors.ConnectionError(s.config.ServerBaseURL, err)
	}
	s.uploadID = initResp.UploadID

	s.mu.Lock()
	s.chunks = buildChunkPlan(s.fileSize, s.config.ChunkSize, initResp.UploadedChunks)
	for _, c := range s.chunks {
		if c.Status == ChunkSuccess {
			s.uploadedBytes.Add(c.size())
		}
	}
	s.mu.Unlock()

	s.startTime = time.Now()
	s.emitProgress()

	if err := s.runScheduler(ctx); err != nil {
		s.setStatus(StatusFailed)
		s.emitProgress()
		if s.config.OnError != nil {
			s.config.OnError(err)
		}
		return err
	}

	s.setStatus(StatusProcessing)
	s.emitProgress()

	result, err := s.client.Finalize(ctx, s.uploadID, "")
	if err != nil {
		finalizeErr := uerrors.FinalizeError(s.uploadID, err)
		metrics.RecordError("network", "finalize")
		s.setStatus(StatusFailed)
		s.emitProgress()
		if s.config.OnError != nil {
			s.config.OnError(finalizeErr)
		}
		return finalizeErr
	}

	metrics.RecordUploadSession(time.Since(s.startTime).Seconds())
	s.setStatus(StatusCompleted)
	s.emitProgress()
	if s.config.OnComplete != nil {
		s.config.OnComplete(*result)
	}
	return nil
}

// Pause prevents new chunk dispatches; in-flight requests are allowed
// to complete (spec §4.1).
func (s *Session) Pause() {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	select {
	case <-s.pauseGate:
		s.pauseGate = make(chan struct{})
	default:
	}
	s.setStatus(StatusPaused)
}

// Resume re-enters dispatch after a Pause.
func (s *Session) Resume() {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	select {
	case <-s.pauseGate:
	default:
		close(s.pauseGate)
	}
	s.setStatus(StatusUploading)
}

// Cancel aborts the transfer by cancelling the context every request and
// backoff wait runs under; in-flight requests are interrupted and Start
// returns with the context's error.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) waitIfPaused(ctx context.Context) error {
	for {
		s.gateMu.Lock()
		gate := s.pauseGate
		s.gateMu.Unlock()
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) setStatus(st EngineStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Session) getStatus() EngineStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
