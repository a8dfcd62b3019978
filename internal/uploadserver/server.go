// Package uploadserver implements the HTTP front end over store.Store,
// blob.Store, and internal/finalizer: init, put-chunk, finalize, and
// cleanup handlers, plus a background stale-upload sweep. Wiring is
// grounded on the teacher's server.Server (internal/server/server.go):
// one http.ServeMux, a shutdownCtx-cancelled background ticker, and a
// per-client-IP rate limiter map.
package uploadserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/resiliome/upload/internal/blob"
	"github.com/resiliome/upload/internal/finalizer"
	"github.com/resiliome/upload/internal/logging"
	"github.com/resiliome/upload/internal/progress"
	"github.com/resiliome/upload/internal/protocol"
	"github.com/resiliome/upload/internal/store"
)

// cleanupInterval is how often the background sweep runs; independent of
// StaleTTL (the sweep threshold) so operators can shorten the TTL without
// also tightening the goroutine's wake cadence.
const cleanupInterval = 1 * time.Hour

// Server is the HTTP API for the upload store, blob store, and finalizer.
type Server struct {
	Store     store.Store
	Blob      blob.Store
	Finalizer *finalizer.Finalizer
	Hub       *progress.Hub

	Port          int
	StaleTTL      time.Duration
	RateLimitMbps float64

	// StoreBackend labels store.* metrics ("memory" or "badger").
	StoreBackend string

	// ArchiveOnCleanup, when set, compresses a stale upload's partial
	// blob into ArchiveDir before deleting it (see export.go).
	ArchiveOnCleanup bool
	ArchiveDir       string

	rateLimiters sync.Map // clientIP -> *rateLimiterEntry

	httpServer     *http.Server
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// New builds a Server with a default StaleTTL of 24h (spec §6 STALE_TTL).
func New(s store.Store, b blob.Store, storeBackend string, port int) *Server {
	return &Server{
		Store:        s,
		Blob:         b,
		Finalizer:    finalizer.New(s, b),
		Hub:          progress.NewHub(),
		Port:         port,
		StaleTTL:     24 * time.Hour,
		StoreBackend: storeBackend,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.HealthRoute, s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/progress", s.Hub.HandleWebSocket)

	mux.HandleFunc("POST "+protocol.InitRoute, instrument("init", s.handleInit))
	mux.HandleFunc("PUT "+protocol.UploadPathPrefix+"{id}/chunk/{index}", instrument("chunk", s.withRateLimit(s.handleChunk)))
	mux.HandleFunc("POST "+protocol.UploadPathPrefix+"{id}/finalize", instrument("finalize", s.handleFinalize))
	mux.HandleFunc("DELETE "+protocol.FilesRoute, instrument("cleanup", s.handleCleanup))

	return withCORS(mux)
}

// Start binds the listener, launches the cleanup ticker, and serves until
// Shutdown is called. It blocks until the server stops.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownCancel = context.WithCancel(context.Background())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       protocol.ReadTimeout,
		WriteTimeout:      protocol.WriteTimeout,
		IdleTimeout:       protocol.IdleTimeout,
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	go s.runCleanupTicker()
	go s.runRateLimiterJanitor()

	logging.Info("upload server listening", zap.String("addr", ln.Addr().String()), zap.String("store", s.StoreBackend))
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) runCleanupTicker() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.Sweep(context.Background())
			if err != nil {
				logging.Warn("stale upload sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logging.Info("swept stale uploads", zap.Int("count", n))
			}
		case <-s.shutdownCtx.Done():
			return
		}
	}
}

func (s *Server) runRateLimiterJanitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupRateLimiters()
		case <-s.shutdownCtx.Done():
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Chunk-Index, X-Chunk-Offset")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
