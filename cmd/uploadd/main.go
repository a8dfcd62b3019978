// Command uploadd is the resumable upload server (spec §2 items 1-4):
// it serves the init/chunk/finalize/cleanup HTTP surface over a
// pluggable durable store and a filesystem blob store. Flag handling
// follows the teacher's cmd/warp subcommand dispatch style.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/resiliome/upload/internal/blob/fsblob"
	"github.com/resiliome/upload/internal/config"
	"github.com/resiliome/upload/internal/logging"
	badgerstore "github.com/resiliome/upload/internal/store/badger"
	"github.com/resiliome/upload/internal/store/memory"
	"github.com/resiliome/upload/internal/uploadserver"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(os.Args[2:])
	case "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("uploadd - resumable chunked upload server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  uploadd serve [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --port int           listen port (default 4000)")
	fmt.Println("  --uploads-dir string directory for blob storage (default ./uploads)")
	fmt.Println("  --store string       store backend: memory|badger (default memory)")
	fmt.Println("  --stale-ttl duration stale-upload cleanup threshold (default 24h)")
	fmt.Println("  --rate-limit float   per-client upload bandwidth limit in Mbps (0 = unlimited)")
	fmt.Println("  --archive-dir string archive stale blobs here before deleting them (optional)")
}

func serveCmd(args []string) {
	defaults := config.DefaultConfig()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", defaults.ServerPort, "listen port")
	uploadsDir := fs.String("uploads-dir", defaults.UploadsDir, "directory for blob storage")
	storeBackend := fs.String("store", defaults.StoreBackend, "store backend: memory|badger")
	storePath := fs.String("store-path", defaults.StorePath, "badger database directory")
	staleTTL := fs.Duration("stale-ttl", defaults.StaleTTL, "stale-upload cleanup threshold")
	rateLimit := fs.Float64("rate-limit", defaults.RateLimitMbps, "per-client upload bandwidth limit in Mbps")
	archiveDir := fs.String("archive-dir", "", "archive stale blobs here before deleting them")
	verbose := fs.Bool("verbose", false, "verbose logging")
	fs.Parse(args)

	if *verbose {
		logging.SetLevel(1)
	}

	blobStore, err := fsblob.New(*uploadsDir)
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}

	srv, closer := buildServer(*storeBackend, *storePath, blobStore, *port)
	srv.StaleTTL = *staleTTL
	srv.RateLimitMbps = *rateLimit
	if *archiveDir != "" {
		srv.ArchiveOnCleanup = true
		srv.ArchiveDir = *archiveDir
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logging.Info("uploadd listening", zap.Int("port", *port), zap.String("store", *storeBackend), zap.String("uploads_dir", *uploadsDir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case <-sigCh:
		fmt.Println("\nShutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("shutdown failed: %v", err)
		}
	}

	if closer != nil {
		_ = closer()
	}
}

// buildServer wires the requested store backend into a *uploadserver.Server,
// returning a closer for backends that hold open file handles (badger).
func buildServer(storeBackend, storePath string, blobStore *fsblob.Store, port int) (*uploadserver.Server, func() error) {
	switch storeBackend {
	case "badger":
		st, err := badgerstore.Open(storePath)
		if err != nil {
			log.Fatalf("open badger store at %s: %v", storePath, err)
		}
		return uploadserver.New(st, blobStore, "badger", port), st.Close
	case "memory", "":
		return uploadserver.New(memory.New(), blobStore, "memory", port), nil
	default:
		log.Fatalf("unknown store backend %q (want memory|badger)", storeBackend)
		return nil, nil
	}
}
