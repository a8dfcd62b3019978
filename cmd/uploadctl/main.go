// Command uploadctl is the client-side CLI driving
// internal/uploadclient's upload engine against a running uploadd
// server. Flag handling follows the teacher's cmd/warp subcommand
// dispatch style (receiveCmd's flag.NewFlagSet per subcommand).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/resiliome/upload/internal/config"
	uerrors "github.com/resiliome/upload/internal/errors"
	"github.com/resiliome/upload/internal/ui"
	"github.com/resiliome/upload/internal/uploadclient"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "upload":
		uploadCmd(os.Args[2:])
	case "resume":
		uploadCmd(os.Args[2:]) // resume is the same engine call: init returns uploadedChunks either way
	case "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("uploadctl - resumable chunked upload client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  uploadctl upload <file> [flags]")
	fmt.Println("  uploadctl resume <file> [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --server string      upload server base URL (default http://localhost:4000)")
	fmt.Println("  --chunk-size int     chunk size in MB (default 5)")
	fmt.Println("  --concurrency int    max in-flight chunk uploads (default 3)")
	fmt.Println("  --retries int        max retries per chunk (default 3)")
}

func uploadCmd(args []string) {
	defaults := config.DefaultConfig()

	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	server := fs.String("server", defaults.APIBaseURL, "upload server base URL")
	chunkSizeMB := fs.Int("chunk-size", defaults.ChunkSizeMB, "chunk size in MB")
	concurrency := fs.Int("concurrency", defaults.MaxConcurrency, "max in-flight chunk uploads")
	retries := fs.Int("retries", defaults.MaxRetries, "max retries per chunk")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("upload requires a file path")
	}
	path := fs.Arg(0)

	stat, err := os.Stat(path)
	if err != nil {
		log.Fatal(uerrors.FileNotFoundError(path, err))
	}

	printer := ui.NewPrinter(os.Stdout, stat.Size())

	cfg := uploadclient.DefaultConfig(*server)
	cfg.ChunkSize = int64(*chunkSizeMB) * 1024 * 1024
	cfg.MaxConcurrency = *concurrency
	cfg.MaxRetries = *retries

	var lastUploaded int64
	cfg.OnProgress = func(p uploadclient.Progress) {
		uploaded := int64(p.ProgressPct / 100 * float64(stat.Size()))
		printer.Add(uploaded - lastUploaded)
		lastUploaded = uploaded
	}
	cfg.OnComplete = func(r uploadclient.Result) {
		printer.Finish()
		fmt.Printf("Upload complete: %s\nhash: %s\n", r.UploadID, r.Hash)
		if len(r.ZipContent) > 0 {
			fmt.Printf("archive entries: %v\n", r.ZipContent)
		}
	}
	cfg.OnError = func(err error) {
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
	}

	sess, err := uploadclient.NewSession(path, cfg)
	if err != nil {
		log.Fatal(uerrors.FileNotFoundError(path, err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		os.Exit(1)
	}
}
