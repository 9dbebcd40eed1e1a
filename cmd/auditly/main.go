package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/auditly/internal/archive"
	"github.com/zombor/auditly/internal/catalog"
	"github.com/zombor/auditly/internal/comparison"
	"github.com/zombor/auditly/internal/server"
	"github.com/zombor/auditly/internal/upload"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("auditly")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "auditly.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./returns", "Photo storage directory path")
		comparisonURL = fs.StringLong("comparison-url", "http://127.0.0.1:5000", "Image comparison service base URL")
		uploadTimeout = fs.DurationLong("upload-timeout", 0, "Timeout for one image upload (0 disables)")
		previewMaxDim = fs.IntLong("preview-max-dimension", 0, "Longest preview edge in pixels (0 keeps the original size)")
		sessionTTL    = fs.DurationLong("session-ttl", 2*time.Hour, "How long an idle return session is kept")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("AUDITLY"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...", "path", *dbPath)
	db, err := archive.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "path", *storagePath)
	store, err := archive.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize comparison client
	slog.Info("Initializing comparison client...", "url", *comparisonURL, "timeout", *uploadTimeout)
	client, err := comparison.NewHTTPClient(*comparisonURL, *uploadTimeout)
	if err != nil {
		slog.Error("Failed to initialize comparison client", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(server.Config{
		Catalog: catalog.Default(),
		Client:  client,
		Archive: archive.NewService(db, store),
		UploadOptions: upload.Options{
			MaxPreviewDimension: *previewMaxDim,
		},
		SessionTTL: *sessionTTL,
		BasicAuth: server.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		},
	})

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			slog.Error("Server error", "error", err)
			db.Close()
			os.Exit(1)
		}
	case <-sigChan:
	}

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
