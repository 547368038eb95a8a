// Package main is the entry point for the trading post web server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (.env file, environment, flags, optional YAML file)
// 2. Create the logger
// 3. Build the server and start it
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/sakif/trading-post/internal/config"
	"github.com/sakif/trading-post/internal/logger"
	"github.com/sakif/trading-post/internal/server"
)

func main() {
	// === 1. LOAD .env ===
	// A .env file is a development convenience. Real deployments set the
	// environment directly, so a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	// === 2. READ CONFIGURATION ===
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	// === 3. SET UP LOGGING ===
	log, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	// === 4. DATABASE DIRECTORY ===
	// os.MkdirAll is a no-op when the directory already exists.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			log.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.GoogleClientID == "" {
		log.Warn("google-client-id not set; sign-in will fail at the provider")
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
