// Command seed loads starter data (locations, users, items, messages) from a
// YAML file into the trading post database. Running it twice is harmless.
//
//	seed --db-path data/tradingpost.db --file configs/seed.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/sakif/trading-post/internal/logger"
	sqliteRepo "github.com/sakif/trading-post/internal/repository/sqlite"
	"github.com/sakif/trading-post/internal/seed"
)

func main() {
	flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	dbPath := flags.String("db-path", "data/tradingpost.db", "SQLite database file")
	file := flags.String("file", "configs/seed.yaml", "seed file to apply")
	logFormat := flags.String("log-format", "text", "log format: text or json")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	log, err := logger.New(os.Stderr, "info", *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	if err := run(context.Background(), *dbPath, *file, log); err != nil {
		log.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath, path string, log *slog.Logger) error {
	data, err := seed.Load(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := seed.Apply(ctx, db, data, log)
	if err != nil {
		return err
	}

	log.Info("seed applied",
		slog.String("file", path),
		slog.Int("locations", res.Locations),
		slog.Int("users", res.Users),
		slog.Int("items", res.Items),
		slog.Int("messages", res.Messages),
	)
	return nil
}
