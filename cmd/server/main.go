// Package main implements the entry point for the receipt API server:
// an asynchronous pipeline that accepts receipt images, extracts structured
// expense data through an LLM and appends the results to a ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/ledgerlift/receipt-api/internal/config"
	"github.com/ledgerlift/receipt-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command instead of the server: up, down, status, version")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("receipt-api: %v", err)
	}
}

// run loads configuration, wires the application and either executes a
// migration command or serves until interrupted.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	logger.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Int("worker_count", cfg.Pipeline.WorkerCount))

	db, err := setupAppDatabase(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if migrateCmd != "" {
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Error("failed to close database", "error", closeErr)
			}
		}()
		return runMigrations(db, migrateCmd, logger)
	}

	// The server always runs against a fully migrated schema.
	if err := runMigrations(db, "up", logger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, logger, db)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database", "error", closeErr)
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// setupAppLogger configures the process-wide structured logger.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return l, nil
}
