package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
)

// migrationsDir is the default location of the SQL migration files relative
// to the working directory.
const migrationsDir = "migrations"

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct{}

// Printf implements goose.Logger by forwarding messages to slog.Info
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements goose.Logger by forwarding to slog.Error. It does NOT
// call os.Exit; the error propagates to main which handles the exit.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

// runMigrations executes the given goose command against the database.
// Supported commands: up, down, status, version.
func runMigrations(db *sql.DB, command string, logger *slog.Logger) error {
	dir, err := resolveMigrationsDir()
	if err != nil {
		return err
	}

	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	logger.Info("running migrations",
		slog.String("command", command),
		slog.String("dir", dir))

	switch command {
	case "up":
		err = goose.Up(db, dir)
	case "down":
		err = goose.Down(db, dir)
	case "status":
		err = goose.Status(db, dir)
	case "version":
		err = goose.Version(db, dir)
	default:
		return fmt.Errorf("unknown migration command: %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	logger.Info("migration command completed", slog.String("command", command))
	return nil
}

// resolveMigrationsDir locates the migrations directory relative to the
// working directory, falling back to the executable's directory so the
// server can be started from either.
func resolveMigrationsDir() (string, error) {
	if info, err := os.Stat(migrationsDir); err == nil && info.IsDir() {
		return migrationsDir, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}
	alt := filepath.Join(filepath.Dir(exe), migrationsDir)
	if info, err := os.Stat(alt); err == nil && info.IsDir() {
		return alt, nil
	}
	return "", fmt.Errorf("migrations directory not found at %s or %s", migrationsDir, alt)
}
