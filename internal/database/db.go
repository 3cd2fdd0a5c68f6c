// Package database owns the SQLite file behind the sqlite profile driver:
// opening it, bringing the settings schema up to date, and the Store that
// reads and writes profile blobs.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/aiphone/internal/logger"
	"github.com/edgard/aiphone/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

const (
	driverName = "sqlite"

	// busyTimeoutPragma lets the maintenance task and a profile save wait on
	// each other instead of failing with SQLITE_BUSY.
	busyTimeoutPragma = "_pragma=busy_timeout(5000)"
)

// Open connects to the settings database at path, creating its directory if
// needed, and migrates the schema to the latest version.
func Open(ctx context.Context, path string, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = logger.Discard()
	}
	file := FilePath(path)
	log = log.With("component", "database", "file", file)

	if file != "" && file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("create settings database directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, driverName, withPragma(path))
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}

	// Profile saves are rare; a single connection keeps SQLite writes serial.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	version, err := migrateSettings(db.DB)
	if err != nil {
		Close(db, log)
		return nil, err
	}

	log.Info("Settings database ready", "schema_version", version)
	return db, nil
}

// Close closes db, logging rather than returning the error. Nil is a no-op.
func Close(db *sqlx.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if log == nil {
		log = logger.Discard()
	}
	if err := db.Close(); err != nil {
		log.Error("Failed to close settings database", "component", "database", "error", err)
	}
}

// migrateSettings applies the embedded settings migrations and returns the
// resulting schema version.
func migrateSettings(db *sql.DB) (uint, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("load settings migrations: %w", err)
	}
	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("prepare settings migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driverName, drv)
	if err != nil {
		return 0, fmt.Errorf("prepare settings migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate settings schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read settings schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("settings schema version %d is dirty", version)
	}
	return version, nil
}

// FilePath returns the file system path named by a database path, which
// may be a plain path or a "file:" URI with query parameters.
func FilePath(path string) string {
	path = strings.TrimPrefix(path, "file:")
	path, _, _ = strings.Cut(path, "?")
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}

// withPragma adds the busy timeout unless the caller already set pragmas.
func withPragma(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + busyTimeoutPragma
	}
	return path + "?" + busyTimeoutPragma
}
