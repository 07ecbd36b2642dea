// Package store manages the per-user local SQLite database: opening,
// schema migration, closing, and full destruction on logout.
//
// One store instance exists per authenticated user. Switching users closes
// the prior instance and opens (or creates) the next one; state is never
// shared across users. Destroy removes the database file entirely so no
// residual data leaks to the next signed-in party on the same device.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the per-user SQLite database handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database for the given user under dir and runs
// pending migrations. The file name is derived from the user id so two
// users on the same device never share a database.
func Open(ctx context.Context, dir, userID string) (*Store, error) {
	if userID == "" {
		return nil, fmt.Errorf("store: empty user id")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path := filepath.Join(dir, "zenote-"+userID+".db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// foreign_keys so link rows go away with their note or tag; WAL and a
	// busy timeout because the engine and the write layer share the file.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for repositories and dbx.WithTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database handle, keeping the file on disk.
func (s *Store) Close() error {
	return s.db.Close()
}

// Destroy closes the database and removes its file. Used on logout.
func (s *Store) Destroy() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove database file: %w", err)
	}
	return nil
}
