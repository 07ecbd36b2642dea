// Package notes provides the local-store repository for Note records.
package notes

import (
	"context"
	"time"

	"github.com/anbuneel/zenote-sub002/internal/models"
)

// Repository describes CRUD and query operations for notes in the local
// store. Implementations are backed by the per-user SQLite database and can
// be bound to either a plain handle or a transaction (dbx.DBTX).
type Repository interface {
	// Insert stores a new note.
	Insert(ctx context.Context, note *models.Note) error

	// Update overwrites all mutable fields of an existing note.
	// Returns shared.ErrNotFound if the note does not exist.
	Update(ctx context.Context, note *models.Note) error

	// GetByID returns a note by identifier, deleted or not.
	// Returns shared.ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*models.Note, error)

	// ListActive returns notes that are not soft-deleted, pinned first,
	// most recently updated next.
	ListActive(ctx context.Context) ([]*models.Note, error)

	// ListDeleted returns soft-deleted notes.
	ListDeleted(ctx context.Context) ([]*models.Note, error)

	// ListConflicted returns notes awaiting conflict resolution.
	ListConflicted(ctx context.Context) ([]*models.Note, error)

	// Delete permanently removes a note. Associated links go with it.
	Delete(ctx context.Context, id string) error

	// MaxLastSyncedAt returns the latest confirmed sync time across all
	// notes, or nil when nothing has ever synced (initial hydration case).
	MaxLastSyncedAt(ctx context.Context) (*time.Time, error)
}
