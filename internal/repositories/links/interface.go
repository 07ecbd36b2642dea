// Package links provides the local-store repository for note-tag links.
package links

import (
	"context"

	"github.com/anbuneel/zenote-sub002/internal/models"
)

// Repository describes operations on the note_tags join collection.
type Repository interface {
	// Insert stores a new link. Returns shared.ErrAlreadyExists when the
	// pair is already linked.
	Insert(ctx context.Context, link *models.NoteTag) error

	// Get returns the link for the (noteID, tagID) pair.
	Get(ctx context.Context, noteID, tagID string) (*models.NoteTag, error)

	// ListByNote returns all links for a note.
	ListByNote(ctx context.Context, noteID string) ([]*models.NoteTag, error)

	// SetStatus updates the sync status of one link.
	SetStatus(ctx context.Context, noteID, tagID string, status models.SyncStatus) error

	// Delete removes one link.
	Delete(ctx context.Context, noteID, tagID string) error
}
