// Package remote defines the server-side store the sync engine pushes to
// and pulls from, plus its PostgreSQL implementation. Every row is scoped
// to one owner and the server assigns updated_at on each write, so clocks
// on devices never order remote history.
package remote

import (
	"context"
	"time"
)

// Note is the server-side shape of a note.
type Note struct {
	ID        string
	Title     string
	Content   []byte
	Pinned    bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag is the server-side shape of a tag.
type Tag struct {
	ID        string
	Name      string
	Color     string
	UpdatedAt time.Time
}

// Store is the remote persistence surface used by the sync engine. Write
// methods take the queue entry's idempotency token; implementations attach
// it to the change feed so the originating device can recognize its own
// echo. Writes return the server-assigned updated_at where the engine
// needs it to stamp the local row.
type Store interface {
	// Ping reports whether the remote is reachable.
	Ping(ctx context.Context) error

	NoteExists(ctx context.Context, id string) (bool, error)
	GetNote(ctx context.Context, id string) (*Note, error)
	// NoteUpdatedAt is the cheap conflict probe used before pushing an
	// update.
	NoteUpdatedAt(ctx context.Context, id string) (time.Time, error)
	CreateNote(ctx context.Context, n *Note, token string) (time.Time, error)
	UpdateNote(ctx context.Context, n *Note, token string) (time.Time, error)
	SetNoteDeleted(ctx context.Context, id string, deletedAt *time.Time, token string) (time.Time, error)
	SetNotePinned(ctx context.Context, id string, pinned bool, token string) (time.Time, error)
	DeleteNote(ctx context.Context, id, token string) error
	NotesUpdatedAfter(ctx context.Context, after time.Time) ([]*Note, error)

	TagExists(ctx context.Context, id string) (bool, error)
	GetTag(ctx context.Context, id string) (*Tag, error)
	CreateTag(ctx context.Context, t *Tag, token string) (time.Time, error)
	UpdateTag(ctx context.Context, t *Tag, token string) (time.Time, error)
	DeleteTag(ctx context.Context, id, token string) error
	TagsUpdatedAfter(ctx context.Context, after time.Time) ([]*Tag, error)
	// AllTagIDs returns the full remote tag id set, used to detect tags
	// deleted on other devices.
	AllTagIDs(ctx context.Context) (map[string]struct{}, error)

	AddLink(ctx context.Context, noteID, tagID, token string) error
	RemoveLink(ctx context.Context, noteID, tagID, token string) error

	Close() error
}
