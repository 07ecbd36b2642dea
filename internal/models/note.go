// Package models defines the entities held in the local store: notes, tags,
// note-tag links, and the durable sync queue with its typed operation
// payloads.
package models

import "time"

// SyncStatus tracks how a locally stored entity relates to the remote store.
type SyncStatus string

const (
	// StatusSynced means the entity matches the last confirmed server state.
	StatusSynced SyncStatus = "synced"
	// StatusPending means the entity has local changes not yet pushed.
	StatusPending SyncStatus = "pending"
	// StatusConflict means a concurrent remote edit was detected; the entity
	// is frozen until the conflict is resolved explicitly.
	StatusConflict SyncStatus = "conflict"
)

// Note is a user-owned note. Content is an opaque blob to the sync layer;
// it is never diffed or merged.
type Note struct {
	ID        string
	Title     string
	Content   []byte
	Pinned    bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	SyncStatus      SyncStatus
	LastSyncedAt    *time.Time
	ServerUpdatedAt *time.Time
	LocalUpdatedAt  time.Time
}

// Active reports whether the note is not soft-deleted.
func (n *Note) Active() bool {
	return n.DeletedAt == nil
}

// Clone returns a deep copy. Used when a conflict snapshot must survive
// later mutations of the original.
func (n *Note) Clone() *Note {
	c := *n
	c.Content = append([]byte(nil), n.Content...)
	if n.DeletedAt != nil {
		t := *n.DeletedAt
		c.DeletedAt = &t
	}
	if n.LastSyncedAt != nil {
		t := *n.LastSyncedAt
		c.LastSyncedAt = &t
	}
	if n.ServerUpdatedAt != nil {
		t := *n.ServerUpdatedAt
		c.ServerUpdatedAt = &t
	}
	return &c
}
