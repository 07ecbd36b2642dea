// Package queue provides the durable sync-queue repository. The queue is
// the only source of truth for what must still reach the server.
package queue

import (
	"context"

	"github.com/anbuneel/zenote-sub002/internal/models"
)

// Repository describes operations on the sync_queue collection.
type Repository interface {
	// Append adds an entry at the tail of the queue.
	Append(ctx context.Context, entry *models.QueueEntry) error

	// All returns every entry in enqueue (FIFO) order. Payloads are
	// structurally validated; a malformed row is an error, not a panic.
	All(ctx context.Context) ([]*models.QueueEntry, error)

	// CompactUpdates deletes earlier still-pending update entries for the
	// given entity, so rapid consecutive edits collapse to one round trip.
	// Create and delete entries are never touched.
	CompactUpdates(ctx context.Context, entity models.Entity, entityID string) error

	// Remove deletes one entry by sequence number.
	Remove(ctx context.Context, seq int64) error

	// IncrementRetries bumps the retry counter of one entry.
	IncrementRetries(ctx context.Context, seq int64) error

	// RemoveLinkOpsFor deletes pending link entries touching the given note
	// or tag id. Used when the endpoint entity is removed locally.
	RemoveLinkOpsFor(ctx context.Context, entityID string) error

	// Len returns the number of queued entries.
	Len(ctx context.Context) (int, error)
}
