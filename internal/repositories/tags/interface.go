// Package tags provides the local-store repository for Tag records.
package tags

import (
	"context"

	"github.com/anbuneel/zenote-sub002/internal/models"
)

// Repository describes CRUD and query operations for tags in the local store.
type Repository interface {
	// Insert stores a new tag. Returns shared.ErrAlreadyExists when the
	// name is taken.
	Insert(ctx context.Context, tag *models.Tag) error

	// Update overwrites all mutable fields of an existing tag.
	Update(ctx context.Context, tag *models.Tag) error

	// GetByID returns a tag by identifier.
	GetByID(ctx context.Context, id string) (*models.Tag, error)

	// GetByName returns a tag by its unique name.
	GetByName(ctx context.Context, name string) (*models.Tag, error)

	// List returns all tags ordered by name.
	List(ctx context.Context) ([]*models.Tag, error)

	// Delete permanently removes a tag. Associated links go with it.
	Delete(ctx context.Context, id string) error
}
