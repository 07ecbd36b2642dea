package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/logging"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/repositories/queue"
	"github.com/anbuneel/zenote-sub002/internal/repositories/tags"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// TagService is the offline write layer for tags. Tags sync last-write-wins
// and never enter conflict resolution.
type TagService interface {
	Create(ctx context.Context, name string, color models.TagColor) (*models.Tag, error)
	Update(ctx context.Context, id, name string, color models.TagColor) (*models.Tag, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Tag, error)
	List(ctx context.Context) ([]*models.Tag, error)
}

type tagService struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// NewTagService builds the tag write layer over the per-user store handle.
func NewTagService(db *sql.DB, logger logging.Logger) TagService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &tagService{db: db, logger: logger, now: time.Now}
}

func (s *tagService) Create(ctx context.Context, name string, color models.TagColor) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", shared.ErrValidation)
	}
	if color == "" {
		color = models.ColorSlate
	}
	if !color.Valid() {
		return nil, fmt.Errorf("%w: unknown tag color %q", shared.ErrValidation, color)
	}

	now := s.now().UTC()
	t := &models.Tag{
		ID:             uuid.NewString(),
		Name:           name,
		Color:          color,
		CreatedAt:      now,
		SyncStatus:     models.StatusPending,
		LocalUpdatedAt: now,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := tags.NewSQLiteRepository(tx).Insert(ctx, t); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.OpCreate, t.ID,
			&models.TagPayload{Name: t.Name, Color: t.Color}, false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return t, nil
}

func (s *tagService) Update(ctx context.Context, id, name string, color models.TagColor) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", shared.ErrValidation)
	}
	if !color.Valid() {
		return nil, fmt.Errorf("%w: unknown tag color %q", shared.ErrValidation, color)
	}

	var updated *models.Tag
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tr := tags.NewSQLiteRepository(tx)
		t, err := tr.GetByID(ctx, id)
		if err != nil {
			return err
		}
		t.Name = name
		t.Color = color
		t.LocalUpdatedAt = s.now().UTC()
		if t.SyncStatus == models.StatusSynced {
			t.SyncStatus = models.StatusPending
		}

		if err := tr.Update(ctx, t); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.OpUpdate, t.ID,
			&models.TagPayload{Name: t.Name, Color: t.Color}, true); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	return updated, nil
}

// Delete removes the tag, its links, and any pending link entries touching
// it, then queues the remote delete.
func (s *tagService) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := tags.NewSQLiteRepository(tx).Delete(ctx, id); err != nil {
			return err
		}
		qr := queue.NewSQLiteRepository(tx)
		if err := qr.RemoveLinkOpsFor(ctx, id); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.OpDelete, id, nil, false)
	})
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return nil
}

func (s *tagService) Get(ctx context.Context, id string) (*models.Tag, error) {
	return tags.NewSQLiteRepository(s.db).GetByID(ctx, id)
}

func (s *tagService) List(ctx context.Context) ([]*models.Tag, error) {
	return tags.NewSQLiteRepository(s.db).List(ctx)
}

func (s *tagService) enqueue(ctx context.Context, tx dbx.DBTX, op models.Op, tagID string, payload any, compact bool) error {
	qr := queue.NewSQLiteRepository(tx)
	if compact {
		if err := qr.CompactUpdates(ctx, models.EntityTag, tagID); err != nil {
			return err
		}
	}
	e, err := models.NewQueueEntry(op, models.EntityTag, tagID, payload, s.now().UTC())
	if err != nil {
		return err
	}
	return qr.Append(ctx, e)
}
