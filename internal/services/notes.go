// Package services implements the offline write layer. Every mutation
// applies to the local store and appends exactly one sync-queue entry
// inside the same transaction, so the store and the queue can never
// diverge. Callers get the updated entity back synchronously and never
// wait on network I/O.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/logging"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/repositories/links"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
	"github.com/anbuneel/zenote-sub002/internal/repositories/queue"
	"github.com/anbuneel/zenote-sub002/internal/repositories/tags"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// NoteService is the offline write layer for notes and their tag links.
type NoteService interface {
	Create(ctx context.Context, title string, content []byte) (*models.Note, error)
	Update(ctx context.Context, id, title string, content []byte) (*models.Note, error)
	SoftDelete(ctx context.Context, id string) (*models.Note, error)
	Restore(ctx context.Context, id string) (*models.Note, error)
	Delete(ctx context.Context, id string) error
	TogglePin(ctx context.Context, id string) (*models.Note, error)
	AddTag(ctx context.Context, noteID, tagID string) error
	RemoveTag(ctx context.Context, noteID, tagID string) error
	Get(ctx context.Context, id string) (*models.Note, error)
	List(ctx context.Context) ([]*models.Note, error)
	ListDeleted(ctx context.Context) ([]*models.Note, error)
	ListTags(ctx context.Context, noteID string) ([]*models.Tag, error)
	Import(ctx context.Context, records []ImportRecord, progress func(done, total int)) ([]*models.Note, error)
}

type noteService struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// NewNoteService builds the write layer over the per-user store handle.
func NewNoteService(db *sql.DB, logger logging.Logger) NoteService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &noteService{db: db, logger: logger, now: time.Now}
}

func (s *noteService) Create(ctx context.Context, title string, content []byte) (*models.Note, error) {
	now := s.now().UTC()
	n := &models.Note{
		ID:             uuid.NewString(),
		Title:          title,
		Content:        content,
		CreatedAt:      now,
		UpdatedAt:      now,
		SyncStatus:     models.StatusPending,
		LocalUpdatedAt: now,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := notes.NewSQLiteRepository(tx).Insert(ctx, n); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.OpCreate, models.EntityNote, n.ID, &models.NotePayload{
			Title:     n.Title,
			Content:   n.Content,
			Pinned:    n.Pinned,
			UpdatedAt: n.LocalUpdatedAt,
		}, false)
	})
	if err != nil {
		s.logger.Error(ctx, "note create failed", "error", err)
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

func (s *noteService) Update(ctx context.Context, id, title string, content []byte) (*models.Note, error) {
	var updated *models.Note
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.loadEditable(ctx, tx, id)
		if err != nil {
			return err
		}
		n.Title = title
		n.Content = content
		s.stampLocalEdit(n)

		if err := notes.NewSQLiteRepository(tx).Update(ctx, n); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.OpUpdate, models.EntityNote, n.ID, &models.NotePayload{
			Title:     n.Title,
			Content:   n.Content,
			Pinned:    n.Pinned,
			UpdatedAt: n.LocalUpdatedAt,
		}, true); err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return updated, nil
}

func (s *noteService) SoftDelete(ctx context.Context, id string) (*models.Note, error) {
	var updated *models.Note
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.loadEditable(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		n.DeletedAt = &now
		s.stampLocalEdit(n)

		if err := notes.NewSQLiteRepository(tx).Update(ctx, n); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.OpSoftDelete, models.EntityNote, n.ID,
			&models.SoftDeletePayload{DeletedAt: now}, false); err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to soft-delete note: %w", err)
	}
	return updated, nil
}

func (s *noteService) Restore(ctx context.Context, id string) (*models.Note, error) {
	var updated *models.Note
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.loadEditable(ctx, tx, id)
		if err != nil {
			return err
		}
		n.DeletedAt = nil
		s.stampLocalEdit(n)

		if err := notes.NewSQLiteRepository(tx).Update(ctx, n); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.OpRestore, models.EntityNote, n.ID, nil, false); err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to restore note: %w", err)
	}
	return updated, nil
}

// Delete permanently removes the note and its links from the local store and
// queues the remote delete. Earlier queued operations for the note become
// no-ops when they reach the server after the row is gone.
func (s *noteService) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.loadEditable(ctx, tx, id); err != nil {
			return err
		}
		if err := notes.NewSQLiteRepository(tx).Delete(ctx, id); err != nil {
			return err
		}
		qr := queue.NewSQLiteRepository(tx)
		if err := qr.RemoveLinkOpsFor(ctx, id); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.OpDelete, models.EntityNote, id, nil, false)
	})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func (s *noteService) TogglePin(ctx context.Context, id string) (*models.Note, error) {
	var updated *models.Note
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.loadEditable(ctx, tx, id)
		if err != nil {
			return err
		}
		n.Pinned = !n.Pinned
		s.stampLocalEdit(n)

		if err := notes.NewSQLiteRepository(tx).Update(ctx, n); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.OpPin, models.EntityNote, n.ID,
			&models.PinPayload{Pinned: n.Pinned}, false); err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to toggle pin: %w", err)
	}
	return updated, nil
}

func (s *noteService) AddTag(ctx context.Context, noteID, tagID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.loadEditable(ctx, tx, noteID); err != nil {
			return err
		}
		if _, err := tags.NewSQLiteRepository(tx).GetByID(ctx, tagID); err != nil {
			return err
		}

		now := s.now().UTC()
		link := &models.NoteTag{
			NoteID:     noteID,
			TagID:      tagID,
			CreatedAt:  now,
			SyncStatus: models.StatusPending,
		}
		if err := links.NewSQLiteRepository(tx).Insert(ctx, link); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.OpAddTag, models.EntityLink, models.LinkID(noteID, tagID),
			&models.LinkPayload{NoteID: noteID, TagID: tagID}, false)
	})
	if err != nil {
		return fmt.Errorf("failed to add tag: %w", err)
	}
	return nil
}

func (s *noteService) RemoveTag(ctx context.Context, noteID, tagID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lr := links.NewSQLiteRepository(tx)
		if _, err := lr.Get(ctx, noteID, tagID); err != nil {
			return err
		}
		if err := lr.Delete(ctx, noteID, tagID); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.OpRemoveTag, models.EntityLink, models.LinkID(noteID, tagID),
			&models.LinkPayload{NoteID: noteID, TagID: tagID}, false)
	})
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	return nil
}

func (s *noteService) Get(ctx context.Context, id string) (*models.Note, error) {
	return notes.NewSQLiteRepository(s.db).GetByID(ctx, id)
}

func (s *noteService) List(ctx context.Context) ([]*models.Note, error) {
	return notes.NewSQLiteRepository(s.db).ListActive(ctx)
}

func (s *noteService) ListDeleted(ctx context.Context) ([]*models.Note, error) {
	return notes.NewSQLiteRepository(s.db).ListDeleted(ctx)
}

func (s *noteService) ListTags(ctx context.Context, noteID string) ([]*models.Tag, error) {
	linked, err := links.NewSQLiteRepository(s.db).ListByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	tr := tags.NewSQLiteRepository(s.db)
	result := make([]*models.Tag, 0, len(linked))
	for _, l := range linked {
		t, err := tr.GetByID(ctx, l.TagID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

// loadEditable fetches a note and refuses ordinary edits while a conflict
// is unresolved.
func (s *noteService) loadEditable(ctx context.Context, tx dbx.DBTX, id string) (*models.Note, error) {
	n, err := notes.NewSQLiteRepository(tx).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.SyncStatus == models.StatusConflict {
		return nil, shared.ErrConflictPending
	}
	return n, nil
}

// stampLocalEdit records the modification time and flips synced entities to
// pending. Pending stays pending; conflicts never reach this point.
func (s *noteService) stampLocalEdit(n *models.Note) {
	now := s.now().UTC()
	n.UpdatedAt = now
	n.LocalUpdatedAt = now
	if n.SyncStatus == models.StatusSynced {
		n.SyncStatus = models.StatusPending
	}
}

// enqueue appends one queue entry, compacting earlier pending updates for
// the same entity first when compact is set.
func (s *noteService) enqueue(ctx context.Context, tx dbx.DBTX, op models.Op, entity models.Entity, entityID string, payload any, compact bool) error {
	qr := queue.NewSQLiteRepository(tx)
	if compact {
		if err := qr.CompactUpdates(ctx, entity, entityID); err != nil {
			return err
		}
	}
	e, err := models.NewQueueEntry(op, entity, entityID, payload, s.now().UTC())
	if err != nil {
		return err
	}
	return qr.Append(ctx, e)
}
