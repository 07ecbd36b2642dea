package engine

import (
	"context"
	"errors"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/repositories/links"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
	"github.com/anbuneel/zenote-sub002/internal/repositories/tags"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// ApplyEvent folds one change-feed event into the local store. Events
// carrying a token this device marked pending are its own writes coming
// back and are dropped. Entities with unsynced local work are never
// overwritten; the next sync cycle reconciles them.
func (e *Engine) ApplyEvent(ctx context.Context, ev remote.ChangeEvent) error {
	if e.echo.IsPending(ev.Token) {
		e.logger.Debug(ctx, "suppressed own change echo", "entity", ev.Entity, "id", ev.ID)
		return nil
	}

	switch ev.Entity {
	case "note":
		return e.applyNoteEvent(ctx, ev)
	case "tag":
		return e.applyTagEvent(ctx, ev)
	case "link":
		return e.applyLinkEvent(ctx, ev)
	default:
		e.logger.Warn(ctx, "unknown change feed entity", "entity", ev.Entity)
		return nil
	}
}

func (e *Engine) applyNoteEvent(ctx context.Context, ev remote.ChangeEvent) error {
	if ev.Op == "delete" {
		return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			nr := notes.NewSQLiteRepository(tx)
			local, err := nr.GetByID(ctx, ev.ID)
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if local.SyncStatus != models.StatusSynced {
				return nil
			}
			return nr.Delete(ctx, ev.ID)
		})
	}

	rn, err := e.remote.GetNote(ctx, ev.ID)
	if errors.Is(err, shared.ErrNotFound) {
		// deleted again before we fetched it; the delete event follows
		return nil
	}
	if err != nil {
		return err
	}
	_, err = e.applyRemoteNote(ctx, rn)
	return err
}

func (e *Engine) applyTagEvent(ctx context.Context, ev remote.ChangeEvent) error {
	if ev.Op == "delete" {
		tr := tags.NewSQLiteRepository(e.db)
		local, err := tr.GetByID(ctx, ev.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if local.SyncStatus != models.StatusSynced {
			return nil
		}
		return tr.Delete(ctx, ev.ID)
	}

	rt, err := e.remote.GetTag(ctx, ev.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = e.applyRemoteTag(ctx, rt)
	return err
}

func (e *Engine) applyLinkEvent(ctx context.Context, ev remote.ChangeEvent) error {
	noteID, tagID, ok := models.SplitLinkID(ev.ID)
	if !ok {
		e.logger.Warn(ctx, "malformed link id in change feed", "id", ev.ID)
		return nil
	}
	lr := links.NewSQLiteRepository(e.db)

	if ev.Op == "delete" {
		err := lr.Delete(ctx, noteID, tagID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}

	// both endpoints must exist locally before linking them
	if _, err := notes.NewSQLiteRepository(e.db).GetByID(ctx, noteID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := tags.NewSQLiteRepository(e.db).GetByID(ctx, tagID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}

	err := lr.Insert(ctx, &models.NoteTag{
		NoteID:     noteID,
		TagID:      tagID,
		CreatedAt:  e.now().UTC(),
		SyncStatus: models.StatusSynced,
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		return lr.SetStatus(ctx, noteID, tagID, models.StatusSynced)
	}
	return err
}
