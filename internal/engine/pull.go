package engine

import (
	"context"
	"errors"
	"time"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
	"github.com/anbuneel/zenote-sub002/internal/repositories/tags"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// pull applies remote changes newer than the local watermark. A device
// that has never synced has no watermark and skips the pull entirely;
// hydration covers the first fill.
func (e *Engine) pull(ctx context.Context, res *Result) error {
	watermark, err := notes.NewSQLiteRepository(e.db).MaxLastSyncedAt(ctx)
	if err != nil {
		return err
	}
	if watermark == nil {
		return nil
	}
	return e.applyRemoteChanges(ctx, *watermark, res)
}

// applyRemoteChanges fetches notes and tags updated after since and folds
// them into the local store. Local rows with unsynced work (pending or
// conflict) are never overwritten.
func (e *Engine) applyRemoteChanges(ctx context.Context, since time.Time, res *Result) error {
	remoteNotes, err := e.remote.NotesUpdatedAfter(ctx, since)
	if err != nil {
		return err
	}
	for _, rn := range remoteNotes {
		applied, err := e.applyRemoteNote(ctx, rn)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		if applied {
			res.Pulled++
		}
	}

	remoteTags, err := e.remote.TagsUpdatedAfter(ctx, since)
	if err != nil {
		return err
	}
	for _, rt := range remoteTags {
		applied, err := e.applyRemoteTag(ctx, rt)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		if applied {
			res.Pulled++
		}
	}

	return e.dropRemotelyDeletedTags(ctx, res)
}

func (e *Engine) applyRemoteNote(ctx context.Context, rn *remote.Note) (bool, error) {
	applied := false
	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		nr := notes.NewSQLiteRepository(tx)
		local, err := nr.GetByID(ctx, rn.ID)
		if errors.Is(err, shared.ErrNotFound) {
			ts := rn.UpdatedAt
			applied = true
			return nr.Insert(ctx, &models.Note{
				ID:              rn.ID,
				Title:           rn.Title,
				Content:         rn.Content,
				Pinned:          rn.Pinned,
				DeletedAt:       rn.DeletedAt,
				CreatedAt:       rn.CreatedAt,
				UpdatedAt:       rn.UpdatedAt,
				SyncStatus:      models.StatusSynced,
				LastSyncedAt:    &ts,
				ServerUpdatedAt: &ts,
				LocalUpdatedAt:  rn.UpdatedAt,
			})
		}
		if err != nil {
			return err
		}
		if local.SyncStatus != models.StatusSynced {
			// unsynced local work wins until push settles it
			return nil
		}
		applyRemoteNoteFields(local, rn)
		applied = true
		return nr.Update(ctx, local)
	})
	return applied, err
}

func (e *Engine) applyRemoteTag(ctx context.Context, rt *remote.Tag) (bool, error) {
	applied := false
	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tr := tags.NewSQLiteRepository(tx)
		local, err := tr.GetByID(ctx, rt.ID)
		if errors.Is(err, shared.ErrNotFound) {
			ts := rt.UpdatedAt
			applied = true
			return tr.Insert(ctx, &models.Tag{
				ID:              rt.ID,
				Name:            rt.Name,
				Color:           models.TagColor(rt.Color),
				CreatedAt:       rt.UpdatedAt,
				SyncStatus:      models.StatusSynced,
				LastSyncedAt:    &ts,
				ServerUpdatedAt: &ts,
				LocalUpdatedAt:  rt.UpdatedAt,
			})
		}
		if err != nil {
			return err
		}
		if local.SyncStatus != models.StatusSynced {
			return nil
		}
		ts := rt.UpdatedAt
		local.Name = rt.Name
		local.Color = models.TagColor(rt.Color)
		local.LastSyncedAt = &ts
		local.ServerUpdatedAt = &ts
		applied = true
		return tr.Update(ctx, local)
	})
	return applied, err
}

// dropRemotelyDeletedTags removes local synced tags that no longer exist
// remotely. Tags with unsynced local work are left for push to recreate.
func (e *Engine) dropRemotelyDeletedTags(ctx context.Context, res *Result) error {
	remoteIDs, err := e.remote.AllTagIDs(ctx)
	if err != nil {
		return err
	}
	local, err := tags.NewSQLiteRepository(e.db).List(ctx)
	if err != nil {
		return err
	}
	for _, t := range local {
		if t.SyncStatus != models.StatusSynced {
			continue
		}
		if _, ok := remoteIDs[t.ID]; ok {
			continue
		}
		if err := tags.NewSQLiteRepository(e.db).Delete(ctx, t.ID); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Pulled++
	}
	return nil
}
