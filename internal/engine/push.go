package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/repositories/links"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
	"github.com/anbuneel/zenote-sub002/internal/repositories/queue"
	"github.com/anbuneel/zenote-sub002/internal/repositories/tags"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// errEntryObsolete marks a queue entry whose subject no longer exists
// locally; it is discarded without a remote write.
var errEntryObsolete = errors.New("queue entry obsolete")

// push replays the queue against the remote. Entries are snapshot once and
// ordered so creates land before operations that reference them; each
// entry settles independently and a failure never aborts the rest.
func (e *Engine) push(ctx context.Context, res *Result) error {
	entries, err := queue.NewSQLiteRepository(e.db).All(ctx)
	if err != nil {
		return err
	}

	for _, entry := range orderForPush(entries) {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.pushEntry(ctx, entry, res)
	}
	return nil
}

func (e *Engine) pushEntry(ctx context.Context, entry *models.QueueEntry, res *Result) {
	// entries for a conflicted note are held, untouched, until the user
	// resolves it; dispatching them would mutate the remote side of the
	// conflict
	if entry.Entity == models.EntityNote {
		local, err := notes.NewSQLiteRepository(e.db).GetByID(ctx, entry.EntityID)
		if err == nil && local.SyncStatus == models.StatusConflict {
			return
		}
	}

	// marked before the network call so the echo cannot race the response
	e.echo.MarkPending(entry.Token)
	defer e.echo.ReleaseAfterGrace(entry.Token)

	serverTS, err := e.dispatch(ctx, entry)
	switch {
	case err == nil:
		if err := e.settleSuccess(ctx, entry, serverTS); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("settle %s %s: %w", entry.Op, entry.EntityID, err))
			return
		}
		res.Pushed++

	case errors.Is(err, errConflictDetected):
		res.Conflicts++

	case errors.Is(err, errEntryObsolete):
		if err := queue.NewSQLiteRepository(e.db).Remove(ctx, entry.Seq); err != nil && !errors.Is(err, shared.ErrNotFound) {
			res.Errors = append(res.Errors, err)
		}

	default:
		e.settleFailure(ctx, entry, err, res)
	}
}

// dispatch performs the remote write for one entry. The returned timestamp
// is the server-assigned updated_at for operations that produce one, zero
// otherwise.
func (e *Engine) dispatch(ctx context.Context, entry *models.QueueEntry) (time.Time, error) {
	switch entry.Entity {
	case models.EntityNote:
		return e.dispatchNote(ctx, entry)
	case models.EntityTag:
		return e.dispatchTag(ctx, entry)
	case models.EntityLink:
		return time.Time{}, e.dispatchLink(ctx, entry)
	default:
		return time.Time{}, fmt.Errorf("unknown queue entity %q", entry.Entity)
	}
}

func (e *Engine) dispatchNote(ctx context.Context, entry *models.QueueEntry) (time.Time, error) {
	switch entry.Op {
	case models.OpCreate:
		return e.pushNoteCreate(ctx, entry)

	case models.OpUpdate:
		return e.pushNoteUpdate(ctx, entry)

	case models.OpSoftDelete:
		p, err := entry.SoftDeletePayload()
		if err != nil {
			return time.Time{}, err
		}
		return e.remote.SetNoteDeleted(ctx, entry.EntityID, &p.DeletedAt, entry.Token)

	case models.OpRestore:
		return e.remote.SetNoteDeleted(ctx, entry.EntityID, nil, entry.Token)

	case models.OpPin:
		p, err := entry.PinPayload()
		if err != nil {
			return time.Time{}, err
		}
		return e.remote.SetNotePinned(ctx, entry.EntityID, p.Pinned, entry.Token)

	case models.OpDelete:
		return time.Time{}, e.remote.DeleteNote(ctx, entry.EntityID, entry.Token)

	default:
		return time.Time{}, fmt.Errorf("unknown note op %q", entry.Op)
	}
}

// pushNoteCreate is idempotent: a retried create whose first attempt
// reached the server degrades to reading the existing row's timestamp.
func (e *Engine) pushNoteCreate(ctx context.Context, entry *models.QueueEntry) (time.Time, error) {
	exists, err := e.remote.NoteExists(ctx, entry.EntityID)
	if err != nil {
		return time.Time{}, err
	}
	if exists {
		return e.remote.NoteUpdatedAt(ctx, entry.EntityID)
	}

	p, err := entry.NotePayload()
	if err != nil {
		return time.Time{}, err
	}
	createdAt := entry.EnqueuedAt
	if local, err := notes.NewSQLiteRepository(e.db).GetByID(ctx, entry.EntityID); err == nil {
		createdAt = local.CreatedAt
	}
	return e.remote.CreateNote(ctx, &remote.Note{
		ID:        entry.EntityID,
		Title:     p.Title,
		Content:   p.Content,
		Pinned:    p.Pinned,
		CreatedAt: createdAt,
	}, entry.Token)
}

// pushNoteUpdate probes the remote updated_at first. A remote edit newer
// than what this device last synced means someone else changed the note in
// the meantime; the entry becomes a conflict instead of silently clobbering
// their work. A note deleted remotely is recreated from the local edit.
func (e *Engine) pushNoteUpdate(ctx context.Context, entry *models.QueueEntry) (time.Time, error) {
	p, err := entry.NotePayload()
	if err != nil {
		return time.Time{}, err
	}

	remoteTS, err := e.remote.NoteUpdatedAt(ctx, entry.EntityID)
	if errors.Is(err, shared.ErrNotFound) {
		local, lerr := notes.NewSQLiteRepository(e.db).GetByID(ctx, entry.EntityID)
		createdAt := entry.EnqueuedAt
		if lerr == nil {
			createdAt = local.CreatedAt
		}
		return e.remote.CreateNote(ctx, &remote.Note{
			ID: entry.EntityID, Title: p.Title, Content: p.Content, Pinned: p.Pinned, CreatedAt: createdAt,
		}, entry.Token)
	}
	if err != nil {
		return time.Time{}, err
	}

	local, err := notes.NewSQLiteRepository(e.db).GetByID(ctx, entry.EntityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// permanently deleted locally; the queued delete follows
			return time.Time{}, errEntryObsolete
		}
		return time.Time{}, err
	}

	if local.LastSyncedAt != nil && remoteTS.After(*local.LastSyncedAt) {
		return time.Time{}, e.registerConflict(ctx, entry, local)
	}

	return e.remote.UpdateNote(ctx, &remote.Note{
		ID: entry.EntityID, Title: p.Title, Content: p.Content, Pinned: p.Pinned,
	}, entry.Token)
}

func (e *Engine) registerConflict(ctx context.Context, entry *models.QueueEntry, local *models.Note) error {
	rn, err := e.remote.GetNote(ctx, entry.EntityID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := queue.NewSQLiteRepository(tx).Remove(ctx, entry.Seq); err != nil {
			return err
		}
		local.SyncStatus = models.StatusConflict
		return notes.NewSQLiteRepository(tx).Update(ctx, local)
	})
	if err != nil {
		return err
	}

	c := &Conflict{
		ID:         entry.EntityID,
		Local:      local.Clone(),
		Remote:     rn,
		DetectedAt: e.now().UTC(),
	}
	e.conflicts.add(c)
	e.logger.Warn(ctx, "sync conflict detected", "note", entry.EntityID)
	if e.onConflict != nil {
		e.onConflict(c)
	}
	return errConflictDetected
}

// dispatchTag pushes tag operations last-write-wins: a missing remote row
// on update is recreated, an existing row on create is overwritten.
func (e *Engine) dispatchTag(ctx context.Context, entry *models.QueueEntry) (time.Time, error) {
	switch entry.Op {
	case models.OpCreate, models.OpUpdate:
		p, err := entry.TagPayload()
		if err != nil {
			return time.Time{}, err
		}
		rt := &remote.Tag{ID: entry.EntityID, Name: p.Name, Color: string(p.Color)}

		exists, err := e.remote.TagExists(ctx, entry.EntityID)
		if err != nil {
			return time.Time{}, err
		}
		if exists {
			return e.remote.UpdateTag(ctx, rt, entry.Token)
		}
		return e.remote.CreateTag(ctx, rt, entry.Token)

	case models.OpDelete:
		return time.Time{}, e.remote.DeleteTag(ctx, entry.EntityID, entry.Token)

	default:
		return time.Time{}, fmt.Errorf("unknown tag op %q", entry.Op)
	}
}

func (e *Engine) dispatchLink(ctx context.Context, entry *models.QueueEntry) error {
	p, err := entry.LinkPayload()
	if err != nil {
		return err
	}
	switch entry.Op {
	case models.OpAddTag:
		return e.remote.AddLink(ctx, p.NoteID, p.TagID, entry.Token)
	case models.OpRemoveTag:
		return e.remote.RemoveLink(ctx, p.NoteID, p.TagID, entry.Token)
	default:
		return fmt.Errorf("unknown link op %q", entry.Op)
	}
}

// settleSuccess removes the entry and stamps the local entity synced, in
// one transaction. The synced stamp is skipped when the user edited the
// entity again while the push was in flight; the newer queue entry will
// settle it.
func (e *Engine) settleSuccess(ctx context.Context, entry *models.QueueEntry, serverTS time.Time) error {
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := queue.NewSQLiteRepository(tx).Remove(ctx, entry.Seq); err != nil {
			return err
		}

		switch {
		case entry.Entity == models.EntityNote && entry.Op != models.OpDelete:
			return e.stampNoteSynced(ctx, tx, entry, serverTS)
		case entry.Entity == models.EntityTag && entry.Op != models.OpDelete:
			return e.stampTagSynced(ctx, tx, entry, serverTS)
		case entry.Entity == models.EntityLink && entry.Op == models.OpAddTag:
			p, err := entry.LinkPayload()
			if err != nil {
				return err
			}
			err = links.NewSQLiteRepository(tx).SetStatus(ctx, p.NoteID, p.TagID, models.StatusSynced)
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		default:
			return nil
		}
	})
}

func (e *Engine) stampNoteSynced(ctx context.Context, tx dbx.DBTX, entry *models.QueueEntry, serverTS time.Time) error {
	nr := notes.NewSQLiteRepository(tx)
	n, err := nr.GetByID(ctx, entry.EntityID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if n.SyncStatus == models.StatusConflict {
		// the row froze into a conflict while this entry was in flight;
		// resolution owns its sync stamps now
		return nil
	}
	n.LastSyncedAt = &serverTS
	n.ServerUpdatedAt = &serverTS
	if n.SyncStatus == models.StatusPending && !n.LocalUpdatedAt.After(entry.EnqueuedAt) {
		n.SyncStatus = models.StatusSynced
	}
	return nr.Update(ctx, n)
}

func (e *Engine) stampTagSynced(ctx context.Context, tx dbx.DBTX, entry *models.QueueEntry, serverTS time.Time) error {
	tr := tags.NewSQLiteRepository(tx)
	t, err := tr.GetByID(ctx, entry.EntityID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	t.LastSyncedAt = &serverTS
	t.ServerUpdatedAt = &serverTS
	if t.SyncStatus == models.StatusPending && !t.LocalUpdatedAt.After(entry.EnqueuedAt) {
		t.SyncStatus = models.StatusSynced
	}
	return tr.Update(ctx, t)
}

// settleFailure applies the retry policy: transient failures are retried
// up to the ceiling, everything else drops the entry immediately.
func (e *Engine) settleFailure(ctx context.Context, entry *models.QueueEntry, pushErr error, res *Result) {
	qr := queue.NewSQLiteRepository(e.db)

	if remote.IsRetryable(pushErr) {
		if entry.Retries+1 < e.maxRetries {
			if err := qr.IncrementRetries(ctx, entry.Seq); err != nil {
				res.Errors = append(res.Errors, err)
				return
			}
			res.Errors = append(res.Errors, fmt.Errorf("%s %s %s (attempt %d): %w",
				entry.Op, entry.Entity, entry.EntityID, entry.Retries+1, pushErr))
			return
		}

		if err := qr.Remove(ctx, entry.Seq); err != nil {
			res.Errors = append(res.Errors, err)
			return
		}
		res.Failed++
		res.Errors = append(res.Errors, fmt.Errorf("%w: %s %s %s: %v",
			ErrMaxRetries, entry.Op, entry.Entity, entry.EntityID, pushErr))
		e.logger.Error(ctx, "queue entry dropped after retries",
			"op", string(entry.Op), "entity", string(entry.Entity), "id", entry.EntityID)
		return
	}

	if err := qr.Remove(ctx, entry.Seq); err != nil {
		res.Errors = append(res.Errors, err)
		return
	}
	res.Failed++
	res.Errors = append(res.Errors, fmt.Errorf("%s %s %s: %w",
		entry.Op, entry.Entity, entry.EntityID, pushErr))
	e.logger.Error(ctx, "queue entry rejected by remote",
		"op", string(entry.Op), "entity", string(entry.Entity), "id", entry.EntityID, "error", pushErr)
}
