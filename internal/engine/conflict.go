package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
	"github.com/anbuneel/zenote-sub002/internal/repositories/queue"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// Choice selects how a conflict is resolved.
type Choice string

const (
	KeepLocal  Choice = "local"
	KeepRemote Choice = "remote"
	KeepBoth   Choice = "both"
)

// Conflict is a note whose remote copy changed after this device last
// synced it but before this device pushed its own edit. It stays here
// until the user picks a side.
type Conflict struct {
	ID         string
	Local      *models.Note
	Remote     *remote.Note
	DetectedAt time.Time
}

// conflictRegistry holds unresolved conflicts for the session.
type conflictRegistry struct {
	mu   sync.Mutex
	byID map[string]*Conflict
}

func newConflictRegistry() *conflictRegistry {
	return &conflictRegistry{byID: make(map[string]*Conflict)}
}

func (r *conflictRegistry) add(c *Conflict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
}

func (r *conflictRegistry) get(id string) (*Conflict, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *conflictRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

func (r *conflictRegistry) list() []*Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conflict, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

func (r *conflictRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*Conflict)
}

// Conflicts returns unresolved conflicts, oldest first.
func (e *Engine) Conflicts() []*Conflict {
	return e.conflicts.list()
}

// LoadConflicts rebuilds the registry from notes persisted in conflict
// state, fetching the current remote copy of each. A new process sees the
// same conflict surface the one that detected them did.
func (e *Engine) LoadConflicts(ctx context.Context) error {
	conflicted, err := notes.NewSQLiteRepository(e.db).ListConflicted(ctx)
	if err != nil {
		return err
	}
	for _, n := range conflicted {
		if _, ok := e.conflicts.get(n.ID); ok {
			continue
		}
		rn, err := e.remote.GetNote(ctx, n.ID)
		if errors.Is(err, shared.ErrNotFound) {
			// remote side vanished; local content stands alone
			rn = &remote.Note{ID: n.ID, DeletedAt: n.DeletedAt, UpdatedAt: e.now().UTC()}
		} else if err != nil {
			return err
		}
		e.conflicts.add(&Conflict{
			ID:         n.ID,
			Local:      n.Clone(),
			Remote:     rn,
			DetectedAt: e.now().UTC(),
		})
	}
	return nil
}

// ClearConflicts drops all unresolved conflicts. Used on logout.
func (e *Engine) ClearConflicts() {
	e.conflicts.clear()
}

// Resolve settles one conflict:
//
//   - KeepLocal pushes the local content to the remote, or queues an
//     update when the remote is unreachable.
//   - KeepRemote overwrites local fields with the remote copy.
//   - KeepBoth keeps the remote copy in the original note and moves the
//     local content into a brand-new note queued for create.
//
// On success the conflict leaves the registry and the note becomes
// editable again.
func (e *Engine) Resolve(ctx context.Context, id string, choice Choice) error {
	c, ok := e.conflicts.get(id)
	if !ok {
		return fmt.Errorf("%w: no unresolved conflict for note %s", shared.ErrNotFound, id)
	}

	var err error
	switch choice {
	case KeepLocal:
		err = e.resolveKeepLocal(ctx, c)
	case KeepRemote:
		err = e.resolveKeepRemote(ctx, c)
	case KeepBoth:
		err = e.resolveKeepBoth(ctx, c)
	default:
		return fmt.Errorf("%w: unknown resolution choice %q", shared.ErrValidation, choice)
	}
	if err != nil {
		return err
	}

	e.conflicts.remove(id)
	e.logger.Info(ctx, "conflict resolved", "note", id, "choice", string(choice))
	return nil
}

func (e *Engine) resolveKeepLocal(ctx context.Context, c *Conflict) error {
	n, err := notes.NewSQLiteRepository(e.db).GetByID(ctx, c.ID)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	e.echo.MarkPending(token)
	defer e.echo.ReleaseAfterGrace(token)

	serverUpdatedAt, pushErr := e.remote.UpdateNote(ctx, &remote.Note{
		ID: n.ID, Title: n.Title, Content: n.Content, Pinned: n.Pinned,
	}, token)

	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		nr := notes.NewSQLiteRepository(tx)
		switch {
		case pushErr == nil:
			n.SyncStatus = models.StatusSynced
			n.LastSyncedAt = &serverUpdatedAt
			n.ServerUpdatedAt = &serverUpdatedAt
		case remote.IsRetryable(pushErr):
			// offline: queue the winning content for the next push
			entry, err := models.NewQueueEntry(models.OpUpdate, models.EntityNote, n.ID, &models.NotePayload{
				Title: n.Title, Content: n.Content, Pinned: n.Pinned, UpdatedAt: n.LocalUpdatedAt,
			}, e.now().UTC())
			if err != nil {
				return err
			}
			if err := queue.NewSQLiteRepository(tx).Append(ctx, entry); err != nil {
				return err
			}
			n.SyncStatus = models.StatusPending
		default:
			return pushErr
		}
		return nr.Update(ctx, n)
	})
}

func (e *Engine) resolveKeepRemote(ctx context.Context, c *Conflict) error {
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		nr := notes.NewSQLiteRepository(tx)
		n, err := nr.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}
		applyRemoteNoteFields(n, c.Remote)
		return nr.Update(ctx, n)
	})
}

func (e *Engine) resolveKeepBoth(ctx context.Context, c *Conflict) error {
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		nr := notes.NewSQLiteRepository(tx)
		n, err := nr.GetByID(ctx, c.ID)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		copyNote := &models.Note{
			ID:             uuid.NewString(),
			Title:          n.Title + " (copy)",
			Content:        n.Content,
			Pinned:         n.Pinned,
			CreatedAt:      now,
			UpdatedAt:      now,
			SyncStatus:     models.StatusPending,
			LocalUpdatedAt: now,
		}
		if err := nr.Insert(ctx, copyNote); err != nil {
			return err
		}
		entry, err := models.NewQueueEntry(models.OpCreate, models.EntityNote, copyNote.ID, &models.NotePayload{
			Title: copyNote.Title, Content: copyNote.Content, Pinned: copyNote.Pinned, UpdatedAt: now,
		}, now)
		if err != nil {
			return err
		}
		if err := queue.NewSQLiteRepository(tx).Append(ctx, entry); err != nil {
			return err
		}

		applyRemoteNoteFields(n, c.Remote)
		return nr.Update(ctx, n)
	})
}

// applyRemoteNoteFields overwrites local content with the remote copy and
// stamps the note synced at the remote's updated_at.
func applyRemoteNoteFields(n *models.Note, rn *remote.Note) {
	n.Title = rn.Title
	n.Content = rn.Content
	n.Pinned = rn.Pinned
	n.DeletedAt = rn.DeletedAt
	n.UpdatedAt = rn.UpdatedAt
	n.SyncStatus = models.StatusSynced
	ts := rn.UpdatedAt
	n.LastSyncedAt = &ts
	n.ServerUpdatedAt = &ts
}

var errConflictDetected = errors.New("concurrent remote edit")
