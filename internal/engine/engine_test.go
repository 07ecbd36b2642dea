package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
	"github.com/anbuneel/zenote-sub002/internal/repositories/queue"
	"github.com/anbuneel/zenote-sub002/internal/repositories/tags"
	"github.com/anbuneel/zenote-sub002/internal/services"
	"github.com/anbuneel/zenote-sub002/internal/shared"
	"github.com/anbuneel/zenote-sub002/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory remote.Store. Writes stamp a monotonically
// increasing server clock; failWith, when set, is returned by every call
// except Ping and Close.
type fakeRemote struct {
	mu       sync.Mutex
	notes    map[string]*remote.Note
	tags     map[string]*remote.Tag
	links    map[string]bool
	clock    time.Time
	tokens   []string
	pingErr  error
	failWith error

	// enteredRead/releaseRead, when set, gate NoteExists for the
	// single-flight test.
	enteredRead chan struct{}
	releaseRead chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		notes: make(map[string]*remote.Note),
		tags:  make(map[string]*remote.Tag),
		links: make(map[string]bool),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRemote) next() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// bump simulates another device editing a note.
func (f *fakeRemote) bump(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[id].UpdatedAt = f.next()
}

func (f *fakeRemote) Ping(context.Context) error { return f.pingErr }
func (f *fakeRemote) Close() error               { return nil }

func (f *fakeRemote) NoteExists(_ context.Context, id string) (bool, error) {
	if f.enteredRead != nil {
		f.enteredRead <- struct{}{}
		<-f.releaseRead
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	_, ok := f.notes[id]
	return ok, nil
}

func (f *fakeRemote) GetNote(_ context.Context, id string) (*remote.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	n, ok := f.notes[id]
	if !ok {
		return nil, sharedNotFound()
	}
	cp := *n
	return &cp, nil
}

func (f *fakeRemote) NoteUpdatedAt(_ context.Context, id string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return time.Time{}, f.failWith
	}
	n, ok := f.notes[id]
	if !ok {
		return time.Time{}, sharedNotFound()
	}
	return n.UpdatedAt, nil
}

func (f *fakeRemote) CreateNote(_ context.Context, n *remote.Note, token string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return time.Time{}, f.failWith
	}
	cp := *n
	cp.UpdatedAt = f.next()
	f.notes[n.ID] = &cp
	f.tokens = append(f.tokens, token)
	return cp.UpdatedAt, nil
}

func (f *fakeRemote) UpdateNote(_ context.Context, n *remote.Note, token string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return time.Time{}, f.failWith
	}
	cur, ok := f.notes[n.ID]
	if !ok {
		return time.Time{}, sharedNotFound()
	}
	cur.Title, cur.Content, cur.Pinned = n.Title, n.Content, n.Pinned
	cur.UpdatedAt = f.next()
	f.tokens = append(f.tokens, token)
	return cur.UpdatedAt, nil
}

func (f *fakeRemote) SetNoteDeleted(_ context.Context, id string, deletedAt *time.Time, token string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return time.Time{}, f.failWith
	}
	cur, ok := f.notes[id]
	if !ok {
		return time.Time{}, sharedNotFound()
	}
	cur.DeletedAt = deletedAt
	cur.UpdatedAt = f.next()
	f.tokens = append(f.tokens, token)
	return cur.UpdatedAt, nil
}

func (f *fakeRemote) SetNotePinned(_ context.Context, id string, pinned bool, token string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return time.Time{}, f.failWith
	}
	cur, ok := f.notes[id]
	if !ok {
		return time.Time{}, sharedNotFound()
	}
	cur.Pinned = pinned
	cur.UpdatedAt = f.next()
	f.tokens = append(f.tokens, token)
	return cur.UpdatedAt, nil
}

func (f *fakeRemote) DeleteNote(_ context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.notes, id)
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeRemote) NotesUpdatedAfter(_ context.Context, after time.Time) ([]*remote.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*remote.Note
	for _, n := range f.notes {
		if n.UpdatedAt.After(after) {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRemote) TagExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return false, f.failWith
	}
	_, ok := f.tags[id]
	return ok, nil
}

func (f *fakeRemote) GetTag(_ context.Context, id string) (*remote.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tags[id]
	if !ok {
		return nil, sharedNotFound()
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRemote) CreateTag(_ context.Context, t *remote.Tag, token string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return time.Time{}, f.failWith
	}
	cp := *t
	cp.UpdatedAt = f.next()
	f.tags[t.ID] = &cp
	f.tokens = append(f.tokens, token)
	return cp.UpdatedAt, nil
}

func (f *fakeRemote) UpdateTag(_ context.Context, t *remote.Tag, token string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return time.Time{}, f.failWith
	}
	cur, ok := f.tags[t.ID]
	if !ok {
		return time.Time{}, sharedNotFound()
	}
	cur.Name, cur.Color = t.Name, t.Color
	cur.UpdatedAt = f.next()
	f.tokens = append(f.tokens, token)
	return cur.UpdatedAt, nil
}

func (f *fakeRemote) DeleteTag(_ context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.tags, id)
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeRemote) TagsUpdatedAfter(_ context.Context, after time.Time) ([]*remote.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*remote.Tag
	for _, t := range f.tags {
		if t.UpdatedAt.After(after) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRemote) AllTagIDs(context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	ids := make(map[string]struct{}, len(f.tags))
	for id := range f.tags {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (f *fakeRemote) AddLink(_ context.Context, noteID, tagID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.links[noteID+"/"+tagID] = true
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeRemote) RemoveLink(_ context.Context, noteID, tagID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.links, noteID+"/"+tagID)
	f.tokens = append(f.tokens, token)
	return nil
}

var _ remote.Store = (*fakeRemote)(nil)

func sharedNotFound() error { return shared.ErrNotFound }

func setupEngine(t *testing.T, opts Options) (*Engine, *fakeRemote, *sql.DB) {
	t.Helper()
	s, err := store.Open(context.Background(), t.TempDir(), "test-user")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	if opts.EchoGrace == 0 {
		opts.EchoGrace = time.Hour
	}
	f := newFakeRemote()
	return New(s.DB(), f, opts), f, s.DB()
}

func queueLen(t *testing.T, db *sql.DB) int {
	t.Helper()
	n, err := queue.NewSQLiteRepository(db).Len(context.Background())
	require.NoError(t, err)
	return n
}

func TestSync_PushesCreateAndStampsSynced(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, "hello", []byte("world"))
	require.NoError(t, err)

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)
	assert.Empty(t, res.Errors)
	assert.Zero(t, queueLen(t, db))

	rn, ok := f.notes[n.ID]
	require.True(t, ok)
	assert.Equal(t, "hello", rn.Title)

	local, err := notes.NewSQLiteRepository(db).GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, local.SyncStatus)
	require.NotNil(t, local.LastSyncedAt)
	assert.Equal(t, rn.UpdatedAt.UnixNano(), local.LastSyncedAt.UnixNano())

	require.Len(t, f.tokens, 1)
	assert.True(t, eng.Echo().IsPending(f.tokens[0]),
		"token stays suppressed until the grace window expires")
}

func TestSync_PullSkippedWithoutWatermark(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	ctx := context.Background()

	ts := f.next()
	f.notes["remote-1"] = &remote.Note{ID: "remote-1", Title: "elsewhere", UpdatedAt: ts}

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Pulled, "no watermark means hydration owns the first fill")

	_, err = notes.NewSQLiteRepository(db).GetByID(ctx, "remote-1")
	assert.Error(t, err)
}

func TestSync_PullAppliesRemoteChanges(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, "mine", nil)
	require.NoError(t, err)
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	// another device creates a note after our watermark
	ts := f.next()
	f.notes["theirs"] = &remote.Note{ID: "theirs", Title: "from elsewhere", CreatedAt: ts, UpdatedAt: ts}

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pulled)

	pulled, err := notes.NewSQLiteRepository(db).GetByID(ctx, "theirs")
	require.NoError(t, err)
	assert.Equal(t, "from elsewhere", pulled.Title)
	assert.Equal(t, models.StatusSynced, pulled.SyncStatus)

	mine, err := notes.NewSQLiteRepository(db).GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", mine.Title)
}

func TestSync_PullNeverOverwritesPendingLocal(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, "v1", nil)
	require.NoError(t, err)
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	// local edit while another device also edits
	_, err = svc.Update(ctx, n.ID, "local-v2", nil)
	require.NoError(t, err)
	f.bump(n.ID)
	f.notes[n.ID].Title = "remote-v2"

	// pull must leave the pending local edit alone; push then flags the
	// conflict
	res, err := eng.Sync(ctx)
	require.NoError(t, err)

	local, err := notes.NewSQLiteRepository(db).GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "local-v2", local.Title)
	assert.Equal(t, 1, res.Conflicts)
}

func TestSync_ConflictOnConcurrentEdit(t *testing.T) {
	var notified *Conflict
	eng, f, db := setupEngine(t, Options{OnConflict: func(c *Conflict) { notified = c }})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, "base", nil)
	require.NoError(t, err)
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	_, err = svc.Update(ctx, n.ID, "local edit", nil)
	require.NoError(t, err)
	f.bump(n.ID)
	f.notes[n.ID].Title = "their edit"

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	assert.Zero(t, queueLen(t, db), "conflicted entry leaves the queue")

	local, err := notes.NewSQLiteRepository(db).GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflict, local.SyncStatus)
	assert.Equal(t, "local edit", local.Title, "local content preserved for resolution")

	require.NotNil(t, notified)
	assert.Equal(t, n.ID, notified.ID)
	assert.Equal(t, "their edit", notified.Remote.Title)

	require.Len(t, eng.Conflicts(), 1)

	// further edits are refused until resolved
	_, err = svc.Update(ctx, n.ID, "another", nil)
	assert.Error(t, err)
}

func TestResolve_KeepRemote(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n := mustConflict(t, eng, f, svc)

	require.NoError(t, eng.Resolve(ctx, n, KeepRemote))
	assert.Empty(t, eng.Conflicts())

	local, err := notes.NewSQLiteRepository(db).GetByID(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, "their edit", local.Title)
	assert.Equal(t, models.StatusSynced, local.SyncStatus)
}

func TestResolve_KeepLocal(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n := mustConflict(t, eng, f, svc)

	require.NoError(t, eng.Resolve(ctx, n, KeepLocal))
	assert.Empty(t, eng.Conflicts())

	assert.Equal(t, "local edit", f.notes[n].Title, "local content pushed to remote")

	local, err := notes.NewSQLiteRepository(db).GetByID(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, local.SyncStatus)
}

func TestResolve_KeepBoth(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n := mustConflict(t, eng, f, svc)

	require.NoError(t, eng.Resolve(ctx, n, KeepBoth))

	original, err := notes.NewSQLiteRepository(db).GetByID(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, "their edit", original.Title)
	assert.Equal(t, models.StatusSynced, original.SyncStatus)

	all, err := notes.NewSQLiteRepository(db).ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	var copyNote *models.Note
	for _, cand := range all {
		if cand.ID != n {
			copyNote = cand
		}
	}
	require.NotNil(t, copyNote)
	assert.Equal(t, "local edit (copy)", copyNote.Title)
	assert.Equal(t, models.StatusPending, copyNote.SyncStatus)
	assert.Equal(t, 1, queueLen(t, db), "copy queued for create")
}

func TestResolve_UnknownConflict(t *testing.T) {
	eng, _, _ := setupEngine(t, Options{})
	err := eng.Resolve(context.Background(), "nope", KeepLocal)
	assert.Error(t, err)
}

// mustConflict creates a note, syncs it, then makes both sides edit it and
// syncs again, returning the conflicted note's id.
func mustConflict(t *testing.T, eng *Engine, f *fakeRemote, svc services.NoteService) string {
	t.Helper()
	ctx := context.Background()

	n, err := svc.Create(ctx, "base", nil)
	require.NoError(t, err)
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	_, err = svc.Update(ctx, n.ID, "local edit", nil)
	require.NoError(t, err)
	f.bump(n.ID)
	f.notes[n.ID].Title = "their edit"

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Conflicts)
	return n.ID
}

func TestPush_ConflictHoldsRemainingNoteEntries(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, "base", nil)
	require.NoError(t, err)
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	// two local ops queue up while another device edits the same note
	_, err = svc.Update(ctx, n.ID, "local edit", nil)
	require.NoError(t, err)
	_, err = svc.TogglePin(ctx, n.ID)
	require.NoError(t, err)
	f.bump(n.ID)
	f.notes[n.ID].Title = "their edit"

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	assert.Zero(t, res.Pushed)

	local, err := notes.NewSQLiteRepository(db).GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflict, local.SyncStatus)

	assert.False(t, f.notes[n.ID].Pinned,
		"queued ops must not reach the remote while the conflict is unresolved")
	assert.Equal(t, "their edit", f.notes[n.ID].Title)
	assert.Equal(t, 1, queueLen(t, db), "held entries stay queued, without a retry charge")

	qes, err := queue.NewSQLiteRepository(db).All(ctx)
	require.NoError(t, err)
	require.Len(t, qes, 1)
	assert.Equal(t, models.OpPin, qes[0].Op)
	assert.Zero(t, qes[0].Retries)
}

func TestPush_RetryableFailureRespectsCeiling(t *testing.T) {
	eng, f, db := setupEngine(t, Options{MaxRetries: 2})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "stuck", nil)
	require.NoError(t, err)

	f.failWith = &remote.Error{Kind: remote.KindRetryable, Err: errors.New("connection reset")}

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Failed)
	assert.NotEmpty(t, res.Errors)
	assert.Equal(t, 1, queueLen(t, db), "entry survives a transient failure")

	res, err = eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, queueLen(t, db), "entry dropped at the retry ceiling")

	found := false
	for _, e := range res.Errors {
		if errors.Is(e, ErrMaxRetries) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPush_NonRetryableDropsImmediately(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "bad", nil)
	require.NoError(t, err)

	f.failWith = &remote.Error{Kind: remote.KindNonRetryable, Err: errors.New("constraint violation")}

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, queueLen(t, db))
}

func TestPush_OfflineEditsFlushOnReconnect(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	noteSvc := services.NewNoteService(db, nil)
	tagSvc := services.NewTagService(db, nil)
	ctx := context.Background()

	f.failWith = &remote.Error{Kind: remote.KindRetryable, Err: errors.New("no route to host")}

	n, err := noteSvc.Create(ctx, "offline note", nil)
	require.NoError(t, err)
	tag, err := tagSvc.Create(ctx, "offline-tag", models.ColorTeal)
	require.NoError(t, err)
	require.NoError(t, noteSvc.AddTag(ctx, n.ID, tag.ID))

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Pushed)
	assert.Equal(t, 3, queueLen(t, db))

	f.failWith = nil

	res, err = eng.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pushed)
	assert.Zero(t, queueLen(t, db))
	assert.True(t, f.links[n.ID+"/"+tag.ID])
	assert.Contains(t, f.tags, tag.ID)
}

func TestSync_TagsDeletedRemotelyDisappear(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	noteSvc := services.NewNoteService(db, nil)
	tagSvc := services.NewTagService(db, nil)
	ctx := context.Background()

	// a synced baseline is needed so pull runs at all
	_, err := noteSvc.Create(ctx, "anchor", nil)
	require.NoError(t, err)
	tag, err := tagSvc.Create(ctx, "doomed", models.ColorRed)
	require.NoError(t, err)
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	// another device deletes the tag
	delete(f.tags, tag.ID)

	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	_, err = tags.NewSQLiteRepository(db).GetByID(ctx, tag.ID)
	assert.Error(t, err)
}

func TestSync_SingleFlight(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "gated", nil)
	require.NoError(t, err)

	f.enteredRead = make(chan struct{}, 1)
	f.releaseRead = make(chan struct{})

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := eng.Sync(ctx)
		first <- outcome{r, err}
	}()

	<-f.enteredRead

	second := make(chan outcome, 1)
	go func() {
		r, err := eng.Sync(ctx)
		second <- outcome{r, err}
	}()

	close(f.releaseRead)

	a := <-first
	b := <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Same(t, a.res, b.res, "concurrent callers share one cycle's result")
}

func TestHydrate_FillsEmptyStore(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	ctx := context.Background()

	ts := f.next()
	f.notes["n1"] = &remote.Note{ID: "n1", Title: "first", CreatedAt: ts, UpdatedAt: ts}
	ts2 := f.next()
	f.tags["t1"] = &remote.Tag{ID: "t1", Name: "inbox", Color: "blue", UpdatedAt: ts2}

	require.NoError(t, eng.Hydrate(ctx, 5*time.Second))

	n, err := notes.NewSQLiteRepository(db).GetByID(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, n.SyncStatus)

	tg, err := tags.NewSQLiteRepository(db).GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "inbox", tg.Name)
}

func TestHydrate_SkipsOnceWatermarkExists(t *testing.T) {
	eng, f, db := setupEngine(t, Options{})
	svc := services.NewNoteService(db, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "anchor", nil)
	require.NoError(t, err)
	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	// a second login must not refetch everything, or block on the network
	f.failWith = &remote.Error{Kind: remote.KindRetryable, Err: errors.New("unreachable")}

	require.NoError(t, eng.Hydrate(ctx, 200*time.Millisecond),
		"a store with a watermark was hydrated before and skips the remote")
}

func TestHydrate_TimesOutFailOpen(t *testing.T) {
	eng, f, _ := setupEngine(t, Options{})
	f.failWith = &remote.Error{Kind: remote.KindRetryable, Err: errors.New("unreachable")}

	err := eng.Hydrate(context.Background(), 300*time.Millisecond)
	assert.Error(t, err, "caller logs and proceeds with local data")
}
