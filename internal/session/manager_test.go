package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anbuneel/zenote-sub002/internal/config"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// stubRemote is an always-empty, always-offline remote.
type stubRemote struct{}

func (stubRemote) Ping(context.Context) error { return errors.New("offline") }
func (stubRemote) Close() error               { return nil }

func (stubRemote) NoteExists(context.Context, string) (bool, error) { return false, nil }
func (stubRemote) GetNote(context.Context, string) (*remote.Note, error) {
	return nil, shared.ErrNotFound
}
func (stubRemote) NoteUpdatedAt(context.Context, string) (time.Time, error) {
	return time.Time{}, shared.ErrNotFound
}
func (stubRemote) CreateNote(context.Context, *remote.Note, string) (time.Time, error) {
	return time.Time{}, nil
}
func (stubRemote) UpdateNote(context.Context, *remote.Note, string) (time.Time, error) {
	return time.Time{}, nil
}
func (stubRemote) SetNoteDeleted(context.Context, string, *time.Time, string) (time.Time, error) {
	return time.Time{}, nil
}
func (stubRemote) SetNotePinned(context.Context, string, bool, string) (time.Time, error) {
	return time.Time{}, nil
}
func (stubRemote) DeleteNote(context.Context, string, string) error { return nil }
func (stubRemote) NotesUpdatedAfter(context.Context, time.Time) ([]*remote.Note, error) {
	return nil, nil
}
func (stubRemote) TagExists(context.Context, string) (bool, error) { return false, nil }
func (stubRemote) GetTag(context.Context, string) (*remote.Tag, error) {
	return nil, shared.ErrNotFound
}
func (stubRemote) CreateTag(context.Context, *remote.Tag, string) (time.Time, error) {
	return time.Time{}, nil
}
func (stubRemote) UpdateTag(context.Context, *remote.Tag, string) (time.Time, error) {
	return time.Time{}, nil
}
func (stubRemote) DeleteTag(context.Context, string, string) error { return nil }
func (stubRemote) TagsUpdatedAfter(context.Context, time.Time) ([]*remote.Tag, error) {
	return nil, nil
}
func (stubRemote) AllTagIDs(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}
func (stubRemote) AddLink(context.Context, string, string, string) error    { return nil }
func (stubRemote) RemoveLink(context.Context, string, string, string) error { return nil }

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDir = t.TempDir()
	cfg.HydrationTimeout = time.Second

	m := NewManager(cfg, nil)
	m.newRemote = func(context.Context, string, string) (remote.Store, error) {
		return stubRemote{}, nil
	}
	return m
}

func TestUserIDFromToken(t *testing.T) {
	sub, err := UserIDFromToken(signedToken(t, "user-42"))
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)

	_, err = UserIDFromToken("not-a-jwt")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)

	_, err = UserIDFromToken(signedToken(t, ""))
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestLogin_BuildsWorkingSession(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Login(ctx, signedToken(t, "alice"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, "alice", s.UserID)
	assert.Same(t, s, m.Current())

	n, err := s.Notes.Create(ctx, "written offline", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	_, err = os.Stat(s.store.Path())
	assert.NoError(t, err)
}

func TestClose_KeepsDatabase(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Login(ctx, signedToken(t, "alice"))
	require.NoError(t, err)
	path := s.store.Path()

	require.NoError(t, m.Close())
	assert.Nil(t, m.Current())

	_, err = os.Stat(path)
	assert.NoError(t, err, "closing preserves local data for the next offline session")
}

func TestLogout_DestroysDatabase(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Login(ctx, signedToken(t, "alice"))
	require.NoError(t, err)
	path := s.store.Path()

	require.NoError(t, m.Logout())
	assert.Nil(t, m.Current())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "logout must remove the database file")
}

func TestLogout_WithoutSession(t *testing.T) {
	m := testManager(t)
	assert.ErrorIs(t, m.Logout(), shared.ErrNotLoggedIn)
	assert.ErrorIs(t, m.Close(), shared.ErrNotLoggedIn)
}

func TestLogin_SwitchingUsersClosesPrevious(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	a, err := m.Login(ctx, signedToken(t, "alice"))
	require.NoError(t, err)

	b, err := m.Login(ctx, signedToken(t, "bob"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.NotEqual(t, a.store.Path(), b.store.Path())
	assert.Same(t, b, m.Current())
}
