// Package session ties one authenticated user to their local store, sync
// engine, and realtime listener, and tears all of it down again on logout
// so nothing leaks into the next sign-in on the same device.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/anbuneel/zenote-sub002/internal/config"
	"github.com/anbuneel/zenote-sub002/internal/engine"
	"github.com/anbuneel/zenote-sub002/internal/logging"
	"github.com/anbuneel/zenote-sub002/internal/realtime"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/services"
	"github.com/anbuneel/zenote-sub002/internal/shared"
	"github.com/anbuneel/zenote-sub002/internal/store"
)

// Session is everything bound to one signed-in user.
type Session struct {
	UserID string
	Notes  services.NoteService
	Tags   services.TagService
	Engine *engine.Engine

	store  *store.Store
	remote remote.Store
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// remoteFactory is swapped in tests to avoid a real PostgreSQL.
type remoteFactory func(ctx context.Context, dsn, ownerID string) (remote.Store, error)

// Manager owns the current session. At most one session exists at a time;
// logging in while one is active closes it first.
type Manager struct {
	cfg       *config.Config
	logger    logging.Logger
	newRemote remoteFactory

	mu      sync.Mutex
	current *Session
}

// NewManager builds a manager over the given configuration.
func NewManager(cfg *config.Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		newRemote: func(ctx context.Context, dsn, ownerID string) (remote.Store, error) {
			return remote.NewPostgresStore(ctx, dsn, ownerID)
		},
	}
}

// Current returns the active session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Login derives the user id from the access token's subject claim, opens
// the per-user store and remote connection, hydrates local data within the
// configured timeout (proceeding with local data on expiry), and starts
// the sync triggers and the realtime listener.
func (m *Manager) Login(ctx context.Context, accessToken string) (*Session, error) {
	userID, err := UserIDFromToken(accessToken)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.closeLocked(); err != nil {
			return nil, fmt.Errorf("failed to close previous session: %w", err)
		}
	}

	st, err := store.Open(ctx, m.cfg.DatabaseDir, userID)
	if err != nil {
		return nil, err
	}

	rs, err := m.newRemote(ctx, m.cfg.RemoteDSN, userID)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	logger := m.logger.With("user", userID)
	eng := engine.New(st.DB(), rs, engine.Options{
		SyncInterval:  m.cfg.SyncInterval,
		ProbeInterval: m.cfg.ProbeInterval,
		EchoGrace:     m.cfg.EchoGrace,
		Logger:        logger,
		OnConflict: func(c *engine.Conflict) {
			logger.Warn(ctx, "conflict needs resolution", "note", c.ID)
		},
	})

	if err := eng.Hydrate(ctx, m.cfg.HydrationTimeout); err != nil {
		logger.Warn(ctx, "hydration incomplete, continuing with local data", "error", err)
	}
	if err := eng.LoadConflicts(ctx); err != nil {
		logger.Warn(ctx, "could not restore conflict list", "error", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		UserID: userID,
		Notes:  services.NewNoteService(st.DB(), logger),
		Tags:   services.NewTagService(st.DB(), logger),
		Engine: eng,
		store:  st,
		remote: rs,
		cancel: cancel,
	}

	listener := realtime.New(m.cfg.RemoteDSN, userID, eng, logger)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		eng.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		_ = listener.Run(runCtx)
	}()

	// flush anything queued from a previous offline session
	eng.RequestSync()

	m.current = s
	m.logger.Info(ctx, "session started", "user", userID)
	return s, nil
}

// Close stops the current session but keeps the local database, so the
// same user can resume offline later.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return shared.ErrNotLoggedIn
	}
	return m.closeLocked()
}

// Logout stops the current session and destroys its local database. No
// residual notes remain for the next user of this device.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return shared.ErrNotLoggedIn
	}

	s := m.current
	s.stop()
	m.current = nil

	if err := s.store.Destroy(); err != nil {
		return err
	}
	m.logger.Info(context.Background(), "session ended, local data removed", "user", s.UserID)
	return nil
}

func (m *Manager) closeLocked() error {
	s := m.current
	s.stop()
	m.current = nil
	return s.store.Close()
}

// stop halts background work and clears per-session sync state.
func (s *Session) stop() {
	s.cancel()
	s.wg.Wait()
	s.Engine.Echo().ClearAll()
	s.Engine.ClearConflicts()
	_ = s.remote.Close()
}
