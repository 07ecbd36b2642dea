// Package engine implements the bidirectional sync cycle between the local
// store and the remote store: pull remote changes down, push queued local
// operations up, detect conflicts, and suppress change-feed echo of this
// device's own writes.
//
// One Engine exists per session. A cycle is single-flight: concurrent Sync
// calls share the in-flight cycle's result instead of starting another.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/anbuneel/zenote-sub002/internal/logging"
	"github.com/anbuneel/zenote-sub002/internal/remote"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
)

// ErrMaxRetries marks a queue entry dropped after exhausting its retry
// budget.
var ErrMaxRetries = errors.New("max retries exceeded")

const (
	defaultSyncInterval  = 30 * time.Second
	defaultProbeInterval = 5 * time.Second
	defaultEchoGrace     = 2 * time.Second
	defaultMaxRetries    = 5
)

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	SyncInterval  time.Duration
	ProbeInterval time.Duration
	EchoGrace     time.Duration
	MaxRetries    int

	// OnConflict is invoked when a push detects a concurrent remote edit.
	// Called outside any transaction; may be nil.
	OnConflict func(*Conflict)

	Logger logging.Logger
	Clock  func() time.Time
}

// Result aggregates one sync cycle. Individual entry failures land in
// Errors instead of aborting the cycle.
type Result struct {
	Pulled    int
	Pushed    int
	Failed    int
	Conflicts int
	Errors    []error
	Duration  time.Duration
}

type flight struct {
	done chan struct{}
	res  *Result
	err  error
}

// Engine drives sync for one session.
type Engine struct {
	db     *sql.DB
	remote remote.Store
	echo   *EchoSuppressor
	logger logging.Logger
	now    func() time.Time

	syncInterval  time.Duration
	probeInterval time.Duration
	maxRetries    int
	onConflict    func(*Conflict)

	mu       sync.Mutex
	inflight *flight

	conflicts *conflictRegistry

	kick chan struct{}
}

// New builds an engine over the per-user local database and the remote
// store.
func New(db *sql.DB, rs remote.Store, opts Options) *Engine {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = defaultProbeInterval
	}
	if opts.EchoGrace <= 0 {
		opts.EchoGrace = defaultEchoGrace
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Engine{
		db:            db,
		remote:        rs,
		echo:          NewEchoSuppressor(opts.EchoGrace),
		logger:        opts.Logger,
		now:           opts.Clock,
		syncInterval:  opts.SyncInterval,
		probeInterval: opts.ProbeInterval,
		maxRetries:    opts.MaxRetries,
		onConflict:    opts.OnConflict,
		conflicts:     newConflictRegistry(),
		kick:          make(chan struct{}, 1),
	}
}

// Echo exposes the suppressor to the realtime listener.
func (e *Engine) Echo() *EchoSuppressor {
	return e.echo
}

// Sync runs one pull-then-push cycle. If a cycle is already running, the
// call waits for it and returns its result instead of starting a second
// one.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if f := e.inflight; f != nil {
		e.mu.Unlock()
		select {
		case <-f.done:
			return f.res, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	e.inflight = f
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inflight = nil
		e.mu.Unlock()
		close(f.done)
	}()

	f.res, f.err = e.cycle(ctx)
	return f.res, f.err
}

func (e *Engine) cycle(ctx context.Context) (*Result, error) {
	start := e.now()
	res := &Result{}

	if err := e.pull(ctx, res); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("pull: %w", err))
		e.logger.Warn(ctx, "pull failed", "error", err)
	}
	if err := e.push(ctx, res); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("push: %w", err))
		e.logger.Warn(ctx, "push failed", "error", err)
	}

	res.Duration = e.now().Sub(start)
	e.logger.Info(ctx, "sync cycle finished",
		"pulled", res.Pulled, "pushed", res.Pushed,
		"failed", res.Failed, "conflicts", res.Conflicts,
		"duration", res.Duration)
	return res, nil
}

// RequestSync asks the trigger loop to start a cycle soon. Non-blocking;
// coalesces with an already-queued request.
func (e *Engine) RequestSync() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run drives the sync triggers until ctx is cancelled: a reachability
// probe that fires a cycle on the offline-to-online transition, a periodic
// cycle while online, and explicit RequestSync kicks.
func (e *Engine) Run(ctx context.Context) {
	probe := time.NewTicker(e.probeInterval)
	defer probe.Stop()
	periodic := time.NewTicker(e.syncInterval)
	defer periodic.Stop()

	online := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-probe.C:
			reachable := e.remote.Ping(ctx) == nil
			if reachable && !online {
				e.logger.Info(ctx, "remote reachable, syncing")
				if _, err := e.Sync(ctx); err != nil {
					e.logger.Warn(ctx, "sync failed", "error", err)
				}
			}
			online = reachable

		case <-periodic.C:
			if !online {
				continue
			}
			if _, err := e.Sync(ctx); err != nil {
				e.logger.Warn(ctx, "sync failed", "error", err)
			}

		case <-e.kick:
			if _, err := e.Sync(ctx); err != nil {
				e.logger.Warn(ctx, "sync failed", "error", err)
			}
		}
	}
}

// Hydrate performs the initial full fetch after login, bounded by timeout.
// A store that already carries a sync watermark was hydrated before and is
// skipped without touching the remote; the regular pull covers the delta.
// Transient remote failures are retried with fibonacci backoff inside the
// deadline. Hydration is fail-open: the caller proceeds with local data
// when it returns an error.
func (e *Engine) Hydrate(ctx context.Context, timeout time.Duration) error {
	watermark, err := notes.NewSQLiteRepository(e.db).MaxLastSyncedAt(ctx)
	if err != nil {
		return err
	}
	if watermark != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := retry.NewFibonacci(200 * time.Millisecond)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res := &Result{}
		if err := e.applyRemoteChanges(ctx, time.Time{}, res); err != nil {
			if remote.IsRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		e.logger.Info(ctx, "hydration complete", "pulled", res.Pulled)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hydration: %w", err)
	}
	return nil
}
