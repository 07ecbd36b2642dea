// Package realtime subscribes to the remote change feed over a dedicated
// PostgreSQL LISTEN connection and folds incoming events into the local
// store through the sync engine.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anbuneel/zenote-sub002/internal/logging"
	"github.com/anbuneel/zenote-sub002/internal/remote"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// Handler consumes decoded change events. The sync engine implements it.
type Handler interface {
	ApplyEvent(ctx context.Context, ev remote.ChangeEvent) error
}

// Listener holds one LISTEN connection and replays its notifications into
// the handler. Events from other owners are ignored; self-echo filtering
// happens inside the handler.
type Listener struct {
	dsn     string
	owner   string
	handler Handler
	logger  logging.Logger
}

// New builds a listener for the given owner.
func New(dsn, ownerID string, handler Handler, logger logging.Logger) *Listener {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Listener{dsn: dsn, owner: ownerID, handler: handler, logger: logger}
}

// Run listens until ctx is cancelled, reconnecting with capped exponential
// backoff after connection loss.
func (l *Listener) Run(ctx context.Context) error {
	delay := reconnectBase
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn(ctx, "change feed connection lost", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+remote.ChangeChannel); err != nil {
		return err
	}
	l.logger.Info(ctx, "change feed connected", "channel", remote.ChangeChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, n.Payload)
	}
}

// dispatch decodes one notification payload and hands it to the handler.
// A malformed payload or a failed apply is logged and dropped; the next
// sync cycle repairs any divergence.
func (l *Listener) dispatch(ctx context.Context, payload string) {
	var ev remote.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.logger.Warn(ctx, "malformed change feed payload", "error", err)
		return
	}
	if ev.OwnerID != l.owner {
		return
	}
	if err := l.handler.ApplyEvent(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Warn(ctx, "failed to apply change feed event",
			"entity", ev.Entity, "id", ev.ID, "error", err)
	}
}
