package engine

import (
	"sync"
	"time"
)

// EchoSuppressor tracks idempotency tokens of writes this device has sent
// but whose change-feed echo has not yet arrived. The realtime listener
// drops events carrying a pending token so the device never re-applies its
// own change.
//
// Tokens are released a grace period after the push settles rather than
// immediately: the notification can arrive after the push response.
type EchoSuppressor struct {
	mu      sync.Mutex
	grace   time.Duration
	pending map[string]struct{}
	timers  map[string]*time.Timer
}

// NewEchoSuppressor builds a suppressor with the given release grace
// window.
func NewEchoSuppressor(grace time.Duration) *EchoSuppressor {
	return &EchoSuppressor{
		grace:   grace,
		pending: make(map[string]struct{}),
		timers:  make(map[string]*time.Timer),
	}
}

// MarkPending registers a token before the network call that will carry it.
func (e *EchoSuppressor) MarkPending(token string) {
	if token == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[token] = struct{}{}
}

// IsPending reports whether an event with this token is a self-echo.
func (e *EchoSuppressor) IsPending(token string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[token]
	return ok
}

// ClearPending removes a token immediately.
func (e *EchoSuppressor) ClearPending(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remove(token)
}

// ReleaseAfterGrace schedules removal of the token once the grace window
// elapses. Calling it again for the same token resets the timer.
func (e *EchoSuppressor) ReleaseAfterGrace(token string) {
	if token == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[token]; ok {
		t.Stop()
	}
	e.timers[token] = time.AfterFunc(e.grace, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.remove(token)
	})
}

// ClearAll drops every token and cancels outstanding timers. Used on
// logout.
func (e *EchoSuppressor) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for token, t := range e.timers {
		t.Stop()
		delete(e.timers, token)
	}
	e.pending = make(map[string]struct{})
}

func (e *EchoSuppressor) remove(token string) {
	delete(e.pending, token)
	if t, ok := e.timers[token]; ok {
		t.Stop()
		delete(e.timers, token)
	}
}
