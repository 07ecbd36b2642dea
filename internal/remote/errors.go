package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a remote failure for the push retry policy.
type Kind int

const (
	// KindRetryable marks transient failures: connectivity loss,
	// timeouts, serialization conflicts, server overload.
	KindRetryable Kind = iota
	// KindNonRetryable marks failures a retry cannot fix: constraint
	// violations, malformed data, missing permissions.
	KindNonRetryable
)

// Error wraps a remote store failure with its retry classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindRetryable {
		return fmt.Sprintf("remote (retryable): %v", e.Err)
	}
	return fmt.Sprintf("remote: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err should be retried. Errors without a
// classification count as retryable so a transient unknown never drops a
// queued change; the retry ceiling bounds the damage of a wrong guess.
func IsRetryable(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == KindRetryable
	}
	return true
}

// classify wraps err in an Error with the appropriate Kind. Postgres error
// classes drive the decision; anything that smells like a network problem
// is retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			// connection exceptions, serialization failures,
			// insufficient resources, operator intervention
			return &Error{Kind: KindRetryable, Err: err}
		case "22", "23", "28", "42":
			// data errors, constraint violations, auth, syntax
			return &Error{Kind: KindNonRetryable, Err: err}
		}
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		strings.Contains(err.Error(), "connection refused"):
		return &Error{Kind: KindRetryable, Err: err}
	}

	return &Error{Kind: KindRetryable, Err: err}
}
