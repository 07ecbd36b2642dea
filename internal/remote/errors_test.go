package remote

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"invalid auth", &pgconn.PgError{Code: "28P01"}, false},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"data error", &pgconn.PgError{Code: "22001"}, false},
		{"network timeout", timeoutErr{}, true},
		{"wrapped pg error", fmt.Errorf("push: %w", &pgconn.PgError{Code: "23505"}), false},
		{"unknown", errors.New("weird"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classify(tt.err)
			require.Error(t, classified)

			var re *Error
			require.ErrorIs(t, classified, tt.err)
			require.True(t, errors.As(classified, &re))
			assert.Equal(t, tt.retryable, re.Kind == KindRetryable)
			assert.Equal(t, tt.retryable, IsRetryable(classified))
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestIsRetryable_UnclassifiedDefaultsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("plain")))
}

func TestErrorString(t *testing.T) {
	e := &Error{Kind: KindRetryable, Err: errors.New("conn reset")}
	assert.Contains(t, e.Error(), "retryable")

	e = &Error{Kind: KindNonRetryable, Err: errors.New("bad row")}
	assert.NotContains(t, e.Error(), "retryable")
}

