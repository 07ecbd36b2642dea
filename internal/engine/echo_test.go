package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoSuppressor_MarkAndClear(t *testing.T) {
	e := NewEchoSuppressor(time.Hour)

	e.MarkPending("tok")
	assert.True(t, e.IsPending("tok"))
	assert.False(t, e.IsPending("other"))

	e.ClearPending("tok")
	assert.False(t, e.IsPending("tok"))
}

func TestEchoSuppressor_ReleaseAfterGrace(t *testing.T) {
	e := NewEchoSuppressor(20 * time.Millisecond)

	e.MarkPending("tok")
	e.ReleaseAfterGrace("tok")
	assert.True(t, e.IsPending("tok"), "token stays pending through the grace window")

	require.Eventually(t, func() bool {
		return !e.IsPending("tok")
	}, time.Second, 5*time.Millisecond)
}

func TestEchoSuppressor_ClearAllCancelsTimers(t *testing.T) {
	e := NewEchoSuppressor(10 * time.Millisecond)

	e.MarkPending("a")
	e.MarkPending("b")
	e.ReleaseAfterGrace("a")
	e.ClearAll()

	assert.False(t, e.IsPending("a"))
	assert.False(t, e.IsPending("b"))

	e.MarkPending("c")
	time.Sleep(30 * time.Millisecond)
	assert.True(t, e.IsPending("c"), "old timers must not fire into the new set")
}

func TestEchoSuppressor_EmptyTokenIgnored(t *testing.T) {
	e := NewEchoSuppressor(time.Hour)
	e.MarkPending("")
	assert.False(t, e.IsPending(""))
}
