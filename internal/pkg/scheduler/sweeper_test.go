package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_RetentionWindow(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.RegisterHandler("echo", echoHandler()))
	ctx := context.Background()
	day := 24 * time.Hour

	old := h.mustCreate(t, "echo", nil)
	require.True(t, h.s.Tick(ctx))

	h.clock.Advance(14 * day)
	recent := h.mustCreate(t, "echo", nil)
	require.True(t, h.s.Tick(ctx))
	pending := h.mustCreate(t, "echo", nil)

	h.clock.Advance(day)
	// old completed 15 days ago, recent 1 day ago
	assert.Equal(t, 1, h.s.Sweep(ctx))

	_, ok := h.s.GetTask(old.ID)
	assert.False(t, ok)
	assert.Equal(t, StatusCompleted, h.mustGet(t, recent.ID).Status)
	assert.Equal(t, StatusPending, h.mustGet(t, pending.ID).Status)
	assert.Equal(t, 1, h.logs.FilterMessage("swept expired tasks").Len())
	assert.Equal(t, 1, h.metrics.statusGauge(StatusCompleted))
}

func TestSweep_NeverRemovesNonTerminal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.RegisterHandler("boom", failingHandler("nope")))
	ctx := context.Background()

	retrying := h.mustCreate(t, "boom", nil, WithMaxRetries(5))
	require.True(t, h.s.Tick(ctx))
	pending := h.mustCreate(t, "boom", nil, WithPriority(PriorityLow))

	h.clock.Advance(365 * 24 * time.Hour)
	assert.Equal(t, 0, h.s.Sweep(ctx))

	assert.Equal(t, StatusRetrying, h.mustGet(t, retrying.ID).Status)
	assert.Equal(t, StatusPending, h.mustGet(t, pending.ID).Status)
	assert.Equal(t, 0, h.logs.FilterMessage("swept expired tasks").Len())
}

func TestSweep_CancelledAndFailedAreSwept(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Retention = time.Hour })
	require.NoError(t, h.s.RegisterHandler("boom", failingHandler("nope")))
	ctx := context.Background()

	failed := h.mustCreate(t, "boom", nil, WithMaxRetries(0))
	require.True(t, h.s.Tick(ctx))
	cancelled := h.mustCreate(t, "boom", nil)
	require.NoError(t, h.s.CancelTask(ctx, cancelled.ID))

	h.clock.Advance(time.Hour)
	assert.Equal(t, 0, h.s.Sweep(ctx), "exactly at the cutoff is kept")

	h.clock.Advance(time.Millisecond)
	assert.Equal(t, 2, h.s.Sweep(ctx))
	_, ok := h.s.GetTask(failed.ID)
	assert.False(t, ok)
	assert.Empty(t, h.s.GetTasks())
}
