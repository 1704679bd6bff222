package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)} }

func TestMemoryWindow_CeilingPerWindow(t *testing.T) {
	c := newClock()
	m := NewMemoryWindow(3, time.Minute)
	m.now = c.now
	ctx := context.Background()

	for i := range 3 {
		d, err := m.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
		c.advance(10 * time.Second)
	}

	d, err := m.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// Other keys are independent.
	d, _ = m.Allow(ctx, "other")
	assert.True(t, d.Allowed)

	// The first event leaves the window exactly one minute after it happened.
	c.advance(30 * time.Second)
	d, _ = m.Allow(ctx, "ip")
	assert.True(t, d.Allowed)
	d, _ = m.Allow(ctx, "ip")
	assert.False(t, d.Allowed)
}

func TestMemoryWindow_RejectedEventsDoNotCount(t *testing.T) {
	c := newClock()
	m := NewMemoryWindow(1, time.Minute)
	m.now = c.now
	ctx := context.Background()

	d, _ := m.Allow(ctx, "ip")
	require.True(t, d.Allowed)
	for range 5 {
		c.advance(time.Second)
		d, _ = m.Allow(ctx, "ip")
		assert.False(t, d.Allowed)
	}
	c.advance(55 * time.Second)
	d, _ = m.Allow(ctx, "ip")
	assert.True(t, d.Allowed)
}

func TestMemoryWindow_Sweep(t *testing.T) {
	c := newClock()
	m := NewMemoryWindow(5, time.Minute)
	m.now = c.now

	_, _ = m.Allow(context.Background(), "a")
	c.advance(30 * time.Second)
	_, _ = m.Allow(context.Background(), "b")
	c.advance(31 * time.Second)

	m.Sweep()
	assert.Equal(t, 1, m.keys())
}
