package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisWindow(t *testing.T, limit int, window time.Duration) (*RedisWindow, *clock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := newClock()
	r := NewRedisWindow(client, limit, window)
	r.now = c.now
	return r, c, mr
}

func TestRedisWindow_CeilingPerWindow(t *testing.T) {
	r, c, _ := newRedisWindow(t, 2, time.Minute)
	ctx := context.Background()

	d, err := r.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	c.advance(20 * time.Second)
	d, err = r.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = r.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	c.advance(40 * time.Second)
	d, err = r.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisWindow_KeysAreIsolated(t *testing.T) {
	r, _, mr := newRedisWindow(t, 1, time.Minute)
	ctx := context.Background()

	d, _ := r.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = r.Allow(ctx, "b")
	assert.True(t, d.Allowed)
	d, _ = r.Allow(ctx, "a")
	assert.False(t, d.Allowed)

	assert.True(t, mr.Exists(keyPrefix+"a"))
	assert.Positive(t, mr.TTL(keyPrefix+"a"))
}

func TestRedisWindow_ConnectionError(t *testing.T) {
	r, _, mr := newRedisWindow(t, 1, time.Minute)
	mr.Close()

	_, err := r.Allow(context.Background(), "a")
	assert.Error(t, err)
}
