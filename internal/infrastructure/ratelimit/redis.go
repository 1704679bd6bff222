package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "stockbridge:ratelimit:"

// slidingWindow trims the sorted set to the window, then admits the event if
// there is room. Returns {allowed, remaining, retry_after_ms}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, limit - count - 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// RedisWindow is MemoryWindow on a Redis sorted set, shared by all replicas.
type RedisWindow struct {
	client redis.Scripter
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisWindow creates a Redis-backed limiter.
func NewRedisWindow(client redis.Scripter, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, limit: limit, window: window, now: time.Now}
}

// Window returns the rolling window length.
func (r *RedisWindow) Window() time.Duration { return r.window }

// Allow records an event for key if the window has room.
func (r *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	res, err := slidingWindow.Run(ctx, r.client, []string{keyPrefix + key},
		now, r.window.Milliseconds(), r.limit, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	return Decision{
		Allowed:    res[0] == 1,
		Limit:      r.limit,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
