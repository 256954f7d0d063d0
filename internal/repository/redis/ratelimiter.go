package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitWindow = time.Second
	rateLimitPoll   = 10 * time.Millisecond
)

// slidingWindow trims entries older than the window, then records the request
// if fewer than the limit remain. Returns 1 when the request is allowed.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, math.ceil(2 * window / 1000000))
return 1
`)

// RateLimiter is a sliding window limiter shared by every process that uses
// the same key. It satisfies notify.Limiter.
type RateLimiter struct {
	client      *Client
	key         string
	limitPerSec int
}

// NewRateLimiter creates a limiter for one Notify service
func NewRateLimiter(client *Client, serviceID string, limitPerSec int) *RateLimiter {
	return &RateLimiter{
		client:      client,
		key:         client.key("ratelimit", serviceID),
		limitPerSec: limitPerSec,
	}
}

// Allow reports whether a request may be sent now, recording it if so
func (r *RateLimiter) Allow(ctx context.Context) (bool, error) {
	now := time.Now().UnixNano()
	allowed, err := slidingWindow.Run(ctx, r.client.rdb, []string{r.key},
		now, rateLimitWindow.Nanoseconds(), r.limitPerSec, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return allowed == 1, nil
}

// Wait blocks until a request is allowed
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.limitPerSec <= 0 {
		return nil
	}

	ticker := time.NewTicker(rateLimitPoll)
	defer ticker.Stop()

	for {
		allowed, err := r.Allow(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetCurrentRate returns the number of requests in the current window
func (r *RateLimiter) GetCurrentRate(ctx context.Context) (int64, error) {
	windowStart := time.Now().Add(-rateLimitWindow)

	pipe := r.client.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, r.key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, r.key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to get current rate: %w", err)
	}

	return countCmd.Val(), nil
}
