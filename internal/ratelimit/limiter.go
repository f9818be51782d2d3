// Package ratelimit implements a Redis sliding-window request limiter.
// This is transport-level abuse protection; the free-tier summary quota is
// a separate concern handled by the entitlement package.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/summari/backend/internal/cache"
)

// Limiter enforces a per-identifier requests-per-minute limit.
type Limiter struct {
	cache     *cache.Redis
	perMinute int
}

// NewLimiter creates a new limiter.
func NewLimiter(c *cache.Redis, perMinute int) *Limiter {
	return &Limiter{cache: c, perMinute: perMinute}
}

// Limit returns the configured per-minute limit.
func (l *Limiter) Limit() int {
	return l.perMinute
}

// Allow checks and records one request for the identifier using a sliding
// one-minute window over a Redis sorted set. Each request is stored with
// its timestamp as the score.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, int, error) {
	key := "ratelimit:minute:" + identifier
	window := time.Minute

	now := time.Now()
	nowUnixMicro := now.UnixMicro()
	windowStart := now.Add(-window).UnixMicro()

	client := l.cache.Client()
	pipe := client.Pipeline()

	// Remove entries outside the window, then count what's left
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, 0, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := int(countCmd.Val())
	if count >= l.perMinute {
		return false, 0, nil
	}

	// Microsecond members keep rapid requests distinct
	err := client.ZAdd(ctx, key, redis.Z{
		Score:  float64(nowUnixMicro),
		Member: strconv.FormatInt(nowUnixMicro, 10),
	}).Err()
	if err != nil {
		return false, l.perMinute - count, fmt.Errorf("failed to add rate limit entry: %w", err)
	}

	_ = client.Expire(ctx, key, window+time.Second).Err()

	return true, l.perMinute - count - 1, nil
}
