package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/store"
	"github.com/kanna-karuppasamy/solar-site-monitoring/internal/timeutil"
)

// FixedWindowRateLimiter counts hits in calendar-aligned windows. The
// counter key embeds the window index, so a new window starts with a
// fresh counter and the old one expires on its own. A burst straddling a
// window boundary can reach 2x the limit; this is accepted behavior of
// the algorithm.
type FixedWindowRateLimiter struct {
	c *Client
}

// NewFixedWindowRateLimiter returns a fixed-window limiter backed by the
// shared client.
func NewFixedWindowRateLimiter(c *Client) *FixedWindowRateLimiter {
	return &FixedWindowRateLimiter{c: c}
}

var _ store.RateLimiter = (*FixedWindowRateLimiter)(nil)

// Hit records a hit and returns the remaining allowance, or -1 once the
// window's limit is exceeded. The hit still counts when over the limit.
func (l *FixedWindowRateLimiter) Hit(ctx context.Context, name string, limit store.Limit) (int, error) {
	intervalMinutes := int(limit.Interval / time.Minute)
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}

	key := l.c.keys.FixedRateLimiterKey(name, intervalMinutes, limit.MaxHits)

	var incr *goredis.IntCmd

	_, err := l.c.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Duration(intervalMinutes)*time.Minute)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rate limit hit on %s: %w", name, err)
	}

	hits := int(incr.Val())
	if hits > limit.MaxHits {
		return -1, nil
	}

	return limit.MaxHits - hits, nil
}

// SlidingWindowRateLimiter keeps one timestamped marker per hit in a
// sorted set and prunes markers older than the window on every hit. The
// add, prune and count run as one MULTI/EXEC transaction so the reported
// count is always consistent with the prune.
type SlidingWindowRateLimiter struct {
	c *Client
}

// NewSlidingWindowRateLimiter returns a sliding-window limiter backed by
// the shared client.
func NewSlidingWindowRateLimiter(c *Client) *SlidingWindowRateLimiter {
	return &SlidingWindowRateLimiter{c: c}
}

var _ store.RateLimiter = (*SlidingWindowRateLimiter)(nil)

// Hit records a hit and returns the remaining allowance, or -1 once the
// window's limit is exceeded. The hit still counts when over the limit.
func (l *SlidingWindowRateLimiter) Hit(ctx context.Context, name string, limit store.Limit) (int, error) {
	intervalMs := limit.Interval.Milliseconds()
	key := l.c.keys.SlidingRateLimiterKey(name, intervalMs, limit.MaxHits)
	now := timeutil.CurrentTimestampMillis()

	// The marker carries a uuid so two hits in the same millisecond
	// remain distinct members.
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	var card *goredis.IntCmd

	_, err := l.c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now), Member: member})
		pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-intervalMs))
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rate limit hit on %s: %w", name, err)
	}

	hits := int(card.Val())
	if hits > limit.MaxHits {
		return -1, nil
	}

	return limit.MaxHits - hits, nil
}
