package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// VoteLimiter is a fixed-window counter of votes per user.
type VoteLimiter struct {
	client *redis.Client
	clock  clockwork.Clock
	limit  int64
	window time.Duration
}

// NewVoteLimiter allows limit votes per user in each window.
func NewVoteLimiter(client *redis.Client, clock clockwork.Clock, limit int, window time.Duration) *VoteLimiter {
	return &VoteLimiter{
		client: client,
		clock:  clock,
		limit:  int64(limit),
		window: window,
	}
}

// Key returns the counter key for the window containing now.
func (l *VoteLimiter) Key(userID uuid.UUID, now time.Time) string {
	bucket := now.UnixNano() / int64(l.window)
	return fmt.Sprintf("rate_limit:votes:%s:%d", userID, bucket)
}

// Allow counts one vote and reports whether it fits in the current window.
func (l *VoteLimiter) Allow(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := l.Key(userID, l.clock.Now())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("vote rate limit check: %w", err)
	}

	return incr.Val() <= l.limit, nil
}
