package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// FeedCachePrefix is the key prefix for channel feed caches
	FeedCachePrefix = "feed:channel:"

	// AllChannelsKey is the key suffix of the unfiltered feed
	AllChannelsKey = "all"

	// FeedCacheCap is the maximum number of posts to cache per channel
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// PostScore is a post with its creation time in Unix microseconds.
type PostScore struct {
	PostID    uuid.UUID
	Timestamp int64
}

// FeedCache holds newest-first post IDs per channel. An empty channel name
// addresses the unfiltered feed.
type FeedCache interface {
	// AddPost adds a post to a channel feed.
	// Uses pipeline: ZADD + ZREMRANGEBYRANK (maintain cap) + EXPIRE (refresh TTL)
	AddPost(ctx context.Context, channel string, postID uuid.UUID, timestamp int64) error

	// GetFeed retrieves post IDs older than cursorScore (newest when nil).
	GetFeed(ctx context.Context, channel string, cursorScore *float64, limit int) (postIDs []uuid.UUID, scores []float64, err error)

	// WarmCache bulk-inserts posts into a channel feed.
	WarmCache(ctx context.Context, channel string, posts []PostScore) error

	// Exists reports whether the channel feed key is present.
	// The service layer warms the cache when this returns false.
	Exists(ctx context.Context, channel string) (bool, error)

	// Invalidate drops a channel feed so the next read warms it from the store.
	Invalidate(ctx context.Context, channel string) error
}

// RedisFeedCache implements FeedCache using Redis Sorted Sets.
type RedisFeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{client: client}
}

// FeedKey returns the Redis key for a channel feed.
func FeedKey(channel string) string {
	if channel == "" {
		channel = AllChannelsKey
	}
	return FeedCachePrefix + channel
}

// AddPost adds a post to a channel feed using a pipeline.
func (c *RedisFeedCache) AddPost(ctx context.Context, channel string, postID uuid.UUID, timestamp int64) error {
	key := FeedKey(channel)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(timestamp), Member: postID.String()})
	// Keep the newest FeedCacheCap entries; rank 0 is the oldest.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add post to feed: %w", err)
	}

	log.Debug().Str("key", key).Stringer("post", postID).Msg("feed cache add")
	return nil
}

// GetFeed uses ZREVRANGE without a cursor and an exclusive
// ZREVRANGEBYSCORE below the cursor otherwise. Reads leave the TTL alone:
// only writes extend it, so a feed that missed a post still expires.
func (c *RedisFeedCache) GetFeed(ctx context.Context, channel string, cursorScore *float64, limit int) ([]uuid.UUID, []float64, error) {
	key := FeedKey(channel)

	var results []redis.Z
	var err error
	if cursorScore == nil {
		results, err = c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   fmt.Sprintf("(%f", *cursorScore),
			Count: int64(limit),
		}).Result()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get feed: %w", err)
	}

	postIDs := make([]uuid.UUID, len(results))
	scores := make([]float64, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			return nil, nil, fmt.Errorf("parse post id %q: %w", member, err)
		}
		postIDs[i] = id
		scores[i] = z.Score
	}
	return postIDs, scores, nil
}

// WarmCache bulk-inserts posts into a channel feed using a pipeline.
// An empty slice still creates nothing, so Exists stays false.
func (c *RedisFeedCache) WarmCache(ctx context.Context, channel string, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}
	key := FeedKey(channel)

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{Score: float64(p.Timestamp), Member: p.PostID.String()}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Debug().Str("key", key).Int("posts", len(posts)).Msg("feed cache warmed")
	return nil
}

// Exists checks if a channel feed is cached.
func (c *RedisFeedCache) Exists(ctx context.Context, channel string) (bool, error) {
	n, err := c.client.Exists(ctx, FeedKey(channel)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return n > 0, nil
}

// Invalidate deletes a channel feed.
func (c *RedisFeedCache) Invalidate(ctx context.Context, channel string) error {
	key := FeedKey(channel)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate feed: %w", err)
	}
	log.Debug().Str("key", key).Msg("feed cache invalidated")
	return nil
}
