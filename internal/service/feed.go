package service

import (
	"context"
	"fmt"

	"atlasforum/internal/cache"
	"atlasforum/internal/model"
	"atlasforum/internal/repository"
)

// listFromCache serves a feed page from the channel's sorted set.
//
// Flow:
// 1. Warm the set from PostgreSQL when the key is missing
// 2. Read limit+1 post IDs below the cursor score
// 3. Hydrate the IDs from PostgreSQL
//
// served is false when the cache cannot fill a whole page (the tail beyond
// the cache cap, or entries whose posts are gone); the caller then reads the
// page from PostgreSQL.
func (s *PostService) listFromCache(ctx context.Context, channel *model.Channel, cursorScore *float64, limit int) (posts []model.Post, next *string, served bool, err error) {
	key := cacheChannel(channel)

	exists, err := s.feedCache.Exists(ctx, key)
	if err != nil {
		return nil, nil, false, err
	}
	if !exists {
		s.observe("miss")
		if err := s.warmCache(ctx, channel); err != nil {
			return nil, nil, false, err
		}
	}

	ids, _, err := s.feedCache.GetFeed(ctx, key, cursorScore, limit+1)
	if err != nil {
		return nil, nil, false, err
	}
	if len(ids) <= limit {
		s.observe("short")
		return nil, nil, false, nil
	}

	posts, err = s.postRepo.GetByIDs(ctx, ids[:limit])
	if err != nil {
		return nil, nil, false, fmt.Errorf("hydrate feed: %w", err)
	}
	if len(posts) < limit {
		s.observe("stale")
		return nil, nil, false, nil
	}

	if exists {
		s.observe("hit")
	}
	last := posts[len(posts)-1]
	c := repository.FormatCursor(last.CreatedAt, last.ID)
	return posts, &c, true, nil
}

// addToFeeds inserts a post into its channel feed and the unfiltered feed.
// A feed that cannot take the post is dropped so it is rebuilt on next read.
func (s *PostService) addToFeeds(ctx context.Context, post *model.Post) {
	if s.feedCache == nil {
		return
	}
	for _, channel := range []string{string(post.Channel), ""} {
		err := s.feedCache.AddPost(ctx, channel, post.ID, post.CreatedAt.UnixMicro())
		if err == nil {
			continue
		}
		s.log.Warn().Err(err).Stringer("post", post.ID).Str("channel", channel).Msg("failed to add post to feed")
		if err := s.feedCache.Invalidate(ctx, channel); err != nil {
			s.log.Error().Err(err).Str("channel", channel).Msg("failed to invalidate feed")
		}
	}
}

// warmCache populates a channel feed from PostgreSQL.
func (s *PostService) warmCache(ctx context.Context, channel *model.Channel) error {
	scores, err := s.postRepo.RecentScores(ctx, channel, cache.FeedCacheCap)
	if err != nil {
		return fmt.Errorf("load recent posts: %w", err)
	}
	if err := s.feedCache.WarmCache(ctx, cacheChannel(channel), scores); err != nil {
		return err
	}
	s.log.Debug().Str("channel", cacheChannel(channel)).Int("posts", len(scores)).Msg("feed cache warmed")
	return nil
}

func (s *PostService) observe(result string) {
	if s.metrics != nil {
		s.metrics.CacheResults.WithLabelValues(result).Inc()
	}
}

// cacheChannel maps a channel filter to its cache name; "" is the unfiltered feed.
func cacheChannel(channel *model.Channel) string {
	if channel == nil {
		return ""
	}
	return string(*channel)
}
