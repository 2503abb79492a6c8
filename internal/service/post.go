package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"atlasforum/internal/cache"
	"atlasforum/internal/logging"
	"atlasforum/internal/metrics"
	"atlasforum/internal/model"
	"atlasforum/internal/queue"
	"atlasforum/internal/repository"
)

type PostService struct {
	postRepo  repository.PostRepository
	votes     repository.VoteStore
	feedCache cache.FeedCache
	publisher queue.Publisher
	metrics   *metrics.FeedMetrics
	log       zerolog.Logger
}

// NewPostService creates a PostService. feedCache and m may be nil, in
// which case every feed read goes to PostgreSQL.
func NewPostService(
	postRepo repository.PostRepository,
	votes repository.VoteStore,
	feedCache cache.FeedCache,
	publisher queue.Publisher,
	m *metrics.FeedMetrics,
) *PostService {
	return &PostService{
		postRepo:  postRepo,
		votes:     votes,
		feedCache: feedCache,
		publisher: publisher,
		metrics:   m,
		log:       logging.Component("post"),
	}
}

// Create validates and stores a new post, then publishes post_created so the
// worker can add it to the channel feeds and award the author.
func (s *PostService) Create(ctx context.Context, userID uuid.UUID, req model.CreatePostRequest) (*model.Post, error) {
	if userID == uuid.Nil {
		return nil, model.ErrUnauthenticated
	}
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	post, err := s.postRepo.Create(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	if s.publisher != nil {
		msgID, err := s.publisher.Publish(ctx, queue.StreamForum, queue.NewPostCreatedEvent(post))
		if err != nil {
			// No worker will see this post, so place it in the feeds here.
			s.log.Warn().Err(err).Stringer("post", post.ID).Msg("failed to publish post_created")
			s.addToFeeds(ctx, post)
		} else {
			s.log.Debug().Stringer("post", post.ID).Str("msg_id", msgID).Msg("published post_created")
		}
	}

	return post, nil
}

// Get returns one post. When viewerID is set the post carries the viewer's vote.
func (s *PostService) Get(ctx context.Context, postID, viewerID uuid.UUID) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	posts := []model.Post{*post}
	s.attachVotes(ctx, viewerID, posts)
	return &posts[0], nil
}

// List returns the newest-first feed for a channel filter ("" or "All" for
// every channel).
func (s *PostService) List(ctx context.Context, viewerID uuid.UUID, rawChannel string, cursor *string, limit int) (*model.PostListResponse, error) {
	channel, err := model.ParseFilter(rawChannel)
	if err != nil {
		return nil, err
	}
	limit = model.ClampLimit(limit, model.DefaultFeedLimit, model.MaxFeedLimit)

	var cursorScore *float64
	if cursor != nil {
		ts, _, err := repository.ParseCursor(*cursor)
		if err != nil {
			return nil, err
		}
		score := float64(ts.UnixMicro())
		cursorScore = &score
	}

	var (
		posts  []model.Post
		next   *string
		served bool
	)
	if s.feedCache != nil {
		posts, next, served, err = s.listFromCache(ctx, channel, cursorScore, limit)
		if err != nil {
			s.observe("error")
			s.log.Warn().Err(err).Str("channel", cacheChannel(channel)).Msg("feed cache unavailable, reading from store")
			served = false
		}
	}

	if !served {
		posts, next, err = s.postRepo.List(ctx, channel, cursor, limit)
		if err != nil {
			return nil, err
		}
	}

	if posts == nil {
		posts = []model.Post{}
	}
	s.attachVotes(ctx, viewerID, posts)

	return &model.PostListResponse{
		Posts:      posts,
		NextCursor: next,
		HasMore:    next != nil,
	}, nil
}

// attachVotes sets MyVote on each post. A failure only loses the
// highlighting, so it is logged and swallowed.
func (s *PostService) attachVotes(ctx context.Context, viewerID uuid.UUID, posts []model.Post) {
	if viewerID == uuid.Nil || len(posts) == 0 || s.votes == nil {
		return
	}

	ids := make([]uuid.UUID, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	votes, err := s.votes.GetUserVotes(ctx, viewerID, ids)
	if err != nil {
		s.log.Warn().Err(err).Stringer("viewer", viewerID).Msg("failed to load viewer votes")
		return
	}
	for i := range posts {
		if v, ok := votes[posts[i].ID]; ok {
			posts[i].MyVote = &v
		}
	}
}
