package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"atlasforum/internal/cache"
	"atlasforum/internal/leveling"
	"atlasforum/internal/logging"
	"atlasforum/internal/metrics"
	"atlasforum/internal/model"
	"atlasforum/internal/queue"
)

// PointsAwarder adds points to a profile at most once per event and
// recomputes its level. repository.ProfileRepository satisfies it.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, eventID, userID uuid.UUID, points int64) (*model.Profile, bool, error)
}

// Handler processes forum events from the queue.
type Handler struct {
	feedCache cache.FeedCache
	profiles  PointsAwarder
	metrics   *metrics.WorkerMetrics
	log       zerolog.Logger
}

// NewHandler creates a new event handler. m may be nil.
func NewHandler(feedCache cache.FeedCache, profiles PointsAwarder, m *metrics.WorkerMetrics) *Handler {
	return &Handler{
		feedCache: feedCache,
		profiles:  profiles,
		metrics:   m,
		log:       logging.Component("worker"),
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ForumEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventPostCreated:
		err = h.handlePostCreated(ctx, event)
	case queue.EventCommentCreated:
		err = h.handleCommentCreated(ctx, event)
	case queue.EventVoteCast:
		err = h.handleVoteCast(ctx, event)
	default:
		h.observe(event.Type, "unknown")
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		h.observe(event.Type, "error")
		h.log.Error().Err(err).Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("handle event failed")
		return err
	}

	h.observe(event.Type, "ok")
	h.log.Debug().Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("handle event ok")
	return nil
}

// handlePostCreated adds the post to its channel feed and the unfiltered
// feed, then awards the author.
func (h *Handler) handlePostCreated(ctx context.Context, event queue.ForumEvent) error {
	for _, channel := range []string{string(event.Channel), ""} {
		if err := h.feedCache.AddPost(ctx, channel, event.PostID, event.Timestamp); err != nil {
			h.log.Warn().Err(err).Stringer("post", event.PostID).Str("channel", channel).Msg("failed to add post to feed")
			// Drop the feed so the next read warms it with this post.
			if err := h.feedCache.Invalidate(ctx, channel); err != nil {
				h.log.Error().Err(err).Str("channel", channel).Msg("failed to invalidate feed")
			}
		}
	}

	return h.award(ctx, event, leveling.PointsForPost, "post")
}

func (h *Handler) handleCommentCreated(ctx context.Context, event queue.ForumEvent) error {
	return h.award(ctx, event, leveling.PointsForComment, "comment")
}

// handleVoteCast awards the post author for an upvote that was newly cast
// or flipped from a downvote. Self-votes and retractions earn nothing, and
// points are never taken back.
func (h *Handler) handleVoteCast(ctx context.Context, event queue.ForumEvent) error {
	if event.Direction != model.Up {
		return nil
	}
	if event.Action != model.VoteInserted && event.Action != model.VoteFlipped {
		return nil
	}
	if event.VoterID == event.AuthorID {
		return nil
	}
	return h.award(ctx, event, leveling.PointsForUpvoteReceived, "upvote")
}

// award credits the event's author once; a redelivered event is a no-op.
func (h *Handler) award(ctx context.Context, event queue.ForumEvent, points int64, reason string) error {
	userID := event.AuthorID
	if userID == uuid.Nil {
		return fmt.Errorf("award %s points: event has no author", reason)
	}
	if event.EventID == uuid.Nil {
		return fmt.Errorf("award %s points: event has no id", reason)
	}

	profile, applied, err := h.profiles.AwardPoints(ctx, event.EventID, userID, points)
	if err != nil {
		return fmt.Errorf("award %s points: %w", reason, err)
	}
	if !applied {
		h.log.Info().Stringer("event", event.EventID).Str("reason", reason).Msg("points already awarded for event")
		return nil
	}

	if h.metrics != nil {
		h.metrics.PointsAwarded.WithLabelValues(reason).Add(float64(points))
	}
	h.log.Debug().
		Stringer("user", userID).
		Int64("points", points).
		Int64("total", profile.Points).
		Str("level", string(profile.Level)).
		Str("reason", reason).
		Msg("points awarded")
	return nil
}

func (h *Handler) observe(eventType, result string) {
	if h.metrics != nil {
		h.metrics.EventsProcessed.WithLabelValues(eventType, result).Inc()
	}
}
