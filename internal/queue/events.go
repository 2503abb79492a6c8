package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"atlasforum/internal/model"
)

// Event types for the forum stream
const (
	EventPostCreated    = "post_created"
	EventCommentCreated = "comment_created"
	EventVoteCast       = "vote_cast"
)

// Stream names
const (
	StreamForum = "stream:forum"
)

// Consumer group name for forum workers
const (
	ConsumerGroupForum = "forum_workers"
)

// ForumEvent is published after a contribution commits.
// All forum events share this structure.
type ForumEvent struct {
	// EventID identifies one occurrence; handlers use it to apply effects once.
	EventID   uuid.UUID `json:"event_id"`
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"` // Unix microseconds when the event occurred

	PostID   uuid.UUID `json:"post_id"`
	AuthorID uuid.UUID `json:"author_id"` // author of the post (or comment)

	// Post events
	Channel model.Channel `json:"channel,omitempty"`

	// Comment events
	CommentID uuid.UUID `json:"comment_id,omitempty"`

	// Vote events
	VoterID   uuid.UUID        `json:"voter_id,omitempty"`
	Action    model.VoteAction `json:"action,omitempty"`
	Direction model.Direction  `json:"direction,omitempty"`
}

// NewPostCreatedEvent is handled by adding the post to the channel feeds
// and awarding the author.
func NewPostCreatedEvent(post *model.Post) ForumEvent {
	return ForumEvent{
		EventID:   uuid.New(),
		Type:      EventPostCreated,
		Timestamp: post.CreatedAt.UnixMicro(),
		PostID:    post.ID,
		AuthorID:  post.UserID,
		Channel:   post.Channel,
	}
}

// NewCommentCreatedEvent is handled by awarding the comment author.
func NewCommentCreatedEvent(comment *model.Comment) ForumEvent {
	return ForumEvent{
		EventID:   uuid.New(),
		Type:      EventCommentCreated,
		Timestamp: comment.CreatedAt.UnixMicro(),
		PostID:    comment.PostID,
		AuthorID:  comment.UserID,
		CommentID: comment.ID,
	}
}

// NewVoteCastEvent is handled by awarding the post author for fresh upvotes.
func NewVoteCastEvent(postID, authorID, voterID uuid.UUID, action model.VoteAction, direction model.Direction) ForumEvent {
	return ForumEvent{
		EventID:   uuid.New(),
		Type:      EventVoteCast,
		Timestamp: time.Now().UnixMicro(),
		PostID:    postID,
		AuthorID:  authorID,
		VoterID:   voterID,
		Action:    action,
		Direction: direction,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e ForumEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseForumEvent parses a ForumEvent from Redis stream message values.
func ParseForumEvent(values map[string]interface{}) (ForumEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ForumEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ForumEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ForumEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
