package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Post is a top-level forum entry.
type Post struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"-"`
	Title        string    `db:"title" json:"title"`
	Content      string    `db:"content" json:"content"`
	Channel      Channel   `db:"channel" json:"channel"`
	Anonymous    bool      `db:"anonymous" json:"anonymous"`
	Upvotes      int       `db:"upvotes" json:"upvotes"`
	Downvotes    int       `db:"downvotes" json:"downvotes"`
	CommentCount int       `db:"comment_count" json:"comment_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// Joined fields (not in posts table)
	Author *AuthorSummary `db:"-" json:"author"`
	MyVote *Direction     `db:"-" json:"my_vote,omitempty"`
}

// Score is the net vote score.
func (p *Post) Score() int {
	return p.Upvotes - p.Downvotes
}

// Counters returns the post's vote counters.
func (p *Post) Counters() Counters {
	return Counters{Upvotes: p.Upvotes, Downvotes: p.Downvotes}
}

// PostListResponse is the paginated feed response.
type PostListResponse struct {
	Posts      []Post  `json:"posts"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Channel   Channel `json:"channel"`
	Anonymous bool    `json:"anonymous"`
}

// Post constraints
const (
	MaxPostTitleLength   = 200
	MaxPostContentLength = 5000
	DefaultFeedLimit     = 20
	MaxFeedLimit         = 50
)

// Post errors
var (
	ErrPostNotFound      = fmt.Errorf("post %w", ErrNotFound)
	ErrTitleRequired     = validation("title is required")
	ErrTitleTooLong      = validation(fmt.Sprintf("title exceeds %d characters", MaxPostTitleLength))
	ErrPostContentEmpty  = validation("content is required")
	ErrPostContentLength = validation(fmt.Sprintf("content exceeds %d characters", MaxPostContentLength))
	ErrInvalidChannel    = validation("unknown channel")
	ErrInvalidCursor     = validation("invalid cursor")
)

// Normalize trims the request and fills defaults, then validates it.
func (r *CreatePostRequest) Normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	if r.Channel == "" {
		r.Channel = ChannelGeneral
	}

	switch {
	case r.Title == "":
		return ErrTitleRequired
	case utf8.RuneCountInString(r.Title) > MaxPostTitleLength:
		return ErrTitleTooLong
	case r.Content == "":
		return ErrPostContentEmpty
	case utf8.RuneCountInString(r.Content) > MaxPostContentLength:
		return ErrPostContentLength
	case !r.Channel.Valid():
		return ErrInvalidChannel
	}
	return nil
}

// ClampLimit applies the feed page size bounds.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
