package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Comment represents a reply on a post.
type Comment struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	PostID    uuid.UUID      `db:"post_id" json:"post_id"`
	UserID    uuid.UUID      `db:"user_id" json:"-"`
	Content   string         `db:"content" json:"content"`
	Anonymous bool           `db:"anonymous" json:"anonymous"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	Author    *AuthorSummary `db:"-" json:"author"` // Joined field
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content   string `json:"content"`
	Anonymous bool   `json:"anonymous"`
}

// CommentListResponse is the paginated comment list response.
type CommentListResponse struct {
	Comments   []Comment `json:"comments"`
	NextCursor *string   `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// Comment constraints
const (
	MaxCommentLength    = 2000
	DefaultCommentLimit = 20
	MaxCommentLimit     = 100
)

// Comment errors
var (
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	ErrContentRequired = validation("comment content is required")
	ErrContentTooLong  = validation(fmt.Sprintf("comment exceeds %d characters", MaxCommentLength))
)

// Normalize trims the content and validates it.
func (r *CreateCommentRequest) Normalize() error {
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(r.Content) > MaxCommentLength {
		return ErrContentTooLong
	}
	return nil
}
