package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction is the value of a vote: +1 up, -1 down.
type Direction int

const (
	Up   Direction = 1
	Down Direction = -1
)

// Valid reports whether d is +1 or -1.
func (d Direction) Valid() bool {
	return d == Up || d == Down
}

// Vote is a ledger entry: one per (user, post).
type Vote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	PostID    uuid.UUID `db:"post_id" json:"post_id"`
	Value     Direction `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Counters are the aggregate vote counts stored on a post.
type Counters struct {
	Upvotes   int `db:"upvotes" json:"upvotes"`
	Downvotes int `db:"downvotes" json:"downvotes"`
}

// VoteAction names what a cast did to the ledger.
type VoteAction string

const (
	VoteInserted  VoteAction = "inserted"
	VoteRetracted VoteAction = "retracted"
	VoteFlipped   VoteAction = "flipped"
)

// VoteOutcome is the pure result of applying a direction to an existing vote.
type VoteOutcome struct {
	Action   VoteAction
	Counters Counters
	// Current is the voter's vote after the cast; nil after a retraction.
	Current *Direction
	// ScoreDelta is the change in upvotes minus downvotes.
	ScoreDelta int
}

// ApplyVote computes the effect of casting direction when the voter's
// current vote is existing (nil when absent). Decrements floor at zero.
func ApplyVote(c Counters, existing *Direction, direction Direction) VoteOutcome {
	switch {
	case existing == nil:
		c.add(direction, 1)
		d := direction
		return VoteOutcome{Action: VoteInserted, Counters: c, Current: &d, ScoreDelta: int(direction)}
	case *existing == direction:
		c.add(direction, -1)
		return VoteOutcome{Action: VoteRetracted, Counters: c, ScoreDelta: -int(direction)}
	default:
		c.add(direction, 1)
		c.add(*existing, -1)
		d := direction
		return VoteOutcome{Action: VoteFlipped, Counters: c, Current: &d, ScoreDelta: 2 * int(direction)}
	}
}

func (c *Counters) add(d Direction, delta int) {
	field := &c.Upvotes
	if d == Down {
		field = &c.Downvotes
	}
	*field += delta
	if *field < 0 {
		*field = 0
	}
}

// CastVoteRequest is the request body for POST /posts/{id}/vote.
type CastVoteRequest struct {
	Direction Direction `json:"direction"`
}

// VoteResult is returned after a cast.
type VoteResult struct {
	PostID     uuid.UUID  `json:"post_id"`
	Action     VoteAction `json:"action"`
	Upvotes    int        `json:"upvotes"`
	Downvotes  int        `json:"downvotes"`
	MyVote     *Direction `json:"my_vote"`
	ScoreDelta int        `json:"score_delta"`
}

// Vote errors
var (
	ErrInvalidDirection = validation("direction must be 1 or -1")
	ErrVoteNotFound     = fmt.Errorf("vote %w", ErrNotFound)
)
