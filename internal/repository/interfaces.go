package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"atlasforum/internal/cache"
	"atlasforum/internal/model"
)

type UserRepository interface {
	// Create inserts the user and its profile in one transaction.
	Create(ctx context.Context, user *model.User, displayName *string) (*model.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	Update(ctx context.Context, id uuid.UUID, displayName, bio *string) (*model.Profile, error)
	// AwardPoints adds a non-negative amount once per eventID and stores the
	// recomputed level in the same transaction. The bool is false when
	// eventID was already awarded.
	AwardPoints(ctx context.Context, eventID, userID uuid.UUID, points int64) (*model.Profile, bool, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID, replacedBy *uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, userID uuid.UUID, req model.CreatePostRequest) (*model.Post, error)
	GetByID(ctx context.Context, postID uuid.UUID) (*model.Post, error)
	// GetByIDs returns posts in the order of postIDs, skipping missing ones.
	GetByIDs(ctx context.Context, postIDs []uuid.UUID) ([]model.Post, error)
	// List returns newest-first posts, optionally filtered by channel, older
	// than cursor.
	List(ctx context.Context, channel *model.Channel, cursor *string, limit int) ([]model.Post, *string, error)
	// RecentScores returns (post, created_at) pairs for warming the feed cache.
	RecentScores(ctx context.Context, channel *model.Channel, limit int) ([]cache.PostScore, error)
	GetAuthorID(ctx context.Context, postID uuid.UUID) (uuid.UUID, error)
	Exists(ctx context.Context, postID uuid.UUID) (bool, error)
	IncrementCommentCount(ctx context.Context, tx *sqlx.Tx, postID uuid.UUID, delta int) error
	// Recount recomputes one post's counters from the vote ledger.
	Recount(ctx context.Context, postID uuid.UUID) (model.Counters, error)
	// RecountAll recomputes every post whose counters drifted from the
	// ledger and returns how many rows changed.
	RecountAll(ctx context.Context) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, postID, userID uuid.UUID, req model.CreateCommentRequest) (*model.Comment, error)
	GetByPostID(ctx context.Context, postID uuid.UUID, cursor *string, limit int) ([]model.Comment, *string, error)
}

// VoteStore runs vote casts as single transactions.
type VoteStore interface {
	// RunInTx executes fn in one transaction. fn's error rolls it back.
	RunInTx(ctx context.Context, fn func(tx VoteTx) error) error
	// GetUserVotes returns the user's vote value per post for the given posts.
	GetUserVotes(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]model.Direction, error)
}

// VoteTx is the ledger and counter access available inside a vote transaction.
type VoteTx interface {
	// LockPostCounters reads a post's counters and holds its row lock until
	// the transaction ends. Returns model.ErrPostNotFound for unknown posts.
	LockPostCounters(ctx context.Context, postID uuid.UUID) (model.Counters, error)
	// GetVote returns the voter's ledger entry, or nil when absent.
	GetVote(ctx context.Context, voterID, postID uuid.UUID) (*model.Vote, error)
	InsertVote(ctx context.Context, voterID, postID uuid.UUID, value model.Direction) (uuid.UUID, error)
	UpdateVote(ctx context.Context, voteID uuid.UUID, value model.Direction) error
	DeleteVote(ctx context.Context, voteID uuid.UUID) error
	SetPostCounters(ctx context.Context, postID uuid.UUID, c model.Counters) error
}
