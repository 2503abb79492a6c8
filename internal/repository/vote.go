package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"atlasforum/internal/model"
)

type voteStore struct {
	db *sqlx.DB
}

func NewVoteStore(db *sqlx.DB) VoteStore {
	return &voteStore{db: db}
}

// RunInTx begins a transaction, hands it to fn, and commits when fn succeeds.
func (s *voteStore) RunInTx(ctx context.Context, fn func(tx VoteTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.StoreError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&voteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return model.StoreError("commit transaction", err)
	}
	return nil
}

// GetUserVotes returns post_id -> value for the posts the user has voted on.
func (s *voteStore) GetUserVotes(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]model.Direction, error) {
	result := make(map[uuid.UUID]model.Direction)
	if len(postIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		PostID uuid.UUID       `db:"post_id"`
		Value  model.Direction `db:"value"`
	}
	query := `SELECT post_id, value FROM votes WHERE user_id = $1 AND post_id = ANY($2::uuid[])`
	if err := s.db.SelectContext(ctx, &rows, query, userID, pq.Array(uuidStrings(postIDs))); err != nil {
		return nil, model.StoreError("get user votes", err)
	}

	for _, r := range rows {
		result[r.PostID] = r.Value
	}
	return result, nil
}

type voteTx struct {
	tx *sqlx.Tx
}

// LockPostCounters takes the post's row lock. Concurrent casts on the same
// post queue here until the holder commits or rolls back.
func (t *voteTx) LockPostCounters(ctx context.Context, postID uuid.UUID) (model.Counters, error) {
	var c model.Counters
	err := t.tx.GetContext(ctx, &c, `SELECT upvotes, downvotes FROM posts WHERE id = $1 FOR UPDATE`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Counters{}, model.ErrPostNotFound
	}
	if err != nil {
		return model.Counters{}, model.StoreError("lock post counters", err)
	}
	return c, nil
}

func (t *voteTx) GetVote(ctx context.Context, voterID, postID uuid.UUID) (*model.Vote, error) {
	var v model.Vote
	query := `
		SELECT id, user_id, post_id, value, created_at, updated_at
		FROM votes
		WHERE user_id = $1 AND post_id = $2
	`
	err := t.tx.GetContext(ctx, &v, query, voterID, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.StoreError("get vote", err)
	}
	return &v, nil
}

func (t *voteTx) InsertVote(ctx context.Context, voterID, postID uuid.UUID, value model.Direction) (uuid.UUID, error) {
	var id uuid.UUID
	query := `INSERT INTO votes (user_id, post_id, value) VALUES ($1, $2, $3) RETURNING id`
	if err := t.tx.GetContext(ctx, &id, query, voterID, postID, value); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return uuid.Nil, model.ErrUserNotFound
		}
		return uuid.Nil, model.StoreError("insert vote", err)
	}
	return id, nil
}

func (t *voteTx) UpdateVote(ctx context.Context, voteID uuid.UUID, value model.Direction) error {
	result, err := t.tx.ExecContext(ctx, `UPDATE votes SET value = $1, updated_at = NOW() WHERE id = $2`, value, voteID)
	if err != nil {
		return model.StoreError("update vote", err)
	}
	return expectOneRow(result, model.ErrVoteNotFound)
}

func (t *voteTx) DeleteVote(ctx context.Context, voteID uuid.UUID) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM votes WHERE id = $1`, voteID)
	if err != nil {
		return model.StoreError("delete vote", err)
	}
	return expectOneRow(result, model.ErrVoteNotFound)
}

func (t *voteTx) SetPostCounters(ctx context.Context, postID uuid.UUID, c model.Counters) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE posts SET upvotes = GREATEST($1, 0), downvotes = GREATEST($2, 0) WHERE id = $3`,
		c.Upvotes, c.Downvotes, postID)
	if err != nil {
		return model.StoreError("set post counters", err)
	}
	return expectOneRow(result, model.ErrPostNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return model.StoreError("get rows affected", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
