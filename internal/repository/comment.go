package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"atlasforum/internal/leveling"
	"atlasforum/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

type commentRow struct {
	model.Comment
	model.AuthorSummary
	AuthorPoints int64 `db:"author_points"`
}

func (r commentRow) toComment() model.Comment {
	c := r.Comment
	if !c.Anonymous {
		author := r.AuthorSummary
		author.Level = leveling.LevelFor(r.AuthorPoints)
		c.Author = &author
	}
	return c
}

const commentSelect = `
	SELECT c.id, c.post_id, c.user_id, c.content, c.anonymous, c.created_at,
	       pr.id AS author_id, pr.username AS author_username,
	       pr.display_name AS author_display_name, pr.points AS author_points
	FROM comments c
	JOIN profiles pr ON pr.id = c.user_id
`

// Create inserts a comment inside the caller's transaction.
func (r *commentRepository) Create(ctx context.Context, tx *sqlx.Tx, postID, userID uuid.UUID, req model.CreateCommentRequest) (*model.Comment, error) {
	query := `
		WITH inserted AS (
			INSERT INTO comments (post_id, user_id, content, anonymous)
			VALUES ($1, $2, $3, $4)
			RETURNING id, post_id, user_id, content, anonymous, created_at
		)
		SELECT c.id, c.post_id, c.user_id, c.content, c.anonymous, c.created_at,
		       pr.id AS author_id, pr.username AS author_username,
		       pr.display_name AS author_display_name, pr.points AS author_points
		FROM inserted c
		JOIN profiles pr ON pr.id = c.user_id
	`
	var row commentRow
	if err := tx.GetContext(ctx, &row, query, postID, userID, req.Content, req.Anonymous); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			if pqErr.Constraint == "comments_post_id_fkey" {
				return nil, model.ErrPostNotFound
			}
			return nil, model.ErrUserNotFound
		}
		return nil, model.StoreError("insert comment", err)
	}
	c := row.toComment()
	return &c, nil
}

// GetByPostID returns newest-first comments with keyset pagination.
func (r *commentRepository) GetByPostID(ctx context.Context, postID uuid.UUID, cursor *string, limit int) ([]model.Comment, *string, error) {
	query := commentSelect + ` WHERE c.post_id = $1`
	args := []interface{}{postID}

	if cursor != nil {
		ts, id, err := ParseCursor(*cursor)
		if err != nil {
			return nil, nil, err
		}
		query += ` AND (c.created_at, c.id) < ($2, $3)`
		args = append(args, ts, id)
	}
	query += fmt.Sprintf(` ORDER BY c.created_at DESC, c.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, model.StoreError("get comments", err)
	}

	var nextCursor *string
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		c := FormatCursor(last.Comment.CreatedAt, last.Comment.ID)
		nextCursor = &c
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = row.toComment()
	}
	return comments, nextCursor, nil
}
