package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"atlasforum/internal/cache"
	"atlasforum/internal/leveling"
	"atlasforum/internal/model"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// postRow is a post joined with its author's profile.
type postRow struct {
	model.Post
	model.AuthorSummary
	AuthorPoints int64 `db:"author_points"`
}

func (r postRow) toPost() model.Post {
	p := r.Post
	if !p.Anonymous {
		author := r.AuthorSummary
		author.Level = leveling.LevelFor(r.AuthorPoints)
		p.Author = &author
	}
	return p
}

const postSelect = `
	SELECT p.id, p.user_id, p.title, p.content, p.channel, p.anonymous,
	       p.upvotes, p.downvotes, p.comment_count, p.created_at,
	       pr.id AS author_id, pr.username AS author_username,
	       pr.display_name AS author_display_name, pr.points AS author_points
	FROM posts p
	JOIN profiles pr ON pr.id = p.user_id
`

// Create inserts a new post. The request must already be normalized.
func (r *postRepository) Create(ctx context.Context, userID uuid.UUID, req model.CreatePostRequest) (*model.Post, error) {
	query := `
		INSERT INTO posts (user_id, title, content, channel, anonymous)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id uuid.UUID
	if err := r.db.GetContext(ctx, &id, query, userID, req.Title, req.Content, req.Channel, req.Anonymous); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return nil, model.ErrProfileNotFound
		}
		return nil, model.StoreError("insert post", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a single post with its author.
func (r *postRepository) GetByID(ctx context.Context, postID uuid.UUID) (*model.Post, error) {
	var row postRow
	err := r.db.GetContext(ctx, &row, postSelect+` WHERE p.id = $1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, model.StoreError("get post", err)
	}
	post := row.toPost()
	return &post, nil
}

// GetByIDs retrieves multiple posts by their IDs.
// Used for hydrating the feed from cache.
func (r *postRepository) GetByIDs(ctx context.Context, postIDs []uuid.UUID) ([]model.Post, error) {
	if len(postIDs) == 0 {
		return []model.Post{}, nil
	}

	var rows []postRow
	err := r.db.SelectContext(ctx, &rows, postSelect+` WHERE p.id = ANY($1::uuid[])`, pq.Array(uuidStrings(postIDs)))
	if err != nil {
		return nil, model.StoreError("get posts by ids", err)
	}

	// Re-order posts to match input order (important for feed ordering)
	byID := make(map[uuid.UUID]model.Post, len(rows))
	for _, row := range rows {
		byID[row.Post.ID] = row.toPost()
	}
	ordered := make([]model.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// List returns newest-first posts with keyset pagination.
func (r *postRepository) List(ctx context.Context, channel *model.Channel, cursor *string, limit int) ([]model.Post, *string, error) {
	query := postSelect + ` WHERE ($1::text IS NULL OR p.channel = $1)`
	args := []interface{}{channelArg(channel)}

	if cursor != nil {
		ts, id, err := ParseCursor(*cursor)
		if err != nil {
			return nil, nil, err
		}
		query += ` AND (p.created_at, p.id) < ($2, $3)`
		args = append(args, ts, id)
	}
	query += fmt.Sprintf(` ORDER BY p.created_at DESC, p.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	var rows []postRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, model.StoreError("list posts", err)
	}

	var nextCursor *string
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		c := FormatCursor(last.Post.CreatedAt, last.Post.ID)
		nextCursor = &c
	}

	posts := make([]model.Post, len(rows))
	for i, row := range rows {
		posts[i] = row.toPost()
	}
	return posts, nextCursor, nil
}

// RecentScores returns recent posts as cache entries scored by creation time.
func (r *postRepository) RecentScores(ctx context.Context, channel *model.Channel, limit int) ([]cache.PostScore, error) {
	query := `
		SELECT id, created_at
		FROM posts
		WHERE ($1::text IS NULL OR channel = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	type row struct {
		ID        uuid.UUID `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	var scored []row
	if err := r.db.SelectContext(ctx, &scored, query, channelArg(channel), limit); err != nil {
		return nil, model.StoreError("recent post scores", err)
	}

	out := make([]cache.PostScore, len(scored))
	for i, s := range scored {
		out[i] = cache.PostScore{PostID: s.ID, Timestamp: s.CreatedAt.UnixMicro()}
	}
	return out, nil
}

// GetAuthorID returns the author of a post (for event publishing).
func (r *postRepository) GetAuthorID(ctx context.Context, postID uuid.UUID) (uuid.UUID, error) {
	var authorID uuid.UUID
	err := r.db.GetContext(ctx, &authorID, `SELECT user_id FROM posts WHERE id = $1`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, model.ErrPostNotFound
	}
	if err != nil {
		return uuid.Nil, model.StoreError("get author id", err)
	}
	return authorID, nil
}

// Exists checks if a post exists.
func (r *postRepository) Exists(ctx context.Context, postID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID)
	if err != nil {
		return false, model.StoreError("check post exists", err)
	}
	return exists, nil
}

// IncrementCommentCount atomically updates the comment_count on a post.
func (r *postRepository) IncrementCommentCount(ctx context.Context, tx *sqlx.Tx, postID uuid.UUID, delta int) error {
	query := `UPDATE posts SET comment_count = GREATEST(comment_count + $1, 0) WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, delta, postID)
	if err != nil {
		return model.StoreError("update comment count", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return model.StoreError("get rows affected", err)
	}
	if rows == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

const recountSet = `
	upvotes   = (SELECT COUNT(*) FROM votes v WHERE v.post_id = p.id AND v.value = 1),
	downvotes = (SELECT COUNT(*) FROM votes v WHERE v.post_id = p.id AND v.value = -1)
`

// Recount recomputes one post's counters from the ledger.
func (r *postRepository) Recount(ctx context.Context, postID uuid.UUID) (model.Counters, error) {
	c, _, err := r.recount(ctx, postID)
	return c, err
}

// recount takes the same row lock as a vote cast before counting, so it
// waits for in-flight casts and its count statement sees their votes.
func (r *postRepository) recount(ctx context.Context, postID uuid.UUID) (model.Counters, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Counters{}, false, model.StoreError("begin transaction", err)
	}
	defer tx.Rollback()

	var before model.Counters
	err = tx.GetContext(ctx, &before, `SELECT upvotes, downvotes FROM posts WHERE id = $1 FOR UPDATE`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Counters{}, false, model.ErrPostNotFound
	}
	if err != nil {
		return model.Counters{}, false, model.StoreError("lock post", err)
	}

	var after model.Counters
	query := `UPDATE posts p SET` + recountSet + `WHERE p.id = $1 RETURNING upvotes, downvotes`
	if err := tx.GetContext(ctx, &after, query, postID); err != nil {
		return model.Counters{}, false, model.StoreError("recount post", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Counters{}, false, model.StoreError("commit transaction", err)
	}
	return after, after != before, nil
}

// RecountAll finds posts whose counters differ from the ledger and recounts
// each under its row lock. Returns how many posts changed.
func (r *postRepository) RecountAll(ctx context.Context) (int64, error) {
	query := `
		SELECT p.id
		FROM posts p
		LEFT JOIN votes v ON v.post_id = p.id
		GROUP BY p.id
		HAVING p.upvotes <> COUNT(v.id) FILTER (WHERE v.value = 1)
		    OR p.downvotes <> COUNT(v.id) FILTER (WHERE v.value = -1)
	`
	var drifted []uuid.UUID
	if err := r.db.SelectContext(ctx, &drifted, query); err != nil {
		return 0, model.StoreError("find drifted posts", err)
	}

	var repaired int64
	for _, id := range drifted {
		_, changed, err := r.recount(ctx, id)
		if errors.Is(err, model.ErrPostNotFound) {
			continue
		}
		if err != nil {
			return repaired, err
		}
		if changed {
			repaired++
		}
	}
	return repaired, nil
}

func channelArg(channel *model.Channel) interface{} {
	if channel == nil {
		return nil
	}
	return string(*channel)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
