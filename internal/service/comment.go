package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"atlasforum/internal/logging"
	"atlasforum/internal/model"
	"atlasforum/internal/queue"
	"atlasforum/internal/repository"
)

// TxBeginner starts database transactions; *sqlx.DB satisfies it.
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	db          TxBeginner
	publisher   queue.Publisher
	log         zerolog.Logger
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	db TxBeginner,
	publisher queue.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		db:          db,
		publisher:   publisher,
		log:         logging.Component("comment"),
	}
}

// Create adds a comment to a post. Uses transaction: insert comment + increment counter.
func (s *CommentService) Create(ctx context.Context, postID, userID uuid.UUID, req model.CreateCommentRequest) (*model.Comment, error) {
	if userID == uuid.Nil {
		return nil, model.ErrUnauthenticated
	}
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrPostNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, model.StoreError("begin comment transaction", err)
	}
	defer tx.Rollback()

	// The post can still vanish between Exists and here; the FK maps that to ErrPostNotFound.
	comment, err := s.commentRepo.Create(ctx, tx, postID, userID, req)
	if err != nil {
		return nil, err
	}

	if err := s.postRepo.IncrementCommentCount(ctx, tx, postID, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, model.StoreError("commit comment", err)
	}

	s.log.Debug().Stringer("post", postID).Stringer("comment", comment.ID).Msg("comment created")

	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, queue.StreamForum, queue.NewCommentCreatedEvent(comment)); err != nil {
			s.log.Warn().Err(err).Stringer("comment", comment.ID).Msg("failed to publish comment_created")
		}
	}

	return comment, nil
}

// List returns newest-first comments for a post.
func (s *CommentService) List(ctx context.Context, postID uuid.UUID, cursor *string, limit int) (*model.CommentListResponse, error) {
	limit = model.ClampLimit(limit, model.DefaultCommentLimit, model.MaxCommentLimit)

	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrPostNotFound
	}

	comments, next, err := s.commentRepo.GetByPostID(ctx, postID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []model.Comment{}
	}

	return &model.CommentListResponse{
		Comments:   comments,
		NextCursor: next,
		HasMore:    next != nil,
	}, nil
}
