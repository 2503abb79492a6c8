package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlasforum/internal/model"
)

type failingBeginner struct {
	calls int
}

func (f *failingBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func existingPost(id uuid.UUID) func(ctx context.Context, postID uuid.UUID) (bool, error) {
	return func(ctx context.Context, postID uuid.UUID) (bool, error) {
		return postID == id, nil
	}
}

func TestCommentService_Create_Rejects(t *testing.T) {
	postID := uuid.New()
	db := &failingBeginner{}
	svc := NewCommentService(&mockCommentRepository{}, &mockPostRepository{existsFn: existingPost(postID)}, db, &mockPublisher{})

	tests := []struct {
		name   string
		postID uuid.UUID
		userID uuid.UUID
		req    model.CreateCommentRequest
		want   error
	}{
		{"anonymous caller", postID, uuid.Nil, model.CreateCommentRequest{Content: "hi"}, model.ErrUnauthenticated},
		{"blank content", postID, uuid.New(), model.CreateCommentRequest{Content: "  \n "}, model.ErrContentRequired},
		{"content too long", postID, uuid.New(), model.CreateCommentRequest{Content: strings.Repeat("x", 2001)}, model.ErrContentTooLong},
		{"missing post", uuid.New(), uuid.New(), model.CreateCommentRequest{Content: "hi"}, model.ErrPostNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.postID, tt.userID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, db.calls, "no transaction is opened for rejected input")
}

func TestCommentService_Create_BeginFailure(t *testing.T) {
	postID := uuid.New()
	pub := &mockPublisher{}
	svc := NewCommentService(&mockCommentRepository{}, &mockPostRepository{existsFn: existingPost(postID)}, &failingBeginner{}, pub)

	_, err := svc.Create(context.Background(), postID, uuid.New(), model.CreateCommentRequest{Content: "hi"})

	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Empty(t, pub.published())
}

func TestCommentService_List(t *testing.T) {
	postID := uuid.New()
	next := "cursor"
	var gotLimit int
	comments := &mockCommentRepository{
		getByPostIDFn: func(ctx context.Context, id uuid.UUID, cursor *string, limit int) ([]model.Comment, *string, error) {
			gotLimit = limit
			return []model.Comment{{ID: uuid.New(), PostID: id, Content: "first"}}, &next, nil
		},
	}
	svc := NewCommentService(comments, &mockPostRepository{existsFn: existingPost(postID)}, nil, nil)

	resp, err := svc.List(context.Background(), postID, nil, 0)

	require.NoError(t, err)
	assert.Len(t, resp.Comments, 1)
	assert.True(t, resp.HasMore)
	assert.Equal(t, model.DefaultCommentLimit, gotLimit)
}

func TestCommentService_List_PostNotFound(t *testing.T) {
	svc := NewCommentService(&mockCommentRepository{}, &mockPostRepository{existsFn: existingPost(uuid.New())}, nil, nil)

	_, err := svc.List(context.Background(), uuid.New(), nil, 10)

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCommentService_List_EmptyIsNotNil(t *testing.T) {
	postID := uuid.New()
	svc := NewCommentService(&mockCommentRepository{}, &mockPostRepository{existsFn: existingPost(postID)}, nil, nil)

	resp, err := svc.List(context.Background(), postID, nil, 10)

	require.NoError(t, err)
	assert.NotNil(t, resp.Comments)
	assert.False(t, resp.HasMore)
}
