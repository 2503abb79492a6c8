package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"atlasforum/internal/httputil"
	"atlasforum/internal/model"
	"atlasforum/internal/transport/http/middleware"
)

// Comments creates and lists comments on a post.
type Comments interface {
	Create(ctx context.Context, postID, userID uuid.UUID, req model.CreateCommentRequest) (*model.Comment, error)
	List(ctx context.Context, postID uuid.UUID, cursor *string, limit int) (*model.CommentListResponse, error)
}

type CommentHandler struct {
	comments Comments
}

func NewCommentHandler(comments Comments) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Create handles POST /posts/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID, ok := httputil.URLParamUUID(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	var req model.CreateCommentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.comments.Create(r.Context(), postID, userID, req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// List handles GET /posts/{id}/comments?cursor=&limit=
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, ok := httputil.URLParamUUID(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	limit, ok := httputil.QueryLimit(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid limit parameter")
		return
	}

	comments, err := h.comments.List(r.Context(), postID, httputil.QueryCursor(r), limit)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comments)
}
