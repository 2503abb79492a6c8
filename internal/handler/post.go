package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"atlasforum/internal/httputil"
	"atlasforum/internal/model"
	"atlasforum/internal/transport/http/middleware"
)

// Posts creates and lists posts.
type Posts interface {
	Create(ctx context.Context, userID uuid.UUID, req model.CreatePostRequest) (*model.Post, error)
	Get(ctx context.Context, postID, viewerID uuid.UUID) (*model.Post, error)
	List(ctx context.Context, viewerID uuid.UUID, rawChannel string, cursor *string, limit int) (*model.PostListResponse, error)
}

type PostHandler struct {
	posts Posts
}

func NewPostHandler(posts Posts) *PostHandler {
	return &PostHandler{posts: posts}
}

// List handles GET /posts?channel=&cursor=&limit=
// Anonymous viewers get the same feed without my_vote.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.QueryLimit(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid limit parameter")
		return
	}

	viewerID, _ := middleware.GetUserIDFromContext(r.Context())
	posts, err := h.posts.List(r.Context(), viewerID, r.URL.Query().Get("channel"), httputil.QueryCursor(r), limit)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Create handles POST /posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreatePostRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.posts.Create(r.Context(), userID, req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// Get handles GET /posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID, ok := httputil.URLParamUUID(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	viewerID, _ := middleware.GetUserIDFromContext(r.Context())
	post, err := h.posts.Get(r.Context(), postID, viewerID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}
