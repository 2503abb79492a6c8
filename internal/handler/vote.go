package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"atlasforum/internal/httputil"
	"atlasforum/internal/model"
	"atlasforum/internal/transport/http/middleware"
)

// Votes casts votes on posts.
type Votes interface {
	CastVote(ctx context.Context, voterID, postID uuid.UUID, direction model.Direction) (*model.VoteResult, error)
}

type VoteHandler struct {
	votes Votes
}

func NewVoteHandler(votes Votes) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// Cast handles POST /posts/{id}/vote
// Repeating the current direction retracts the vote; the opposite one flips it.
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
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

	var req model.CastVoteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.votes.CastVote(r.Context(), userID, postID, req.Direction)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
