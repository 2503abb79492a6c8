package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"atlasforum/internal/httputil"
	"atlasforum/internal/leveling"
	"atlasforum/internal/model"
	"atlasforum/internal/transport/http/middleware"
)

// Profiles reads and edits profiles.
type Profiles interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.ProfileResponse, error)
	Update(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (*model.ProfileResponse, error)
	Levels() []leveling.Tier
}

type ProfileHandler struct {
	profiles Profiles
}

func NewProfileHandler(profiles Profiles) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me handles GET /me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateMe handles PATCH /me/profile
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req model.UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	profile, err := h.profiles.Update(r.Context(), userID, req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// Get handles GET /profiles/{id}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.URLParamUUID(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid profile ID")
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// Levels handles GET /levels
func (h *ProfileHandler) Levels(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string][]leveling.Tier{
		"levels": h.profiles.Levels(),
	})
}
