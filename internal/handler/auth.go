package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"atlasforum/internal/httputil"
	"atlasforum/internal/model"
	"atlasforum/internal/transport/http/middleware"
)

// Accounts registers and authenticates users.
type Accounts interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.Profile, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.User, error)
}

// Sessions issues and revokes token pairs.
type Sessions interface {
	GenerateTokenPair(ctx context.Context, userID uuid.UUID, deviceInfo, ipAddress string) (*model.TokenPair, *model.RefreshToken, error)
	RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, uuid.UUID, error)
	RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	accounts Accounts
	sessions Sessions
	profiles Profiles
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(accounts Accounts, sessions Sessions, profiles Profiles) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		profiles: profiles,
	}
}

// Register handles POST /auth/register
// Creates the user and profile and signs the new user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	profile, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrUsernameExists) {
			httputil.WriteConflict(w, "Username already exists")
			return
		}
		httputil.WriteServiceError(w, err)
		return
	}

	tokens, _, err := h.sessions.GenerateTokenPair(r.Context(), profile.ID, r.UserAgent(), httputil.ClientIP(r))
	if err != nil {
		log.Error().Err(err).Stringer("user_id", profile.ID).Msg("issue tokens after register")
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, loginResponse(model.NewProfileResponse(profile), tokens))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Username == "" {
		httputil.WriteBadRequest(w, "Username is required")
		return
	}
	if req.Password == "" {
		httputil.WriteBadRequest(w, "Password is required")
		return
	}

	user, err := h.accounts.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			httputil.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		httputil.WriteServiceError(w, err)
		return
	}

	profile, err := h.profiles.Get(r.Context(), user.ID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	tokens, _, err := h.sessions.GenerateTokenPair(r.Context(), user.ID, r.UserAgent(), httputil.ClientIP(r))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse(profile, tokens))
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	tokens, _, err := h.sessions.RefreshTokens(r.Context(), req.RefreshToken, r.UserAgent(), httputil.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrRefreshTokenExpired):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Refresh token has expired")
		case errors.Is(err, model.ErrRefreshTokenReused):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenReused, "Refresh token reuse detected. Please login again.")
		case errors.Is(err, model.ErrUnauthenticated):
			httputil.WriteUnauthorized(w, "Invalid refresh token")
		default:
			httputil.WriteServiceError(w, err)
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout
// An unknown or already revoked token still logs out successfully.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req model.LogoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	err := h.sessions.RevokeRefreshToken(r.Context(), req.RefreshToken)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// LogoutAll handles POST /auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	if err := h.sessions.RevokeAllUserTokens(r.Context(), userID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out from all devices",
	})
}

func loginResponse(profile *model.ProfileResponse, tokens *model.TokenPair) model.LoginResponse {
	return model.LoginResponse{
		Profile:      profile,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	}
}
