package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"atlasforum/internal/config"
	"atlasforum/internal/logging"
	"atlasforum/internal/model"
	"atlasforum/internal/repository"
)

// AuthService handles authentication-related business logic with refresh token rotation and reuse detection.
type AuthService struct {
	refreshTokenRepo repository.RefreshTokenRepository
	config           *config.Config
	clock            clockwork.Clock
	log              zerolog.Logger
}

func NewAuthService(refreshTokenRepo repository.RefreshTokenRepository, cfg *config.Config, clock clockwork.Clock) *AuthService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthService{
		refreshTokenRepo: refreshTokenRepo,
		config:           cfg,
		clock:            clock,
		log:              logging.Component("auth"),
	}
}

// GenerateTokenPair issues a new access token and persists a refresh token.
func (s *AuthService) GenerateTokenPair(ctx context.Context, userID uuid.UUID, deviceInfo, ipAddress string) (*model.TokenPair, *model.RefreshToken, error) {
	accessToken, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshTokenRaw := uuid.New().String()
	refreshToken := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(refreshTokenRaw),
		ExpiresAt: s.clock.Now().Add(time.Duration(s.config.RefreshTokenMaxAge) * time.Second),
	}
	if deviceInfo != "" {
		refreshToken.DeviceInfo = &deviceInfo
	}
	if ipAddress != "" {
		refreshToken.IPAddress = &ipAddress
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return nil, nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenRaw,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, refreshToken, nil
}

// RefreshTokens validates the refresh token and rotates a new pair.
// Presenting an already revoked token revokes every token of its owner.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, uuid.UUID, error) {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("refresh: %w", model.ErrUnauthenticated)
		}
		return nil, uuid.Nil, err
	}

	if token.IsRevoked() {
		if err := s.refreshTokenRepo.RevokeAllForUser(ctx, token.UserID); err != nil {
			s.log.Error().Err(err).Stringer("user", token.UserID).Msg("failed to revoke token family after reuse")
		} else {
			s.log.Warn().Stringer("user", token.UserID).Msg("refresh token reuse detected, all sessions revoked")
		}
		return nil, uuid.Nil, model.ErrRefreshTokenReused
	}

	if token.IsExpired(s.clock.Now()) {
		return nil, uuid.Nil, model.ErrRefreshTokenExpired
	}

	pair, replacement, err := s.GenerateTokenPair(ctx, token.UserID, deviceInfo, ipAddress)
	if err != nil {
		return nil, uuid.Nil, err
	}

	if err := s.refreshTokenRepo.Revoke(ctx, token.ID, &replacement.ID); err != nil {
		s.log.Error().Err(err).Stringer("token", token.ID).Msg("failed to revoke rotated refresh token")
	}

	return pair, token.UserID, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		return err
	}
	return s.refreshTokenRepo.Revoke(ctx, token.ID, nil)
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return model.ErrUnauthenticated
	}
	return s.refreshTokenRepo.RevokeAllForUser(ctx, userID)
}

// PruneExpired deletes refresh tokens that expired more than olderThan ago.
func (s *AuthService) PruneExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("deleted", n).Dur("older_than", olderThan).Msg("expired refresh tokens pruned")
	return n, nil
}

func (s *AuthService) generateAccessToken(userID uuid.UUID) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
