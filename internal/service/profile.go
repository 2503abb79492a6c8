package service

import (
	"context"

	"github.com/google/uuid"

	"atlasforum/internal/leveling"
	"atlasforum/internal/model"
	"atlasforum/internal/repository"
)

// ProfileService reads and edits profiles. Points are only ever changed by
// the worker through ProfileRepository.AwardPoints.
type ProfileService struct {
	repo repository.ProfileRepository
}

func NewProfileService(repo repository.ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo}
}

// Get returns a profile with its level progress.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*model.ProfileResponse, error) {
	if userID == uuid.Nil {
		return nil, model.ErrProfileNotFound
	}
	p, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return model.NewProfileResponse(p), nil
}

// Update edits the display name and bio of the caller's own profile.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, req model.UpdateProfileRequest) (*model.ProfileResponse, error) {
	if userID == uuid.Nil {
		return nil, model.ErrUnauthenticated
	}
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, userID, req.DisplayName, req.Bio)
	if err != nil {
		return nil, err
	}
	return model.NewProfileResponse(p), nil
}

// Levels returns the progression path, lowest tier first.
func (s *ProfileService) Levels() []leveling.Tier {
	return leveling.Tiers()
}
