package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"atlasforum/internal/leveling"
)

// Profile is a user's public record. ID equals the owning user's ID.
type Profile struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Username    string         `db:"username" json:"username"`
	DisplayName *string        `db:"display_name" json:"display_name"`
	Bio         *string        `db:"bio" json:"bio"`
	Points      int64          `db:"points" json:"points"`
	Level       leveling.Level `db:"level" json:"level"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// AuthorSummary is the minimal author info attached to posts and comments.
type AuthorSummary struct {
	ID          uuid.UUID      `db:"author_id" json:"id"`
	Username    string         `db:"author_username" json:"username"`
	DisplayName *string        `db:"author_display_name" json:"display_name"`
	Level       leveling.Level `db:"author_level" json:"level"`
}

// ProfileResponse is a profile with its progression details.
type ProfileResponse struct {
	*Profile
	Progress leveling.Progress `json:"progress"`
}

// NewProfileResponse attaches progress derived from the profile's points.
func NewProfileResponse(p *Profile) *ProfileResponse {
	return &ProfileResponse{Profile: p, Progress: leveling.ProgressFor(p.Points)}
}

// UpdateProfileRequest is the request body for PATCH /me/profile.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

// Profile constraints
const (
	MaxDisplayNameLength = 50
	MaxBioLength         = 500
)

// Profile errors
var (
	ErrProfileNotFound    = fmt.Errorf("profile %w", ErrNotFound)
	ErrDisplayNameTooLong = validation(fmt.Sprintf("display name exceeds %d characters", MaxDisplayNameLength))
	ErrBioTooLong         = validation(fmt.Sprintf("bio exceeds %d characters", MaxBioLength))
)

// Normalize trims both fields, turns blanks into nil, and validates lengths.
func (r *UpdateProfileRequest) Normalize() error {
	r.DisplayName = trimOptional(r.DisplayName)
	r.Bio = trimOptional(r.Bio)

	if r.DisplayName != nil && utf8.RuneCountInString(*r.DisplayName) > MaxDisplayNameLength {
		return ErrDisplayNameTooLong
	}
	if r.Bio != nil && utf8.RuneCountInString(*r.Bio) > MaxBioLength {
		return ErrBioTooLong
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
