package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"atlasforum/internal/model"
	"atlasforum/internal/repository"
)

// UserService handles registration and login.
type UserService struct {
	repo       repository.UserRepository
	bcryptCost int
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo, bcryptCost: bcrypt.DefaultCost}
}

// Register creates a new user account and its profile, which starts at
// zero points as a seeker.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.Profile, error) {
	req.Username = strings.TrimSpace(req.Username)
	if !model.ValidUsername(req.Username) {
		return nil, model.ErrInvalidUsername
	}
	if n := len(req.Password); n < model.MinPasswordLength || n > model.MaxPasswordLength {
		return nil, model.ErrInvalidPassword
	}

	var displayName *string
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		if utf8.RuneCountInString(name) > model.MaxDisplayNameLength {
			return nil, model.ErrDisplayNameTooLong
		}
		displayName = &name
	}

	// Check if username already exists
	exists, err := s.repo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrUsernameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       req.Username,
		PasswordHashed: string(hashedPassword),
	}

	// A concurrent registration can still win the race; the unique index
	// surfaces that as ErrUsernameExists.
	profile, err := s.repo.Create(ctx, user, displayName)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Login authenticates a user with username and password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, model.ErrNotFound) {
		// Don't reveal whether username exists or not
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}
