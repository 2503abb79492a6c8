package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// User holds login credentials. Public data lives on Profile.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	PasswordHashed string    `db:"password_hashed" json:"-"` // "-" hides from JSON output
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Credential constraints
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// ValidUsername reports whether name is 3-30 characters of letters, digits or underscore.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrUsernameExists is returned when attempting to create a user with a taken username
	ErrUsernameExists = fmt.Errorf("username already exists: %w", ErrConflict)

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)

	ErrInvalidUsername = validation("username must be 3-30 letters, digits or underscores")
	ErrInvalidPassword = validation(fmt.Sprintf("password must be %d-%d characters", MinPasswordLength, MaxPasswordLength))
)
