package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"atlasforum/internal/leveling"
	"atlasforum/internal/model"
)

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts the user and its seeker-level profile together.
func (r *userRepository) Create(ctx context.Context, u *model.User, displayName *string) (*model.Profile, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, model.StoreError("begin transaction", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO users (username, password_hashed)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, u.Username, u.PasswordHashed).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, model.ErrUsernameExists
		}
		return nil, model.StoreError("insert user", err)
	}

	var profile model.Profile
	err = tx.GetContext(ctx, &profile, `
		INSERT INTO profiles (id, username, display_name, level)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, display_name, bio, points, level, created_at, updated_at
	`, u.ID, u.Username, displayName, leveling.Seeker)
	if err != nil {
		return nil, model.StoreError("insert profile", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, model.StoreError("commit transaction", err)
	}
	return &profile, nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, username, password_hashed, created_at FROM users WHERE id = $1`, id)
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, username, password_hashed, created_at FROM users WHERE username = $1`, username)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, model.StoreError("get user", err)
	}
	return &u, nil
}

// ExistsByUsername checks if a username is already taken
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username)
	if err != nil {
		return false, model.StoreError("check username", err)
	}
	return exists, nil
}
