package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"atlasforum/internal/leveling"
	"atlasforum/internal/model"
)

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `id, username, display_name, bio, points, level, created_at, updated_at`

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var p model.Profile
	err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrProfileNotFound
	}
	if err != nil {
		return nil, model.StoreError("get profile", err)
	}
	return withDerivedLevel(&p), nil
}

// Update replaces the display name and bio. Nil clears a field.
func (r *profileRepository) Update(ctx context.Context, id uuid.UUID, displayName, bio *string) (*model.Profile, error) {
	query := `
		UPDATE profiles
		SET display_name = $2, bio = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	var p model.Profile
	err := r.db.GetContext(ctx, &p, query, id, displayName, bio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrProfileNotFound
	}
	if err != nil {
		return nil, model.StoreError("update profile", err)
	}
	return withDerivedLevel(&p), nil
}

// AwardPoints locks the profile, records eventID in point_awards and adds
// points with the level derived from the new total, all in one transaction.
// An eventID that was already recorded changes nothing and reports false.
func (r *profileRepository) AwardPoints(ctx context.Context, eventID, userID uuid.UUID, points int64) (*model.Profile, bool, error) {
	if points < 0 {
		return nil, false, fmt.Errorf("%w: points cannot decrease", model.ErrValidationFailed)
	}
	if eventID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: award needs an event id", model.ErrValidationFailed)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, model.StoreError("begin transaction", err)
	}
	defer tx.Rollback()

	var p model.Profile
	err = tx.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, model.ErrProfileNotFound
	}
	if err != nil {
		return nil, false, model.StoreError("lock profile", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO point_awards (event_id, user_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`, eventID, userID, points)
	if err != nil {
		return nil, false, model.StoreError("record award", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, model.StoreError("record award", err)
	}
	if inserted == 0 {
		return withDerivedLevel(&p), false, nil
	}

	total := p.Points + points
	err = tx.GetContext(ctx, &p, `
		UPDATE profiles
		SET points = $2, level = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileColumns, userID, total, leveling.LevelFor(total))
	if err != nil {
		return nil, false, model.StoreError("add points", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, model.StoreError("commit transaction", err)
	}
	return &p, true, nil
}

// withDerivedLevel sets Level from Points; the stored column is only a copy
// kept for ad-hoc queries.
func withDerivedLevel(p *model.Profile) *model.Profile {
	p.Level = leveling.LevelFor(p.Points)
	return p
}
