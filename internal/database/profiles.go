package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/lib/pq"
)

// ProfileRepository stores user profiles in user_profiles
type ProfileRepository struct {
	db  *DB
	now func() time.Time
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db, now: time.Now}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const profileColumns = `user_id, display_name, expertise, goals, equipment, preferences, created_at, updated_at`

// GetProfile returns the stored profile, or (nil, nil) when none exists
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`
	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// SaveProfile inserts or replaces a profile. CreatedAt is kept from the
// first insert; UpdatedAt is set to now.
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.UserID == "" {
		return models.NewValidationError("UserID", "is required")
	}
	args, err := profileArgs(profile, r.now())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			expertise    = EXCLUDED.expertise,
			goals        = EXCLUDED.goals,
			equipment    = EXCLUDED.equipment,
			preferences  = EXCLUDED.preferences,
			updated_at   = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&profile.CreatedAt, &profile.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// DeleteProfile removes a profile; deleting a missing profile is a NotFoundError
func (r *ProfileRepository) DeleteProfile(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n == 0 {
		return models.NewNotFoundError("profile", userID)
	}
	return nil
}

// profileArgs maps a profile onto the insert placeholders in column order
func profileArgs(p *models.Profile, now time.Time) ([]any, error) {
	prefs := p.Preferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	expertise := p.Expertise
	if expertise == "" {
		expertise = models.ExpertiseBeginner
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	return []any{
		p.UserID,
		p.DisplayName,
		string(expertise),
		pq.Array(nonNil(p.Goals)),
		pq.Array(nonNil(p.Equipment)),
		prefsJSON,
		created,
		now,
	}, nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p         models.Profile
		expertise string
		goals     pq.StringArray
		equipment pq.StringArray
		prefsJSON []byte
	)
	if err := row.Scan(&p.UserID, &p.DisplayName, &expertise, &goals, &equipment, &prefsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Expertise = models.ExpertiseLevel(expertise)
	p.Goals = []string(goals)
	p.Equipment = []string(equipment)
	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &p.Preferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
