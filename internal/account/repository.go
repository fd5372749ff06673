package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")

type Profile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	var profile Profile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, nickname, avatar_url, role, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&profile.ID, &profile.Email, &profile.Nickname,
		&profile.AvatarURL, &profile.Role, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}

	return profile, nil
}

func (r *Repository) UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET avatar_url = $2, updated_at = $3
		WHERE id = $1
	`, userID, avatarURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update avatar rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProfileNotFound
	}

	return nil
}
