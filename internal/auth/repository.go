package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const pgUniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user User) (User, error) {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, nickname, avatar_url, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, user.Email, user.PasswordHash, user.Nickname, user.AvatarURL, user.Role, now).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, nickname, avatar_url, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Nickname,
		&user.AvatarURL, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by email: %w", err)
	}

	return user, nil
}

// RotateRefreshToken replaces whatever refresh token the user currently
// holds with the freshly issued one. Delete and insert run in one
// transaction: a concurrent login for the same user either sees the old
// row or the new one, never zero rows and never two. Every login
// therefore invalidates all previously issued refresh tokens for that
// identity.
func (r *Repository) RotateRefreshToken(ctx context.Context, user User, token string, expiresAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refresh rotation tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM auth_refresh_tokens
		WHERE user_id = $1
	`, user.ID); err != nil {
		return fmt.Errorf("delete prior refresh token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (email, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.Email, user.ID, token, expiresAt.UTC(), time.Now().UTC()); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh rotation tx: %w", err)
	}

	return nil
}

// DeleteExpiredRefreshTokens prunes rows whose expiry has passed. Live
// rows are superseded on login, so what accumulates here is the trail of
// users who logged in once and never came back.
func (r *Repository) DeleteExpiredRefreshTokens(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT email
			FROM auth_refresh_tokens
			WHERE expires_at < NOW()
			ORDER BY expires_at ASC
			LIMIT $1
		)
		DELETE FROM auth_refresh_tokens t
		USING stale
		WHERE t.email = stale.email
	`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired refresh tokens rows affected: %w", err)
	}

	return affected, nil
}
