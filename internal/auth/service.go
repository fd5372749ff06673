package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pet-community-api/internal/observability"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore is the slice of the repository the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// RefreshStore is the refresh-token ledger: at most one live token per
// user, enforced by rotation inside a single transaction.
type RefreshStore interface {
	RotateRefreshToken(ctx context.Context, user User, token string, expiresAt time.Time) error
}

type Service struct {
	users   UserStore
	refresh RefreshStore
	codec   *TokenCodec
	logger  *observability.Logger
}

func NewService(users UserStore, refresh RefreshStore, codec *TokenCodec, logger *observability.Logger) *Service {
	return &Service{users: users, refresh: refresh, codec: codec, logger: logger}
}

func (s *Service) Signup(ctx context.Context, email, password, nickname string) (User, TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	nickname = strings.TrimSpace(nickname)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, User{
		Email:        email,
		PasswordHash: string(hash),
		Nickname:     nickname,
		Role:         RoleMember,
	})
	if err != nil {
		return User{}, TokenPair{}, err
	}

	tokens, err := s.IssueFor(ctx, user)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (User, TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, TokenPair{}, ErrInvalidCredentials
		}
		return User{}, TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, TokenPair{}, ErrInvalidCredentials
	}

	tokens, err := s.IssueFor(ctx, user)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	return user, tokens, nil
}

// IssueFor is the single issuance path: mint the pair, then rotate the
// ledger so the new refresh token is the only live one. Local login,
// signup, and federated login all end up here.
func (s *Service) IssueFor(ctx context.Context, user User) (TokenPair, error) {
	tokens, err := s.codec.Issue(user)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.refresh.RotateRefreshToken(ctx, user, tokens.RefreshToken, tokens.RefreshExpires); err != nil {
		return TokenPair{}, err
	}

	s.logger.Info("tokens_issued", map[string]any{
		"user_id":        user.ID,
		"access_expires": tokens.AccessExpires.Format(time.RFC3339),
	})

	return tokens, nil
}
