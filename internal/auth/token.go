package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 3 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenStatus classifies the outcome of inspecting a bearer token.
// Callers that only need a yes/no answer use Validate; the split lets
// the codec log the actual failure cause without leaking jwt library
// errors upward.
type TokenStatus int

const (
	TokenValid TokenStatus = iota
	TokenExpired
	TokenBadSignature
	TokenMalformed
)

func (s TokenStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	case TokenBadSignature:
		return "bad_signature"
	case TokenMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies the service's bearer tokens with a single
// process-wide HMAC-SHA256 key. Construct once at startup and share; the
// codec is immutable and safe for concurrent use.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenCodec decodes the base64-encoded signing secret and fixes both
// token lifetimes. Non-positive TTLs fall back to the defaults (3h access,
// 7d refresh).
func NewTokenCodec(secretBase64 string, accessTTL, refreshTTL time.Duration) (*TokenCodec, error) {
	secret, err := base64.StdEncoding.DecodeString(secretBase64)
	if err != nil {
		return nil, fmt.Errorf("decode token secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}

	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &TokenCodec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue mints an access token carrying {sub: email, role, exp} and a
// refresh token carrying only an expiry. The refresh token authorizes
// nothing by itself; it is an opaque renewal credential keyed by the
// ledger row, which is why it gets no identity claim. Persisting the
// refresh token is the caller's job.
func (c *TokenCodec) Issue(user User) (TokenPair, error) {
	now := time.Now().UTC()
	accessExp := now.Add(c.accessTTL)
	refreshExp := now.Add(c.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
		Role: user.Role,
	})
	signedAccess, err := access.SignedString(c.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	// The jti makes consecutive refresh tokens distinct even within the
	// same second; it carries no identity.
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	signedRefresh, err := refresh.SignedString(c.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:    signedAccess,
		AccessExpires:  accessExp,
		RefreshToken:   signedRefresh,
		RefreshExpires: refreshExp,
	}, nil
}

// Inspect parses and verifies an access token, collapsing every jwt
// library failure into one of the TokenStatus kinds. It never panics on
// garbage input. Only HS256 is accepted; any other algorithm in the
// header is rejected before verification, so there is no negotiation to
// confuse.
func (c *TokenCodec) Inspect(raw string) TokenStatus {
	if raw == "" {
		return TokenMalformed
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return TokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return TokenExpired
	case err != nil || !token.Valid:
		return TokenMalformed
	}

	if claims.Subject == "" {
		return TokenMalformed
	}

	return TokenValid
}

// Validate is the binary boundary the authentication gate consumes:
// a token is either usable or it is not.
func (c *TokenCodec) Validate(raw string) bool {
	return c.Inspect(raw) == TokenValid
}

// Subject returns the email the token was issued for, or "" when the
// token is expired, tampered with, or otherwise unusable. Expiry is
// enforced here, inside the parse, so every caller gets identical
// semantics.
func (c *TokenCodec) Subject(raw string) string {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return ""
	}

	return claims.Subject
}

func (c *TokenCodec) keyFunc(*jwt.Token) (any, error) {
	return c.secret, nil
}
