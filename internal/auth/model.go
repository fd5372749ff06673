package auth

import "time"

const RoleMember = "member"

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Nickname     string
	AvatarURL    string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPair is what a successful login hands back to the client: a
// short-lived stateless access token and a longer-lived refresh token
// whose single live copy is tracked server-side.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

type RefreshTokenRecord struct {
	Email     string
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
