package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(base64.StdEncoding.EncodeToString(testSecret), 3*time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	return codec
}

func testUser() User {
	return User{ID: 1, Email: "mia@example.com", Role: RoleMember}
}

func TestNewTokenCodec(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "valid base64 secret", secret: base64.StdEncoding.EncodeToString(testSecret)},
		{name: "not base64", secret: "%%%not-base64%%%", wantErr: true},
		{name: "empty", secret: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenCodec(tt.secret, 0, 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestIssueRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	user := testUser()

	pair, err := codec.Issue(user)
	require.NoError(t, err)

	assert.True(t, codec.Validate(pair.AccessToken))
	assert.Equal(t, user.Email, codec.Subject(pair.AccessToken))
	assert.WithinDuration(t, time.Now().Add(3*time.Hour), pair.AccessExpires, time.Minute)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), pair.RefreshExpires, time.Minute)
}

func TestIssueAccessTokenCarriesRole(t *testing.T) {
	codec := newTestCodec(t)

	pair, err := codec.Issue(testUser())
	require.NoError(t, err)

	claims := &accessClaims{}
	_, err = jwt.ParseWithClaims(pair.AccessToken, claims, func(*jwt.Token) (any, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	assert.Equal(t, RoleMember, claims.Role)
}

func TestRefreshTokenCarriesNoIdentity(t *testing.T) {
	codec := newTestCodec(t)

	pair, err := codec.Issue(testUser())
	require.NoError(t, err)

	// The refresh token is an opaque renewal credential: expiry only.
	assert.Empty(t, codec.Subject(pair.RefreshToken))
	assert.Equal(t, TokenMalformed, codec.Inspect(pair.RefreshToken))
}

func TestInspectExpired(t *testing.T) {
	codec := newTestCodec(t)

	expired := signTestToken(t, testSecret, jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mia@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleMember,
	})

	assert.Equal(t, TokenExpired, codec.Inspect(expired))
	assert.False(t, codec.Validate(expired))
	assert.Empty(t, codec.Subject(expired))
}

func TestInspectTamperedSignature(t *testing.T) {
	codec := newTestCodec(t)

	pair, err := codec.Issue(testUser())
	require.NoError(t, err)

	tampered := tamperSignature(t, pair.AccessToken)
	assert.Equal(t, TokenBadSignature, codec.Inspect(tampered))
	assert.False(t, codec.Validate(tampered))
	assert.Empty(t, codec.Subject(tampered))
}

func TestInspectForeignKey(t *testing.T) {
	codec := newTestCodec(t)

	foreign := signTestToken(t, []byte("another-32-byte-secret-value!!!!"), jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mia@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleMember,
	})

	assert.Equal(t, TokenBadSignature, codec.Inspect(foreign))
}

func TestInspectRejectsOtherAlgorithms(t *testing.T) {
	codec := newTestCodec(t)

	hs512 := signTestToken(t, testSecret, jwt.SigningMethodHS512, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mia@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleMember,
	})

	// Only HS256 is accepted; there is no algorithm negotiation.
	assert.Equal(t, TokenBadSignature, codec.Inspect(hs512))
	assert.False(t, codec.Validate(hs512))
}

func TestInspectGarbage(t *testing.T) {
	codec := newTestCodec(t)

	tests := []struct {
		name string
		raw  string
		want TokenStatus
	}{
		{name: "empty", raw: "", want: TokenMalformed},
		{name: "not a jwt", raw: "garbage", want: TokenMalformed},
		{name: "two segments", raw: "aaaa.bbbb", want: TokenMalformed},
		// alg=none is refused at the method check, before verification
		{name: "unsigned", raw: "eyJhbGciOiJub25lIn0.e30.", want: TokenBadSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codec.Inspect(tt.raw))
			assert.False(t, codec.Validate(tt.raw))
			assert.Empty(t, codec.Subject(tt.raw))
		})
	}
}

func TestInspectMissingSubject(t *testing.T) {
	codec := newTestCodec(t)

	noSubject := signTestToken(t, testSecret, jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleMember,
	})

	assert.Equal(t, TokenMalformed, codec.Inspect(noSubject))
}

func signTestToken(t *testing.T, secret []byte, method jwt.SigningMethod, claims accessClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

// tamperSignature changes the first character of the signature segment,
// which always alters the decoded signature bytes.
func tamperSignature(t *testing.T, token string) string {
	t.Helper()
	dot := strings.LastIndex(token, ".")
	require.Greater(t, dot, 0)

	replacement := byte('A')
	if token[dot+1] == 'A' {
		replacement = 'B'
	}
	return token[:dot+1] + string(replacement) + token[dot+2:]
}
