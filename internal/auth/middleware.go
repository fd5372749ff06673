package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

// Machine-readable rejection codes. Clients branch on these: NEED_LOGIN
// means no credential was presented at all (go log in), INVALID_TOKEN
// means a credential was presented but is unusable (session is bad, log
// in again).
const (
	CodeNeedLogin    = "NEED_LOGIN"
	CodeInvalidToken = "INVALID_TOKEN"
)

const bearerPrefix = "Bearer "

type principalKey struct{}

// IdentityResolver maps a token subject back to a stored user. The
// repository satisfies it.
type IdentityResolver interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// RequireAuth is the authentication gate every protected route goes
// through. The checks run in a fixed order and each one short-circuits:
//
//  1. no Authorization header        -> 401 NEED_LOGIN
//  2. token fails signature/expiry   -> 401 INVALID_TOKEN
//  3. subject matches no known user  -> 401 INVALID_TOKEN
//
// On success the resolved user is placed in the request context; read it
// back with PrincipalFrom.
func RequireAuth(codec *TokenCodec, resolver IdentityResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, CodeNeedLogin, "login required")
			return
		}

		if !strings.HasPrefix(header, bearerPrefix) {
			writeError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid authorization scheme")
			return
		}
		raw := strings.TrimSpace(header[len(bearerPrefix):])

		if !codec.Validate(raw) {
			writeError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid or expired token")
			return
		}

		email := codec.Subject(raw)
		user, err := resolver.GetUserByEmail(r.Context(), email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// Structurally valid and signed, but the subject does not
				// correspond to any known identity.
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "unknown token subject")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to resolve identity")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithPrincipal returns a context carrying an already-resolved user, as
// RequireAuth would produce.
func WithPrincipal(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

// PrincipalFrom returns the user resolved by RequireAuth for this
// request. The boolean is false on routes the gate does not wrap.
func PrincipalFrom(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(principalKey{}).(User)
	return user, ok
}
