package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pet-community-api/internal/auth"
	"pet-community-api/internal/observability"
)

var ErrUnknownProvider = errors.New("unknown federation provider")

// ErrConflictingIdentity is reserved for disambiguating two local
// identities claiming the same email from different providers. Current
// logic always prefers the existing local identity, so nothing produces
// it yet.
var ErrConflictingIdentity = errors.New("conflicting identity")

// ProviderClient is what the service needs from the HTTP client; tests
// substitute a stub.
type ProviderClient interface {
	Exchange(ctx context.Context, provider Provider, code, state string) (string, error)
	FetchProfile(ctx context.Context, provider Provider, providerToken string) (Profile, error)
}

// TokenIssuer is the shared issuance path; *auth.Service satisfies it.
type TokenIssuer interface {
	IssueFor(ctx context.Context, user auth.User) (auth.TokenPair, error)
}

type Service struct {
	providers map[string]Provider
	client    ProviderClient
	users     auth.UserStore
	issuer    TokenIssuer
	logger    *observability.Logger
}

func NewService(providers []Provider, client ProviderClient, users auth.UserStore, issuer TokenIssuer, logger *observability.Logger) *Service {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name] = p
	}

	return &Service{providers: byName, client: client, users: users, issuer: issuer, logger: logger}
}

func (s *Service) ProviderNames() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// Login runs the federation flow end to end: exchange the authorization
// code, fetch the provider profile, resolve or provision the local
// identity, then issue tokens exactly as a local login would. A second
// federated login for the same provider email always lands on the
// identity the first one created.
func (s *Service) Login(ctx context.Context, providerName, code, state string) (auth.User, auth.TokenPair, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return auth.User{}, auth.TokenPair{}, ErrUnknownProvider
	}

	providerToken, err := s.client.Exchange(ctx, provider, code, state)
	if err != nil {
		return auth.User{}, auth.TokenPair{}, err
	}

	profile, err := s.client.FetchProfile(ctx, provider, providerToken)
	if err != nil {
		return auth.User{}, auth.TokenPair{}, err
	}
	if profile.Nickname == "" {
		profile.Nickname = placeholderNickname()
	}

	user, err := s.resolveIdentity(ctx, provider, profile)
	if err != nil {
		return auth.User{}, auth.TokenPair{}, err
	}

	tokens, err := s.issuer.IssueFor(ctx, user)
	if err != nil {
		return auth.User{}, auth.TokenPair{}, err
	}

	return user, tokens, nil
}

func (s *Service) resolveIdentity(ctx context.Context, provider Provider, profile Profile) (auth.User, error) {
	user, err := s.users.GetUserByEmail(ctx, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		return auth.User{}, err
	}

	// The user will never type this password; it only satisfies the
	// schema's non-null credential.
	placeholder, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return auth.User{}, fmt.Errorf("hash placeholder password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, auth.User{
		Email:        profile.Email,
		PasswordHash: string(placeholder),
		Nickname:     profile.Nickname,
		AvatarURL:    profile.AvatarURL,
		Role:         auth.RoleMember,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			// A concurrent federated login provisioned the identity
			// between our lookup and insert; use theirs.
			return s.users.GetUserByEmail(ctx, profile.Email)
		}
		return auth.User{}, err
	}

	s.logger.Info("federated_identity_provisioned", map[string]any{
		"provider": provider.Name,
		"user_id":  created.ID,
	})

	return created, nil
}

func placeholderNickname() string {
	return "user-" + uuid.NewString()[:8]
}
