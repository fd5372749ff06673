package federation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider holds the statically configured contract for one third-party
// identity provider. All fields are fixed at startup.
type Provider struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenURL     string
	ProfileURL   string
}

// Profile is the slice of a provider profile this service cares about.
// Email is the identity key and must be present; the rest is best-effort.
type Profile struct {
	Email     string
	Nickname  string
	AvatarURL string
}

// Known provider endpoint defaults. The client id/secret/redirect URI
// always come from configuration.
func Kakao(clientID, redirectURI string) Provider {
	return Provider{
		Name:        "kakao",
		ClientID:    clientID,
		RedirectURI: redirectURI,
		TokenURL:    "https://kauth.kakao.com/oauth/token",
		ProfileURL:  "https://kapi.kakao.com/v2/user/me",
	}
}

func Google(clientID, clientSecret, redirectURI string) Provider {
	return Provider{
		Name:         "google",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		TokenURL:     "https://oauth2.googleapis.com/token",
		ProfileURL:   "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

type kakaoProfileResponse struct {
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
	KakaoAccount struct {
		Email string `json:"email"`
	} `json:"kakao_account"`
}

type googleProfileResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// decodeProfile unpacks the provider-specific response nesting. Fields
// other than email are provider-controlled and may be absent; they fall
// back rather than failing the login.
func decodeProfile(providerName string, body []byte) (Profile, error) {
	var profile Profile

	switch providerName {
	case "kakao":
		var decoded kakaoProfileResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return Profile{}, fmt.Errorf("%w: decode kakao profile: %v", ErrFederation, err)
		}
		profile = Profile{
			Email:     decoded.KakaoAccount.Email,
			Nickname:  decoded.Properties.Nickname,
			AvatarURL: decoded.Properties.ProfileImage,
		}
	case "google":
		var decoded googleProfileResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return Profile{}, fmt.Errorf("%w: decode google profile: %v", ErrFederation, err)
		}
		profile = Profile{
			Email:     decoded.Email,
			Nickname:  decoded.Name,
			AvatarURL: decoded.Picture,
		}
	default:
		return Profile{}, fmt.Errorf("%w: no profile decoder for provider %q", ErrFederation, providerName)
	}

	profile.Email = strings.TrimSpace(strings.ToLower(profile.Email))
	if profile.Email == "" {
		return Profile{}, fmt.Errorf("%w: provider profile has no email", ErrFederation)
	}

	return profile, nil
}
