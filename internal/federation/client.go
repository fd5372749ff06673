package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrFederation covers every way the third-party leg can fail: the code
// exchange, the profile fetch, or an unusable provider response. The
// wrapped message keeps the diagnostic detail for logs; callers only
// branch on the sentinel.
var ErrFederation = errors.New("federation failed")

const maxProviderResponseBytes = 1 << 20

// Client talks to provider token and profile endpoints. One instance is
// shared across requests; the embedded http.Client carries the timeout
// every outbound call gets.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type tokenExchangeResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// Exchange trades an authorization code for the provider's access token.
func (c *Client) Exchange(ctx context.Context, provider Provider, code, state string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", provider.ClientID)
	form.Set("redirect_uri", provider.RedirectURI)
	form.Set("code", code)
	if provider.ClientSecret != "" {
		form.Set("client_secret", provider.ClientSecret)
	}
	if state != "" {
		form.Set("state", state)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ErrFederation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ErrFederation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read token response: %v", ErrFederation, err)
	}

	var decoded tokenExchangeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrFederation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decoded.Error != "" {
			return "", fmt.Errorf("%w: provider rejected code: %s %s", ErrFederation, decoded.Error, decoded.ErrorDesc)
		}
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrFederation, resp.StatusCode)
	}

	if decoded.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", ErrFederation)
	}

	return decoded.AccessToken, nil
}

// FetchProfile calls the provider profile endpoint with the provider
// token and decodes the provider-specific response shape.
func (c *Client) FetchProfile(ctx context.Context, provider Provider, providerToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.ProfileURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: build profile request: %v", ErrFederation, err)
	}
	req.Header.Set("Authorization", "Bearer "+providerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: profile request: %v", ErrFederation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return Profile{}, fmt.Errorf("%w: read profile response: %v", ErrFederation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Profile{}, fmt.Errorf("%w: profile endpoint returned status %d", ErrFederation, resp.StatusCode)
	}

	return decodeProfile(provider.Name, body)
}
