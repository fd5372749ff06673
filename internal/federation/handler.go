package federation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type federatedSessionResponse struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Nickname         string `json:"nickname"`
	AvatarURL        string `json:"avatar_url,omitempty"`
	Role             string `json:"role"`
	Provider         string `json:"provider"`
	AccessExpiresIn  int64  `json:"access_expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// Login handles the provider redirect: GET /auth/{provider}/login?code=...&state=...
// On success the response carries the same Authorization and RefreshToken
// headers as a local login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	providerName := strings.ToLower(strings.TrimSpace(r.PathValue("provider")))
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	state := strings.TrimSpace(r.URL.Query().Get("state"))

	if code == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "authorization code is required")
		return
	}

	user, tokens, err := h.service.Login(r.Context(), providerName, code, state)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownProvider):
			writeError(w, http.StatusNotFound, "UNKNOWN_PROVIDER", "unknown login provider")
		case errors.Is(err, ErrFederation):
			writeError(w, http.StatusBadGateway, "FEDERATION_FAILED", "social login failed")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to login")
		}
		return
	}

	w.Header().Set("Authorization", "Bearer "+tokens.AccessToken)
	w.Header().Set("RefreshToken", tokens.RefreshToken)
	writeJSON(w, http.StatusOK, federatedSessionResponse{
		ID:               user.ID,
		Email:            user.Email,
		Nickname:         user.Nickname,
		AvatarURL:        user.AvatarURL,
		Role:             user.Role,
		Provider:         providerName,
		AccessExpiresIn:  int64(time.Until(tokens.AccessExpires).Seconds()),
		RefreshExpiresIn: int64(time.Until(tokens.RefreshExpires).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}
