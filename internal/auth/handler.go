package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Nickname         string `json:"nickname"`
	AvatarURL        string `json:"avatar_url,omitempty"`
	Role             string `json:"role"`
	AccessExpiresIn  int64  `json:"access_expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body signupRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	body.Password = strings.TrimSpace(body.Password)
	body.Nickname = strings.TrimSpace(body.Nickname)
	if !emailRegex.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email format is invalid")
		return
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "password format is invalid")
		return
	}
	if body.Nickname == "" || len(body.Nickname) > 40 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "nickname format is invalid")
		return
	}

	user, tokens, err := h.service.Signup(r.Context(), body.Email, body.Password, body.Nickname)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "email already registered")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to sign up")
		return
	}

	setSessionHeaders(w, tokens)
	writeJSON(w, http.StatusCreated, newSessionResponse(user, tokens))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	body.Password = strings.TrimSpace(body.Password)
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email and password are required")
		return
	}

	user, tokens, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to login")
		return
	}

	setSessionHeaders(w, tokens)
	writeJSON(w, http.StatusOK, newSessionResponse(user, tokens))
}

// setSessionHeaders carries the freshly issued pair back to the client:
// the access token on the Authorization header with the Bearer scheme,
// the refresh token raw on its own header.
func setSessionHeaders(w http.ResponseWriter, tokens TokenPair) {
	w.Header().Set("Authorization", bearerPrefix+tokens.AccessToken)
	w.Header().Set("RefreshToken", tokens.RefreshToken)
}

func newSessionResponse(user User, tokens TokenPair) sessionResponse {
	return sessionResponse{
		ID:               user.ID,
		Email:            user.Email,
		Nickname:         user.Nickname,
		AvatarURL:        user.AvatarURL,
		Role:             user.Role,
		AccessExpiresIn:  int64(time.Until(tokens.AccessExpires).Seconds()),
		RefreshExpiresIn: int64(time.Until(tokens.RefreshExpires).Seconds()),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}
