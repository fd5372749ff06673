package account

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"pet-community-api/internal/auth"
)

const maxAvatarSizeBytes = 10 << 20

// ImageUploader is the opaque blob store the avatar ends up in.
type ImageUploader interface {
	UploadImage(ctx context.Context, imageSource string) (string, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64) (Profile, error)
	UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error
}

type Handler struct {
	store    ProfileStore
	uploader ImageUploader
}

func NewHandler(store ProfileStore, uploader ImageUploader) *Handler {
	return &Handler{store: store, uploader: uploader}
}

// Me returns the authenticated user's profile. The gate has already
// resolved the principal; a missing principal here means the route was
// wired without RequireAuth.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.CodeNeedLogin, "login required")
		return
	}

	profile, err := h.store.GetProfile(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "profile not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateAvatar accepts a multipart image, pushes it to the blob store,
// and records the resulting URL on the user row.
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.CodeNeedLogin, "login required")
		return
	}

	if h.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "avatar upload is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarSizeBytes); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarSizeBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "file is empty")
		return
	}
	if len(data) > maxAvatarSizeBytes {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "file is too large")
		return
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "file must be an image")
		return
	}

	imageSource := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	avatarURL, err := h.uploader.UploadImage(r.Context(), imageSource)
	if err != nil {
		writeError(w, http.StatusBadGateway, "UPLOAD_FAILED", "failed to upload avatar")
		return
	}

	if err := h.store.UpdateAvatar(r.Context(), principal.ID, avatarURL); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to save avatar")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": avatarURL})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}
