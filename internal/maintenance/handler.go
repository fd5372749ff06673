package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"pet-community-api/internal/observability"
)

// RefreshTokenPruner is satisfied by the auth repository.
type RefreshTokenPruner interface {
	DeleteExpiredRefreshTokens(ctx context.Context, batchSize int) (int64, error)
}

// CleanupHandler serves the cron-invoked endpoint that prunes expired
// refresh-token rows. Live rows are replaced on login; the leftovers
// belong to users who never came back within the refresh TTL.
type CleanupHandler struct {
	pruner     RefreshTokenPruner
	logger     *observability.Logger
	cronSecret string
	batchSize  int
}

func NewCleanupHandler(pruner RefreshTokenPruner, logger *observability.Logger, cronSecret string, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		pruner:     pruner,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	deleted, err := h.pruner.DeleteExpiredRefreshTokens(r.Context(), h.batchSize)
	if err != nil {
		h.logger.Error("refresh_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("refresh_cleanup_completed", map[string]any{
		"deleted_refresh_tokens": deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ok",
		"deleted_refresh_tokens": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
