package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-community-api/internal/observability"
)

type fakePruner struct {
	deleted   int64
	err       error
	batchSize int
}

func (f *fakePruner) DeleteExpiredRefreshTokens(_ context.Context, batchSize int) (int64, error) {
	f.batchSize = batchSize
	return f.deleted, f.err
}

func newCleanup(pruner *fakePruner, secret string) *CleanupHandler {
	return NewCleanupHandler(pruner, observability.NewLoggerTo(io.Discard), secret, 500)
}

func TestCleanupWithoutSecretConfigured(t *testing.T) {
	handler := newCleanup(&fakePruner{}, "")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	// With no secret configured the endpoint does not exist.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanupRejectsBadSecret(t *testing.T) {
	handler := newCleanup(&fakePruner{}, "cron-secret")

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong secret", header: "Bearer nope"},
		{name: "wrong scheme", header: "cron-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.Handle(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestCleanupDeletesExpiredRows(t *testing.T) {
	pruner := &fakePruner{deleted: 42}
	handler := newCleanup(pruner, "cron-secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, pruner.batchSize)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["deleted_refresh_tokens"])
}

func TestCleanupReportsFailure(t *testing.T) {
	handler := newCleanup(&fakePruner{err: errors.New("db down")}, "cron-secret")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
