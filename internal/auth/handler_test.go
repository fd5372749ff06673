package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires the handlers and the gate the same way the app
// bootstrap does, over in-memory stores.
func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	service, users, _ := newTestService(t)
	handler := NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", handler.Signup)
	mux.HandleFunc("POST /auth/login", handler.Login)
	mux.Handle("GET /whoami", RequireAuth(service.codec, users, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := PrincipalFrom(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"email": principal.Email})
	})))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSignupHandlerIssuesSession(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/auth/signup",
		`{"email":"mia@example.com","password":"correct horse battery","nickname":"mia"}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Authorization"), "Bearer "))
	assert.NotEmpty(t, resp.Header.Get("RefreshToken"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "mia@example.com", body["email"])
	assert.Equal(t, RoleMember, body["role"])
}

func TestSignupHandlerValidation(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "bad json", body: `{`},
		{name: "bad email", body: `{"email":"not-an-email","password":"correct horse battery","nickname":"mia"}`},
		{name: "short password", body: `{"email":"mia@example.com","password":"short","nickname":"mia"}`},
		{name: "unknown field", body: `{"email":"mia@example.com","password":"correct horse battery","nickname":"mia","admin":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/auth/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSignupHandlerDuplicate(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/auth/signup",
		`{"email":"mia@example.com","password":"correct horse battery","nickname":"mia"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, server.URL+"/auth/signup",
		`{"email":"mia@example.com","password":"another password!","nickname":"mia2"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginHandlerRejectsBadCredentials(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/auth/signup",
		`{"email":"mia@example.com","password":"correct horse battery","nickname":"mia"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, server.URL+"/auth/login",
		`{"email":"mia@example.com","password":"wrong password!!"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginThenProtectedRequest(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/auth/signup",
		`{"email":"mia@example.com","password":"correct horse battery","nickname":"mia"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, server.URL+"/auth/login",
		`{"email":"mia@example.com","password":"correct horse battery"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	access := resp.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(access, "Bearer "))
	require.NotEmpty(t, resp.Header.Get("RefreshToken"))

	// The freshly issued access token opens the protected route.
	req, err := http.NewRequest(http.MethodGet, server.URL+"/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", access)

	whoami, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer whoami.Body.Close()

	assert.Equal(t, http.StatusOK, whoami.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(whoami.Body).Decode(&body))
	assert.Equal(t, "mia@example.com", body["email"])
}

func TestProtectedRequestAfterExpiry(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/auth/signup",
		`{"email":"mia@example.com","password":"correct horse battery","nickname":"mia"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A token whose lifetime has already elapsed, signed with the real
	// key: rejected as INVALID_TOKEN, not NEED_LOGIN.
	expired := signTestToken(t, testSecret, jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mia@example.com",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-4 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: RoleMember,
	})

	req, err := http.NewRequest(http.MethodGet, server.URL+"/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+expired)

	whoami, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer whoami.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, whoami.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(whoami.Body).Decode(&body))
	assert.Equal(t, CodeInvalidToken, body["code"])
}
