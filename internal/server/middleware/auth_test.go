package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIdentity struct {
	userID string
	tier   string
	admin  bool
}

func (i testIdentity) GetUserID() string { return i.userID }
func (i testIdentity) GetTier() string   { return i.tier }
func (i testIdentity) IsAdmin() bool     { return i.admin }

// testTokenValidator accepts a fixed set of tokens.
type testTokenValidator map[string]testIdentity

func (v testTokenValidator) ValidateToken(token string) (Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return id, nil
}

var validator = testTokenValidator{
	"user-token":  {userID: "user-1", tier: "pro"},
	"admin-token": {userID: "admin", admin: true},
}

// echoUser writes the user id from the context, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, err := GetUserID(r)
	if err != nil {
		id = "anonymous"
	}
	_, _ = w.Write([]byte(id))
})

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(validator)(echoUser)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer user-token", http.StatusOK, "user-1"},
		{"lower-case scheme", "bearer user-token", http.StatusOK, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic user-token", http.StatusUnauthorized, ""},
		{"extra fields", "Bearer user-token extra", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	h := OptionalAuth(validator)(echoUser)

	w := serve(h, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = serve(h, "Bearer user-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer nope").Code)
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(validator)(echoUser)

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer user-token").Code)

	w := serve(h, "Bearer admin-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", w.Body.String())
}

func TestGetIdentity_Missing(t *testing.T) {
	_, err := GetIdentity(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoIdentity)
}
