package security

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestAuthenticator_ValidAPIKey(t *testing.T) {
	auth := NewAuthenticator([]string{"tk_primary", "tk_secondary"}, "", testLogger())

	info, err := auth.ValidateAPIKey(context.Background(), "tk_secondary")
	require.NoError(t, err)
	assert.Equal(t, "api_key", info.AuthType)
	assert.NotEmpty(t, info.UserID)
}

func TestAuthenticator_RejectsUnknownKey(t *testing.T) {
	auth := NewAuthenticator([]string{"tk_primary"}, "", testLogger())

	_, err := auth.ValidateAPIKey(context.Background(), "tk_wrong")
	assert.Error(t, err)

	_, err = auth.ValidateAPIKey(context.Background(), "")
	assert.Error(t, err)
}

func TestAuthenticator_JWTRoundTrip(t *testing.T) {
	auth := NewAuthenticator(nil, "test-secret", testLogger())

	token, err := auth.IssueJWT("traveler-7", []string{"itineraries:generate"})
	require.NoError(t, err)

	claims, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "traveler-7", claims.UserID)
	assert.Equal(t, []string{"itineraries:generate"}, claims.Permissions)
}

func TestAuthenticator_RejectsTamperedJWT(t *testing.T) {
	issuer := NewAuthenticator(nil, "secret-a", testLogger())
	verifier := NewAuthenticator(nil, "secret-b", testLogger())

	token, err := issuer.IssueJWT("traveler-7", nil)
	require.NoError(t, err)

	_, err = verifier.ValidateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticator_NoSecretRejectsJWT(t *testing.T) {
	auth := NewAuthenticator(nil, "", testLogger())

	_, err := auth.IssueJWT("traveler-7", nil)
	assert.Error(t, err)
	_, err = auth.ValidateJWT("anything")
	assert.Error(t, err)
}

func TestAuthMiddleware_BlocksAndPasses(t *testing.T) {
	auth := NewAuthenticator([]string{"tk_primary"}, "", testLogger())

	var seen *AuthInfo
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetAuthInfo(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/itineraries", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/itineraries", nil)
	req.Header.Set("X-API-Key", "tk_primary")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "api_key", seen.AuthType)
}

func TestAuthMiddleware_HealthIsOpen(t *testing.T) {
	auth := NewAuthenticator([]string{"tk_primary"}, "", testLogger())
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	auth := NewAuthenticator(nil, "test-secret", testLogger())
	token, err := auth.IssueJWT("traveler-7", nil)
	require.NoError(t, err)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := GetAuthInfo(r.Context())
		require.True(t, ok)
		assert.Equal(t, "traveler-7", info.UserID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "tk_l****6789", MaskKey("tk_long_key_123456789"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}
