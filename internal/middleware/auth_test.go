package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeboard/internal/config"
	"lakeboard/internal/domain"
	"lakeboard/internal/service/auth"
)

type stubProvider struct {
	identities map[string]*domain.Identity
}

func (s *stubProvider) Lookup(_ context.Context, credential string) (*domain.Identity, error) {
	if id, ok := s.identities[credential]; ok {
		return id, nil
	}
	return nil, domain.ErrAuthentication("unknown credential")
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	provider := &stubProvider{identities: map[string]*domain.Identity{
		"good-token": {Email: "a@b.com", UserID: "u1", Groups: []string{"analysts"}},
		"root-token": {Email: "root@b.com", UserID: "u0", Groups: []string{"admins"}},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := auth.NewGateway(provider, config.AuthConfig{}, logger)
	return NewAuthenticator(gateway, logger)
}

func echoUser(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := domain.UserFromContext(r.Context())
		require.True(t, ok, "handler must receive an authenticated user")
		_, _ = w.Write([]byte(user.Email))
	})
}

func TestAuthenticator_ValidBearer(t *testing.T) {
	handler := newTestAuthenticator(t).Middleware(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@b.com", rec.Body.String())
}

func TestAuthenticator_MissingHeader(t *testing.T) {
	handler := newTestAuthenticator(t).Middleware(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing authentication token", body["error"])
}

func TestAuthenticator_MalformedHeader(t *testing.T) {
	handler := newTestAuthenticator(t).Middleware(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticator_RejectedCredential(t *testing.T) {
	handler := newTestAuthenticator(t).Middleware(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "forged", "credential must not leak into the response")
}

func TestRequireAdmin(t *testing.T) {
	authn := newTestAuthenticator(t)
	handler := authn.Middleware(RequireAdmin(echoUser(t)))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/admin/cache/clear", nil)
	req.Header.Set("Authorization", "Bearer root-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root@b.com", rec.Body.String())
}

func TestRequireAdmin_NoUserOnContext(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/cache/clear", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
