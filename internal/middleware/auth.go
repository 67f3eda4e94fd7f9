// Package middleware carries request authentication for the HTTP surface.
package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"lakeboard/internal/domain"
	"lakeboard/internal/service/auth"
)

// Authenticator resolves a bearer credential through the authentication
// gateway and stores the resulting user context on the request. Requests the
// gateway rejects get a 401 with a JSON body; no anonymous fallthrough.
type Authenticator struct {
	gateway *auth.Gateway
	logger  *slog.Logger
}

func NewAuthenticator(gateway *auth.Gateway, logger *slog.Logger) *Authenticator {
	return &Authenticator{gateway: gateway, logger: logger}
}

// Middleware is the chi-compatible handler wrapper.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := bearerToken(r)

		user, err := a.gateway.Authenticate(r.Context(), credential)
		if err != nil {
			a.logger.Info("request authentication failed",
				"path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
			writeUnauthorized(w, err)
			return
		}
		if !a.gateway.IsSessionValid(user) {
			writeUnauthorized(w, domain.ErrAuthentication("session expired"))
			return
		}

		next.ServeHTTP(w, r.WithContext(domain.WithUserContext(r.Context(), user)))
	})
}

// RequireAdmin guards admin-only routes. It must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := domain.UserFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, domain.ErrAuthentication("missing authentication token"))
			return
		}
		if !user.IsAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "admin privileges required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the credential from the Authorization header.
// A missing or non-bearer header yields an empty credential, which the
// gateway treats as unauthenticated (or dev-mode, when enabled).
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	message := "authentication required"
	var authErr *domain.AuthenticationError
	if errors.As(err, &authErr) {
		message = authErr.Message
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
