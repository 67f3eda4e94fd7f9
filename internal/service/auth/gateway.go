// Package auth implements the authentication gateway: it turns an inbound
// bearer credential into a validated user context, with short-TTL session
// caching so the identity collaborator is not consulted on every call.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lakeboard/internal/cache"
	"lakeboard/internal/config"
	"lakeboard/internal/domain"
)

// Gateway validates bearer credentials against the identity provider and
// caches validated sessions. A revoked credential remains accepted for up to
// the cache TTL.
type Gateway struct {
	provider domain.IdentityProvider
	sessions *cache.TTLCache[*domain.UserContext]
	logger   *slog.Logger

	devMode  bool
	devEmail string
	maxAge   time.Duration

	now func() time.Time
}

// NewGateway creates a gateway with its own session cache.
func NewGateway(provider domain.IdentityProvider, cfg config.AuthConfig, logger *slog.Logger) *Gateway {
	return newGateway(provider, cfg, logger, time.Now)
}

func newGateway(provider domain.IdentityProvider, cfg config.AuthConfig, logger *slog.Logger, now func() time.Time) *Gateway {
	ttl := cfg.SessionCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxAge := cfg.SessionMaxAge
	if maxAge <= 0 {
		maxAge = domain.DefaultSessionMaxAge
	}
	return &Gateway{
		provider: provider,
		sessions: cache.NewTTLCache[*domain.UserContext](ttl, now),
		logger:   logger,
		devMode:  cfg.DevMode,
		devEmail: cfg.DevUserEmail,
		maxAge:   maxAge,
		now:      now,
	}
}

// Authenticate resolves the credential into a user context. A fresh cached
// session for the same credential is returned without consulting the
// identity provider. Failures are terminal: there is no anonymous fallback.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (*domain.UserContext, error) {
	if credential == "" {
		if g.devMode {
			g.logger.Warn("dev mode: using synthetic admin identity", "email", g.devEmail)
			return domain.NewUserContext(g.devEmail, "dev-user-id",
				[]string{"users", "admins"}, uuid.NewString(), g.now()), nil
		}
		return nil, domain.ErrAuthentication("missing authentication token")
	}

	if user, ok := g.sessions.Get(credential); ok {
		return user, nil
	}

	identity, err := g.provider.Lookup(ctx, credential)
	if err != nil {
		g.logger.Error("identity lookup failed", "error", err)
		return nil, domain.ErrAuthentication("invalid or expired token")
	}

	user := domain.NewUserContext(identity.Email, identity.UserID, identity.Groups, uuid.NewString(), g.now())
	g.sessions.Set(credential, user)

	g.logger.Info("authenticated user", "email", user.Email, "admin", user.IsAdmin)
	return user, nil
}

// IsSessionValid checks the session validity window (independent of the
// credential cache TTL).
func (g *Gateway) IsSessionValid(user *domain.UserContext) bool {
	return user.IsSessionValid(g.maxAge, g.now())
}

// ClearSessions drops all cached sessions immediately.
func (g *Gateway) ClearSessions() {
	g.sessions.Purge()
}
