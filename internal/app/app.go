// Package app provides application-level wiring: repositories, services, and
// the HTTP handler stack, built from externally-provided database handles and
// configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"lakeboard/internal/api"
	"lakeboard/internal/config"
	"lakeboard/internal/db/repository"
	"lakeboard/internal/domain"
	"lakeboard/internal/identity"
	"lakeboard/internal/middleware"
	"lakeboard/internal/service/auth"
	"lakeboard/internal/service/configstore"
	"lakeboard/internal/service/security"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the root logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Gateway  *auth.Gateway
	Engine   *security.Engine
	Pipeline *security.Pipeline
	Store    *configstore.Store
	Handler  *api.Handler
	Authn    *middleware.Authenticator

	Grants   *repository.GrantRepo
	Catalogs *repository.CatalogRepo
	Audit    *repository.AuditRepo
}

// New wires repositories, services, and handlers from the provided deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	grantRepo := repository.NewGrantRepo(deps.ReadDB)
	catalogRepo := repository.NewCatalogRepo(deps.WriteDB)
	metadataRepo := repository.NewMetadataRepo(deps.ReadDB, cfg.MetadataCatalog, cfg.MetadataSchema)
	auditRepo := repository.NewAuditRepo(deps.WriteDB, logger.With("component", "audit"))

	provider, err := newIdentityProvider(ctx, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	gateway := auth.NewGateway(provider, cfg.Auth, logger.With("component", "auth"))

	engine, err := security.NewEngine(
		grantRepo, catalogRepo, auditRepo,
		logger.With("component", "security"),
		cfg.DefaultCatalog, cfg.PermissionCacheSize,
	)
	if err != nil {
		return nil, fmt.Errorf("authorization engine: %w", err)
	}
	pipeline := security.NewPipeline(engine, auditRepo)

	store := configstore.NewStore(
		metadataRepo, logger.With("component", "configstore"),
		cfg.MetadataCatalog, cfg.MetadataSchema, cfg.ConfigCacheTTL,
	)
	if !store.ValidateConfigTablesExist(ctx) {
		logger.Warn("one or more config tables are missing; configuration reads may fail")
	}

	handler := api.NewHandler(gateway, engine, pipeline, store, logger.With("component", "api"))
	authn := middleware.NewAuthenticator(gateway, logger.With("component", "authn"))

	return &App{
		Gateway:  gateway,
		Engine:   engine,
		Pipeline: pipeline,
		Store:    store,
		Handler:  handler,
		Authn:    authn,
		Grants:   grantRepo,
		Catalogs: catalogRepo,
		Audit:    auditRepo,
	}, nil
}

// newIdentityProvider picks the credential validator the auth config calls
// for: OIDC discovery, explicit JWKS, HS256 shared secret, or none at all
// when only dev mode is enabled.
func newIdentityProvider(ctx context.Context, cfg config.AuthConfig) (domain.IdentityProvider, error) {
	switch {
	case cfg.IssuerURL != "":
		return identity.NewOIDCProvider(ctx, cfg.IssuerURL, cfg.Audience, cfg.GroupsClaim, cfg.AllowedIssuers)
	case cfg.JWKSURL != "":
		return identity.NewOIDCProviderFromJWKS(ctx, cfg.JWKSURL, cfg.IssuerURL, cfg.Audience, cfg.GroupsClaim, cfg.AllowedIssuers)
	case cfg.JWTSecret != "":
		return identity.NewHS256Provider(cfg.JWTSecret, cfg.GroupsClaim)
	case cfg.DevMode:
		return rejectAllProvider{}, nil
	default:
		return nil, fmt.Errorf("no identity provider configured")
	}
}

// rejectAllProvider backs dev-mode-only deployments: any non-empty credential
// is rejected, and empty credentials never reach the provider.
type rejectAllProvider struct{}

func (rejectAllProvider) Lookup(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrAuthentication("no identity provider configured")
}
