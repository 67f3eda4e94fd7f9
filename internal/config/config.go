// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthConfig holds authentication and identity provider configuration.
type AuthConfig struct {
	// OIDC / JWKS configuration
	IssuerURL      string   // OIDC issuer URL
	JWKSURL        string   // Override JWKS URL (if no .well-known discovery)
	JWTSecret      string   // HS256 shared secret for local/dev JWT auth
	Audience       string   // Required JWT audience claim
	AllowedIssuers []string // Accepted issuers (defaults to [IssuerURL])
	GroupsClaim    string   // JWT claim carrying group membership (default "groups")

	// Development-mode bypass. Never enabled by default: when true and no
	// credential is supplied, a synthetic admin identity is used.
	DevMode      bool
	DevUserEmail string

	SessionCacheTTL time.Duration // credential cache TTL (default 5m)
	SessionMaxAge   time.Duration // session validity window (default 60m)
}

// OIDCEnabled returns true when an external identity provider is configured.
func (a *AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" || a.JWKSURL != ""
}

// Validate checks that the auth configuration is internally consistent.
func (a *AuthConfig) Validate() error {
	if a.IssuerURL == "" && a.JWKSURL == "" && a.JWTSecret == "" && !a.DevMode {
		return fmt.Errorf("one of AUTH_ISSUER_URL, AUTH_JWKS_URL, or JWT_SECRET must be set (or DEV_MODE for local testing)")
	}
	if a.IssuerURL != "" && a.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	return nil
}

// Config holds the configuration for the dashboard backend.
type Config struct {
	MetaDBPath string // path to the SQLite metastore file
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	// Metadata store location for governed configuration tables.
	MetadataCatalog string // default "mv_catalog"
	MetadataSchema  string // default "config_schema"

	// DefaultCatalog qualifies two-part table references in queries.
	DefaultCatalog string // default "hive_metastore"

	// PermissionCacheSize bounds the no-TTL permission cache.
	PermissionCacheSize int

	// ConfigCacheTTL is the metadata-config cache TTL (default 5m).
	ConfigCacheTTL time.Duration

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// SeedFile optionally points at a YAML fixture loaded at startup.
	SeedFile string

	// Auth holds identity provider and authentication configuration.
	Auth AuthConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:      os.Getenv("META_DB_PATH"),
		ListenAddr:      os.Getenv("LISTEN_ADDR"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		Env:             os.Getenv("ENV"),
		MetadataCatalog: os.Getenv("METADATA_CATALOG"),
		MetadataSchema:  os.Getenv("METADATA_SCHEMA"),
		DefaultCatalog:  os.Getenv("DEFAULT_CATALOG"),
		SeedFile:        os.Getenv("SEED_FILE"),
		Auth: AuthConfig{
			IssuerURL:    os.Getenv("AUTH_ISSUER_URL"),
			JWKSURL:      os.Getenv("AUTH_JWKS_URL"),
			JWTSecret:    os.Getenv("JWT_SECRET"),
			Audience:     os.Getenv("AUTH_AUDIENCE"),
			GroupsClaim:  os.Getenv("AUTH_GROUPS_CLAIM"),
			DevMode:      strings.EqualFold(os.Getenv("DEV_MODE"), "true"),
			DevUserEmail: os.Getenv("DEV_USER_EMAIL"),
		},
	}

	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "lakeboard.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MetadataCatalog == "" {
		cfg.MetadataCatalog = "mv_catalog"
	}
	if cfg.MetadataSchema == "" {
		cfg.MetadataSchema = "config_schema"
	}
	if cfg.DefaultCatalog == "" {
		cfg.DefaultCatalog = "hive_metastore"
	}
	if cfg.Auth.GroupsClaim == "" {
		cfg.Auth.GroupsClaim = "groups"
	}
	if cfg.Auth.DevUserEmail == "" {
		cfg.Auth.DevUserEmail = "dev@example.com"
	}
	if raw := os.Getenv("AUTH_ALLOWED_ISSUERS"); raw != "" {
		cfg.Auth.AllowedIssuers = splitAndTrim(raw)
	}

	cfg.Auth.SessionCacheTTL = envDuration(cfg, "SESSION_CACHE_TTL", 5*time.Minute)
	cfg.Auth.SessionMaxAge = envDuration(cfg, "SESSION_MAX_AGE", 60*time.Minute)
	cfg.ConfigCacheTTL = envDuration(cfg, "CONFIG_CACHE_TTL", 5*time.Minute)

	cfg.PermissionCacheSize = envInt(cfg, "PERMISSION_CACHE_SIZE", 65536)
	cfg.RateLimitBurst = envInt(cfg, "RATE_LIMIT_BURST", 200)
	cfg.RateLimitRPS = envFloat(cfg, "RATE_LIMIT_RPS", 100)

	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		cfg.CORSAllowedOrigins = splitAndTrim(raw)
	} else {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.Auth.DevMode {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("DEV_MODE is enabled: unauthenticated requests run as synthetic admin %s", cfg.Auth.DevUserEmail))
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envDuration(cfg *Config, name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid %s %q, using %s", name, raw, fallback))
		return fallback
	}
	return d
}

func envInt(cfg *Config, name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid %s %q, using %d", name, raw, fallback))
		return fallback
	}
	return n
}

func envFloat(cfg *Config, name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid %s %q, using %g", name, raw, fallback))
		return fallback
	}
	return f
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
