// Package identity implements the identity-lookup collaborator: it validates
// bearer credentials and resolves the identity behind them, via OIDC
// discovery/JWKS or a shared HS256 secret for local development.
package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"lakeboard/internal/domain"
)

// OIDCProvider validates bearer tokens using OIDC discovery and JWKS.
type OIDCProvider struct {
	verifier       *oidc.IDTokenVerifier
	allowedIssuers map[string]bool
	groupsClaim    string
}

// HS256Provider validates bearer tokens signed with a shared HS256 secret.
// Intended for local development and tests.
type HS256Provider struct {
	secret      []byte
	groupsClaim string
}

// NewOIDCProvider creates a provider from an OIDC issuer URL.
func NewOIDCProvider(ctx context.Context, issuerURL, audience, groupsClaim string, allowedIssuers []string) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})
	issuers := issuerSet(allowedIssuers)
	if len(issuers) == 0 {
		issuers[issuerURL] = true
	}
	return &OIDCProvider{verifier: verifier, allowedIssuers: issuers, groupsClaim: groupsClaim}, nil
}

// NewOIDCProviderFromJWKS creates a provider from a JWKS URL (no discovery).
func NewOIDCProviderFromJWKS(ctx context.Context, jwksURL, issuerURL, audience, groupsClaim string, allowedIssuers []string) (*OIDCProvider, error) {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	verifier := oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: audience})
	issuers := issuerSet(allowedIssuers)
	if len(issuers) == 0 && issuerURL != "" {
		issuers[issuerURL] = true
	}
	return &OIDCProvider{verifier: verifier, allowedIssuers: issuers, groupsClaim: groupsClaim}, nil
}

// NewHS256Provider creates a provider for local/dev HS256 tokens.
func NewHS256Provider(secret, groupsClaim string) (*HS256Provider, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	return &HS256Provider{secret: []byte(secret), groupsClaim: groupsClaim}, nil
}

func issuerSet(issuers []string) map[string]bool {
	set := make(map[string]bool, len(issuers))
	for _, iss := range issuers {
		set[iss] = true
	}
	return set
}

// Lookup verifies the token against the OIDC provider's JWKS and resolves
// the identity from its claims.
func (p *OIDCProvider) Lookup(ctx context.Context, credential string) (*domain.Identity, error) {
	idToken, err := p.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	if len(p.allowedIssuers) > 0 && !p.allowedIssuers[idToken.Issuer] {
		return nil, fmt.Errorf("issuer %q not in allowed list", idToken.Issuer)
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	return identityFromClaims(idToken.Subject, raw, p.groupsClaim)
}

// Lookup verifies an HS256-signed token and resolves the identity from its
// claims.
func (p *HS256Provider) Lookup(_ context.Context, credential string) (*domain.Identity, error) {
	tok, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("parse claims: unsupported claim type %T", tok.Claims)
	}

	subject, _ := raw["sub"].(string)
	return identityFromClaims(subject, map[string]interface{}(raw), p.groupsClaim)
}

// identityFromClaims maps token claims to an Identity. The email claim is
// preferred as the per-session identifier, falling back to the subject.
func identityFromClaims(subject string, raw map[string]interface{}, groupsClaim string) (*domain.Identity, error) {
	email, _ := raw["email"].(string)
	if email == "" {
		email = subject
	}
	if email == "" {
		return nil, fmt.Errorf("token carries neither email nor subject claim")
	}

	userID := subject
	if userID == "" {
		userID = email
	}

	if groupsClaim == "" {
		groupsClaim = "groups"
	}

	var groups []string
	switch g := raw[groupsClaim].(type) {
	case []interface{}:
		for _, v := range g {
			if s, ok := v.(string); ok {
				groups = append(groups, s)
			}
		}
	case []string:
		groups = g
	case string:
		if g != "" {
			groups = []string{g}
		}
	}

	return &domain.Identity{Email: email, UserID: userID, Groups: groups}, nil
}
