package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig controls validation behavior for JWT access tokens.
type JWTConfig struct {
	Issuer string
	// ExpectedAudiences contains the accepted audiences; the first entry
	// should be the audience registered with the authorization server.
	ExpectedAudiences []string
	RequiredScopes    []string
	AllowedAlgs       []string
	Leeway            time.Duration
}

// DefaultJWTConfig returns a config with safe algorithm and leeway defaults.
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}

type jwtValidator struct {
	cfg     *JWTConfig
	keyfunc jwt.Keyfunc
}

// NewFromDiscovery performs OIDC discovery against the issuer to locate the
// JWKS endpoint, then constructs a TokenValidator that validates RFC 9068
// access tokens. JWKS keys auto-refresh.
func NewFromDiscovery(ctx context.Context, cfg *JWTConfig) (TokenValidator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta struct {
		JwksURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("discovery incomplete: missing jwks_uri")
	}

	return newJWKSValidator(ctx, cfg, meta.JwksURI)
}

// NewFromJWKS constructs a TokenValidator against a statically configured
// JWKS URI, skipping discovery.
func NewFromJWKS(ctx context.Context, cfg *JWTConfig, jwksURI string) (TokenValidator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if jwksURI == "" {
		return nil, errors.New("jwks uri required")
	}
	return newJWKSValidator(ctx, cfg, jwksURI)
}

func newJWKSValidator(ctx context.Context, cfg *JWTConfig, jwksURI string) (TokenValidator, error) {
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"RS256"}
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 60 * time.Second
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	return &jwtValidator{cfg: cfg, keyfunc: func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		for _, a := range cfg.AllowedAlgs {
			if alg == a {
				return kf.Keyfunc(t)
			}
		}
		return nil, fmt.Errorf("disallowed alg: %s", alg)
	}}, nil
}

func (v *jwtValidator) Validate(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithLeeway(v.cfg.Leeway),
	}
	if len(v.cfg.ExpectedAudiences) == 1 {
		opts = append(opts, jwt.WithAudience(v.cfg.ExpectedAudiences[0]))
	}
	parser := jwt.NewParser(opts...)

	parsed, err := parser.Parse(token, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", ErrUnauthorized)
	}

	if len(v.cfg.ExpectedAudiences) > 1 && !audIntersects(claims["aud"], v.cfg.ExpectedAudiences) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}

	info, err := tokenInfoFromClaims(claims)
	if err != nil {
		return nil, err
	}

	for _, want := range v.cfg.RequiredScopes {
		if !info.HasScope(want) {
			return nil, ErrInsufficientScope
		}
	}

	return info, nil
}

func tokenInfoFromClaims(claims map[string]any) (*TokenInfo, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	scopeStr, _ := claims["scope"].(string)
	info := &TokenInfo{
		UserID: sub,
		Scopes: strings.Fields(scopeStr),
		Claims: claims,
	}
	if ext, _ := claims["external_access_token"].(string); ext != "" {
		info.ExternalAccessToken = ext
	}
	return info, nil
}

func audIntersects(aud any, wants []string) bool {
	wantSet := make(map[string]struct{}, len(wants))
	for _, w := range wants {
		wantSet[w] = struct{}{}
	}
	switch v := aud.(type) {
	case string:
		_, ok := wantSet[v]
		return ok
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				if _, ok2 := wantSet[s]; ok2 {
					return true
				}
			}
		}
	case []string:
		for _, s := range v {
			if _, ok := wantSet[s]; ok {
				return true
			}
		}
	}
	return false
}
