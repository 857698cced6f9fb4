package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// localValidator validates JWS access tokens against an in-process key set.
// Intended for development and tests where no authorization server exists.
type localValidator struct {
	keys jose.JSONWebKeySet
	algs []jose.SignatureAlgorithm
}

// NewLocalKeySet constructs a TokenValidator that verifies token signatures
// against the supplied key set. Claims are interpreted the same way as the
// JWKS-backed validators; expiry is not enforced here since local tokens are
// minted ad hoc by the host.
func NewLocalKeySet(keys jose.JSONWebKeySet, algs ...jose.SignatureAlgorithm) (TokenValidator, error) {
	if len(keys.Keys) == 0 {
		return nil, errors.New("at least one key required")
	}
	if len(algs) == 0 {
		algs = []jose.SignatureAlgorithm{jose.RS256, jose.ES256, jose.HS256}
	}
	return &localValidator{keys: keys, algs: algs}, nil
}

func (v *localValidator) Validate(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	sig, err := jose.ParseSigned(token, v.algs)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token: %v", ErrUnauthorized, err)
	}

	var payload []byte
	for _, key := range v.keys.Keys {
		if p, err := sig.Verify(key); err == nil {
			payload = p
			break
		}
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: signature verification failed", ErrUnauthorized)
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: invalid claims payload", ErrUnauthorized)
	}

	return tokenInfoFromClaims(claims)
}
