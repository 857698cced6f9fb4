package auth

import (
	"context"
	"errors"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
)

func signToken(t *testing.T, key []byte, claims string) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: key}, nil)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	sig, err := signer.Sign([]byte(claims))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	out, err := sig.CompactSerialize()
	if err != nil {
		t.Fatalf("CompactSerialize failed: %v", err)
	}
	return out
}

func newLocal(t *testing.T, key []byte) TokenValidator {
	t.Helper()
	v, err := NewLocalKeySet(jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{Key: key, Algorithm: string(jose.HS256)}},
	}, jose.HS256)
	if err != nil {
		t.Fatalf("NewLocalKeySet failed: %v", err)
	}
	return v
}

func TestLocalValidatorAccepts(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	v := newLocal(t, key)

	tok := signToken(t, key, `{"sub":"user-1","scope":"drive.read drive.write","external_access_token":"ext-token"}`)
	info, err := v.Validate(context.Background(), tok)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if info.UserID != "user-1" {
		t.Fatalf("unexpected user id %q", info.UserID)
	}
	if info.ExternalAccessToken != "ext-token" {
		t.Fatalf("missing external token: %+v", info)
	}
	if !info.HasScope("drive.read") || info.HasScope("admin") {
		t.Fatalf("unexpected scopes: %v", info.Scopes)
	}
}

func TestLocalValidatorRejectsBadSignature(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	other := []byte("fedcba9876543210fedcba9876543210")
	v := newLocal(t, key)

	tok := signToken(t, other, `{"sub":"user-1"}`)
	if _, err := v.Validate(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLocalValidatorRejectsMissingSub(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	v := newLocal(t, key)

	tok := signToken(t, key, `{"scope":"a"}`)
	if _, err := v.Validate(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing sub, got %v", err)
	}
}

func TestLocalValidatorRejectsGarbage(t *testing.T) {
	v := newLocal(t, []byte("0123456789abcdef0123456789abcdef"))
	if _, err := v.Validate(context.Background(), "not.a.jws"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := v.Validate(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}
