package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret-0123456789abcdef"

func mintToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := Sign(testSecret, Identity{
		UserID: "3f0c9c2e-8f6a-4d2b-9c1e-000000000001",
		Email:  "ada@example.com",
		Name:   "Ada",
	}, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestVerifyRoundTrip(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	id, err := v.Verify(mintToken(t, time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != "3f0c9c2e-8f6a-4d2b-9c1e-000000000001" {
		t.Fatalf("unexpected user id %q", id.UserID)
	}
	if id.Email != "ada@example.com" {
		t.Fatalf("unexpected email %q", id.Email)
	}
	if id.Label() != "Ada" {
		t.Fatalf("unexpected label %q", id.Label())
	}
}

func TestVerifyExpired(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	_, err := v.Verify(mintToken(t, -time.Minute))
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewTokenVerifier("a-different-secret-entirely!")

	_, err := v.Verify(mintToken(t, time.Minute))
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyMissing(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	if _, err := v.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	if _, err := v.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLabelFallsBackToEmail(t *testing.T) {
	id := Identity{UserID: "u1", Email: "grace@example.com"}
	if id.Label() != "grace@example.com" {
		t.Fatalf("unexpected label %q", id.Label())
	}
}
