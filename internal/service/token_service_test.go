package service

import (
	"errors"
	"testing"
	"time"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", "authlink", "authlink", 15*time.Minute, 30*24*time.Hour)

	for _, kind := range []TokenKind{TokenAccess, TokenRefresh} {
		signed, err := svc.Sign(kind, "acc-1", "user@example.com")
		if err != nil {
			t.Fatalf("sign %s: %v", kind, err)
		}
		claims, err := svc.Verify(signed)
		if err != nil {
			t.Fatalf("verify %s: %v", kind, err)
		}
		if claims.AccountID != "acc-1" || claims.Email != "user@example.com" || claims.Kind != kind {
			t.Fatalf("unexpected claims: %+v", claims)
		}
	}
}

func TestTokenServiceExpired(t *testing.T) {
	svc := NewTokenService("secret", "authlink", "authlink", time.Nanosecond, time.Nanosecond)

	signed, err := svc.Sign(TokenAccess, "acc-1", "user@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := svc.Verify(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenServiceInvalidSignature(t *testing.T) {
	svc := NewTokenService("secret", "authlink", "authlink", 15*time.Minute, time.Hour)
	other := NewTokenService("another-secret", "authlink", "authlink", 15*time.Minute, time.Hour)

	signed, err := svc.Sign(TokenAccess, "acc-1", "user@example.com")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := other.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong key, got %v", err)
	}
	if _, err := svc.Verify(signed + "x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered token, got %v", err)
	}
	if _, err := svc.Verify("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestTokenServiceIssuerAudienceMismatch(t *testing.T) {
	svc := NewTokenService("secret", "authlink", "authlink", 15*time.Minute, time.Hour)
	wrongIssuer := NewTokenService("secret", "someone-else", "authlink", 15*time.Minute, time.Hour)
	wrongAudience := NewTokenService("secret", "authlink", "other-api", 15*time.Minute, time.Hour)

	fromWrongIssuer, err := wrongIssuer.Sign(TokenAccess, "acc-1", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(fromWrongIssuer); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for issuer mismatch, got %v", err)
	}

	fromWrongAudience, err := wrongAudience.Sign(TokenAccess, "acc-1", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(fromWrongAudience); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for audience mismatch, got %v", err)
	}
}

func TestTokenServiceEmptySecret(t *testing.T) {
	svc := NewTokenService("", "authlink", "authlink", 15*time.Minute, time.Hour)
	if _, err := svc.Sign(TokenAccess, "acc-1", ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid without secret, got %v", err)
	}
}
