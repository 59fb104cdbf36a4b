package secrets

import (
	"encoding/hex"
	"testing"
)

func TestGenerateOpaqueToken(t *testing.T) {
	token, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}

	other, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == other {
		t.Fatalf("two tokens should never collide")
	}
}

func TestGenerateOpaqueTokenDefaultLength(t *testing.T) {
	token, err := GenerateOpaqueToken(0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected default 32 bytes (64 hex chars), got %d", len(token))
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatalf("digest should be deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatalf("different tokens should produce different digests")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("sha256 hex digest should be 64 chars")
	}
}

func TestConstantTimeEquals(t *testing.T) {
	if !ConstantTimeEquals("secret", "secret") {
		t.Fatalf("equal strings should match")
	}
	if ConstantTimeEquals("secret", "secrex") {
		t.Fatalf("different strings should not match")
	}
	if ConstantTimeEquals("secret", "secret-longer") {
		t.Fatalf("length mismatch should short-circuit to false")
	}
	if !ConstantTimeEquals("", "") {
		t.Fatalf("empty strings are equal")
	}
}
