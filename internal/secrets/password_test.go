package secrets

import (
	"strings"
	"testing"
)

func TestHashPasswordFreshSalt(t *testing.T) {
	hasher := NewHasher(4)

	first, err := hasher.HashPassword("Sup3r$ecret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	second, err := hasher.HashPassword("Sup3r$ecret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if first == second {
		t.Fatalf("expected different hashes for the same plaintext")
	}
	if !hasher.VerifyPassword("Sup3r$ecret", first) {
		t.Fatalf("first hash should verify")
	}
	if !hasher.VerifyPassword("Sup3r$ecret", second) {
		t.Fatalf("second hash should verify")
	}
}

func TestVerifyPasswordRejects(t *testing.T) {
	hasher := NewHasher(4)

	hash, err := hasher.HashPassword("Sup3r$ecret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hasher.VerifyPassword("wrong password", hash) {
		t.Fatalf("wrong password should not verify")
	}
	if hasher.VerifyPassword("Sup3r$ecret", "not-a-bcrypt-hash") {
		t.Fatalf("malformed hash should not verify")
	}
	if hasher.VerifyPassword("Sup3r$ecret", "") {
		t.Fatalf("empty hash should not verify")
	}
}

func TestValidatePasswordPolicyEnumeratesAll(t *testing.T) {
	// Tiene digito, minusculas y largo suficiente; faltan mayuscula y simbolo.
	violations := ValidatePasswordPolicy("weak1234")
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d: %v", len(violations), violations)
	}
	assertContains(t, violations, RuleUpper)
	assertContains(t, violations, RuleSymbol)
}

func TestValidatePasswordPolicyAllRules(t *testing.T) {
	violations := ValidatePasswordPolicy("")
	for _, rule := range []string{RuleMinLength, RuleUpper, RuleLower, RuleDigit, RuleSymbol} {
		assertContains(t, violations, rule)
	}

	if violations := ValidatePasswordPolicy("Str0ng!pass"); len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}

func assertContains(t *testing.T, violations []string, rule string) {
	t.Helper()
	for _, v := range violations {
		if v == rule {
			return
		}
	}
	t.Fatalf("expected violation %q in %s", rule, strings.Join(violations, "; "))
}
