package secrets

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Hasher encapsula el hashing adaptativo de passwords con costo configurable.
type Hasher struct {
	cost int
}

// NewHasher crea un Hasher; costos fuera de rango caen al default de bcrypt.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// HashPassword genera un hash salado; dos llamadas con el mismo texto
// producen hashes distintos porque la sal es fresca en cada una.
func (h *Hasher) HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword devuelve false ante hash malformado, nunca panic.
func (h *Hasher) VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Reglas reportadas por ValidatePasswordPolicy.
const (
	RuleMinLength = "must be at least 8 characters long"
	RuleUpper     = "must contain at least one uppercase letter"
	RuleLower     = "must contain at least one lowercase letter"
	RuleDigit     = "must contain at least one digit"
	RuleSymbol    = "must contain at least one special character"
)

// ValidatePasswordPolicy devuelve todas las reglas incumplidas, no solo la primera.
func ValidatePasswordPolicy(password string) []string {
	var violations []string
	if len(password) < 8 {
		violations = append(violations, RuleMinLength)
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		violations = append(violations, RuleUpper)
	}
	if !hasLower {
		violations = append(violations, RuleLower)
	}
	if !hasDigit {
		violations = append(violations, RuleDigit)
	}
	if !hasSymbol {
		violations = append(violations, RuleSymbol)
	}
	return violations
}
