package domain

import "time"

// RefreshToken guarda solo el digest del token emitido, nunca el secreto.
type RefreshToken struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	TokenHash string     `json:"-"`
	IP        string     `json:"ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Live indica si el token todavia autoriza un refresh.
func (t RefreshToken) Live(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// OneTimeTokenType clasifica tokens de un solo uso.
type OneTimeTokenType string

const (
	TokenEmailVerification OneTimeTokenType = "email_verification"
	TokenPasswordReset     OneTimeTokenType = "password_reset"
)

// OneTimeToken es un secreto de un solo uso con expiracion corta.
// UsedAt no nulo lo inutiliza de forma permanente.
type OneTimeToken struct {
	ID        string           `json:"id"`
	AccountID string           `json:"account_id"`
	Token     string           `json:"-"`
	Type      OneTimeTokenType `json:"type"`
	ExpiresAt time.Time        `json:"expires_at"`
	UsedAt    *time.Time       `json:"used_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Usable indica si el token puede consumirse todavia.
func (t OneTimeToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
