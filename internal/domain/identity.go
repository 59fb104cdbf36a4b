package domain

import "time"

// LinkedIdentity vincula una cuenta externa de un proveedor con una Account interna.
// La clave natural (Provider, ProviderSubject) es unica a nivel global.
type LinkedIdentity struct {
	ID              string            `json:"id"`
	AccountID       string            `json:"account_id"`
	Provider        string            `json:"provider"`
	ProviderSubject string            `json:"provider_subject"`
	Email           string            `json:"email,omitempty"`
	AccessToken     string            `json:"-"`
	RefreshToken    string            `json:"-"`
	TokenExpiresAt  *time.Time        `json:"token_expires_at,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ExternalAssertion es la identidad externa ya verificada que recibe el nucleo.
// La validacion criptografica del proveedor ocurre fuera de este modulo.
type ExternalAssertion struct {
	Provider        string
	ProviderSubject string
	Email           string
	DisplayName     string
	AvatarURL       string
	AccessToken     string
	RefreshToken    string
	ExpiresAt       *time.Time
}
