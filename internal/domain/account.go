package domain

import "time"

// AccountStatus indica el estado operativo de una cuenta.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountDeleted   AccountStatus = "deleted"
)

// Account es la cuenta interna a la que convergen credenciales e identidades externas.
type Account struct {
	ID            string        `json:"id"`
	Email         string        `json:"email,omitempty"`
	EmailVerified bool          `json:"email_verified"`
	PasswordHash  string        `json:"-"`
	DisplayName   string        `json:"display_name,omitempty"`
	AvatarURL     string        `json:"avatar_url,omitempty"`
	Status        AccountStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	LastLoginAt   *time.Time    `json:"last_login_at,omitempty"`
}

// PublicAccount es la proyeccion segura de una cuenta para respuestas externas.
type PublicAccount struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	DisplayName   string     `json:"display_name,omitempty"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// Public devuelve la proyeccion sin hashes ni material sensible.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:            a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		DisplayName:   a.DisplayName,
		AvatarURL:     a.AvatarURL,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
		LastLoginAt:   a.LastLoginAt,
	}
}
