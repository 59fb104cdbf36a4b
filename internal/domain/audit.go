package domain

import "time"

// Tipos de evento de auditoria emitidos por el nucleo.
const (
	AuditRegister             = "REGISTER"
	AuditLogin                = "LOGIN"
	AuditLoginFailed          = "LOGIN_FAILED"
	AuditTokenRefresh         = "TOKEN_REFRESH"
	AuditLogout               = "LOGOUT"
	AuditPasswordResetRequest = "PASSWORD_RESET_REQUEST"
	AuditPasswordReset        = "PASSWORD_RESET"
	AuditEmailVerify          = "EMAIL_VERIFY"
	AuditOAuthLink            = "OAUTH_LINK"
	AuditOAuthUnlink          = "OAUTH_UNLINK"
)

// AuditEvent es un registro inmutable de solo escritura; fallar al
// persistirlo nunca debe fallar la operacion principal.
type AuditEvent struct {
	ID        string            `json:"id"`
	AccountID string            `json:"account_id,omitempty"`
	Event     string            `json:"event"`
	Success   bool              `json:"success"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DeviceInfo transporta metadata de cliente de forma opaca hacia
// refresh tokens y eventos de auditoria.
type DeviceInfo struct {
	IP        string
	UserAgent string
}
