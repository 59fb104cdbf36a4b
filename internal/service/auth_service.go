package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authlink/internal/domain"
	"authlink/internal/email"
	"authlink/internal/repository"
	"authlink/internal/secrets"
)

const (
	refreshTokenTTL      = 30 * 24 * time.Hour
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 1 * time.Hour

	// Mensaje unico para email desconocido, cuenta sin password y password
	// incorrecto: el caller no puede distinguir cual fallo.
	loginFailedMessage = "invalid email or password"
	// Respuesta identica exista o no la cuenta.
	resetRequestedMessage = "If the email is registered, a password reset link has been sent."
)

// AuthService orquesta login, rotacion de refresh, logout, reset de password
// y verificacion de email sobre el credential store.
type AuthService struct {
	logger      *zap.Logger
	store       repository.Store
	tokens      *TokenService
	hasher      *secrets.Hasher
	reconciler  *ReconcileService
	emailSender email.Sender
	audit       AuditRecorder
	limiter     RateLimiter
}

func NewAuthService(
	logger *zap.Logger,
	store repository.Store,
	tokens *TokenService,
	hasher *secrets.Hasher,
	reconciler *ReconcileService,
	emailSender email.Sender,
	audit AuditRecorder,
	limiter RateLimiter,
) *AuthService {
	if limiter == nil {
		limiter = NewRateLimiter(10*time.Minute, 3)
	}
	return &AuthService{
		logger:      logger,
		store:       store,
		tokens:      tokens,
		hasher:      hasher,
		reconciler:  reconciler,
		emailSender: emailSender,
		audit:       audit,
		limiter:     limiter,
	}
}

// LoginResult es el DTO que el nucleo devuelve al transporte.
type LoginResult struct {
	User         domain.PublicAccount `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	TokenType    string               `json:"token_type"`
	ExpiresIn    int64                `json:"expires_in"`
	IsNewAccount bool                 `json:"is_new_account,omitempty"`
}

// Register crea una cuenta con email sin verificar y emite el token de
// verificacion. No devuelve tokens de sesion: registrarse no inicia sesion.
func (s *AuthService) Register(ctx context.Context, emailAddr, password, displayName string, device domain.DeviceInfo) (domain.PublicAccount, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.PublicAccount{}, domain.NewValidation("email is required")
	}
	if violations := secrets.ValidatePasswordPolicy(password); len(violations) > 0 {
		return domain.PublicAccount{}, domain.NewValidation("password does not meet the policy", violations...)
	}

	passwordHash, err := s.hasher.HashPassword(password)
	if err != nil {
		return domain.PublicAccount{}, err
	}
	verificationToken, err := secrets.GenerateOpaqueToken(32)
	if err != nil {
		return domain.PublicAccount{}, err
	}

	var account domain.Account
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		_, err := r.Accounts.GetByEmail(ctx, emailAddr)
		if err == nil {
			return domain.NewConflict("email already registered")
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		account = domain.Account{
			ID:           uuid.NewString(),
			Email:        emailAddr,
			PasswordHash: passwordHash,
			DisplayName:  displayName,
			Status:       domain.AccountActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := r.Accounts.Create(ctx, account); err != nil {
			return err
		}
		return r.OneTimeTokens.Create(ctx, domain.OneTimeToken{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Token:     verificationToken,
			Type:      domain.TokenEmailVerification,
			ExpiresAt: now.Add(verificationTokenTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.PublicAccount{}, err
	}

	if err := s.emailSender.SendVerificationEmail(ctx, emailAddr, verificationToken); err != nil {
		s.logger.Warn("send verification email failed", zap.Error(err), zap.String("email", emailAddr))
	}
	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: account.ID,
		Event:     domain.AuditRegister,
		Success:   true,
		IP:        device.IP,
		UserAgent: device.UserAgent,
	})
	return account.Public(), nil
}

// Login autentica por email y password y emite el par access+refresh.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string, device domain.DeviceInfo) (LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)

	account, err := s.store.Repos().Accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, s.loginFailed(ctx, "", "unknown email", device)
		}
		return LoginResult{}, err
	}
	if account.PasswordHash == "" || !s.hasher.VerifyPassword(password, account.PasswordHash) {
		return LoginResult{}, s.loginFailed(ctx, account.ID, "bad password", device)
	}
	if account.Status != domain.AccountActive {
		return LoginResult{}, s.loginFailed(ctx, account.ID, "inactive account", device)
	}

	var result LoginResult
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		result, err = s.issueSession(ctx, r, account, device)
		return err
	})
	if err != nil {
		return LoginResult{}, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: account.ID,
		Event:     domain.AuditLogin,
		Success:   true,
		IP:        device.IP,
		UserAgent: device.UserAgent,
	})
	return result, nil
}

// RefreshAccessToken rota el refresh token: el token presentado queda
// revocado y se emite un par nuevo en la misma transaccion. Un refresh
// token es de un solo uso.
func (s *AuthService) RefreshAccessToken(ctx context.Context, rawRefreshToken string, device domain.DeviceInfo) (LoginResult, error) {
	claims, err := s.tokens.Verify(rawRefreshToken)
	if err != nil || claims.Kind != TokenRefresh {
		return LoginResult{}, domain.NewUnauthorized("invalid refresh token")
	}

	tokenHash := secrets.HashToken(rawRefreshToken)
	var (
		result  LoginResult
		account domain.Account
	)
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		now := time.Now().UTC()
		stored, err := r.RefreshTokens.GetLiveByHash(ctx, tokenHash, now)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewUnauthorized("invalid refresh token")
			}
			return err
		}
		account, err = r.Accounts.GetByID(ctx, stored.AccountID)
		if err != nil {
			return err
		}
		if account.Status != domain.AccountActive {
			return domain.NewUnauthorized("invalid refresh token")
		}
		// Compare-and-revoke: de dos refresh concurrentes con el mismo
		// token gana a lo sumo uno.
		revoked, err := r.RefreshTokens.Revoke(ctx, stored.ID, now)
		if err != nil {
			return err
		}
		if !revoked {
			return domain.NewUnauthorized("invalid refresh token")
		}
		result, err = s.issueSession(ctx, r, account, device)
		return err
	})
	if err != nil {
		return LoginResult{}, err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: account.ID,
		Event:     domain.AuditTokenRefresh,
		Success:   true,
		IP:        device.IP,
		UserAgent: device.UserAgent,
	})
	return result, nil
}

// Logout revoca el refresh token presentado, acotado a la cuenta dada.
// Es idempotente: revocar un token inexistente o ya revocado no es error.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken, accountID string, device domain.DeviceInfo) error {
	tokenHash := secrets.HashToken(rawRefreshToken)
	revoked, err := s.store.Repos().RefreshTokens.RevokeByHashForAccount(ctx, tokenHash, accountID, time.Now().UTC())
	if err != nil {
		return err
	}
	if revoked {
		s.audit.Record(ctx, domain.AuditEvent{
			AccountID: accountID,
			Event:     domain.AuditLogout,
			Success:   true,
			IP:        device.IP,
			UserAgent: device.UserAgent,
		})
	}
	return nil
}

// RequestPasswordReset responde siempre el mismo mensaje generico, exista o
// no la cuenta, y este o no limitada la clave.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string, device domain.DeviceInfo) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return resetRequestedMessage, nil
	}
	if s.limiter != nil && !s.limiter.Allow("reset:"+emailAddr) {
		return resetRequestedMessage, nil
	}

	account, err := s.store.Repos().Accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return resetRequestedMessage, nil
		}
		return "", err
	}

	resetToken, err := secrets.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = s.store.Repos().OneTimeTokens.Create(ctx, domain.OneTimeToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Token:     resetToken,
		Type:      domain.TokenPasswordReset,
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}

	if err := s.emailSender.SendPasswordResetEmail(ctx, emailAddr, resetToken); err != nil {
		s.logger.Warn("send password reset email failed", zap.Error(err), zap.String("email", emailAddr))
	}
	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: account.ID,
		Event:     domain.AuditPasswordResetRequest,
		Success:   true,
		IP:        device.IP,
		UserAgent: device.UserAgent,
	})
	return resetRequestedMessage, nil
}

// ResetPassword consume el token de reset, fija el password nuevo y revoca
// todos los refresh tokens de la cuenta.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string, device domain.DeviceInfo) error {
	if violations := secrets.ValidatePasswordPolicy(newPassword); len(violations) > 0 {
		return domain.NewValidation("password does not meet the policy", violations...)
	}
	passwordHash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}

	var accountID string
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		now := time.Now().UTC()
		token, err := r.OneTimeTokens.GetActive(ctx, rawToken, domain.TokenPasswordReset, now)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewValidation("invalid or expired token")
			}
			return err
		}
		used, err := r.OneTimeTokens.MarkUsed(ctx, token.ID, now)
		if err != nil {
			return err
		}
		if !used {
			return domain.NewValidation("invalid or expired token")
		}
		if err := r.Accounts.UpdatePasswordHash(ctx, token.AccountID, passwordHash); err != nil {
			return err
		}
		// Invalidacion total de sesiones al rotar la credencial.
		if _, err := r.RefreshTokens.RevokeAllForAccount(ctx, token.AccountID, now); err != nil {
			return err
		}
		accountID = token.AccountID
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: accountID,
		Event:     domain.AuditPasswordReset,
		Success:   true,
		IP:        device.IP,
		UserAgent: device.UserAgent,
	})
	return nil
}

// VerifyEmail consume el token de verificacion y marca el email verificado.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string, device domain.DeviceInfo) (domain.PublicAccount, error) {
	var account domain.Account
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		now := time.Now().UTC()
		token, err := r.OneTimeTokens.GetActive(ctx, rawToken, domain.TokenEmailVerification, now)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewValidation("invalid or expired token")
			}
			return err
		}
		used, err := r.OneTimeTokens.MarkUsed(ctx, token.ID, now)
		if err != nil {
			return err
		}
		if !used {
			return domain.NewValidation("invalid or expired token")
		}
		if err := r.Accounts.SetEmailVerified(ctx, token.AccountID); err != nil {
			return err
		}
		account, err = r.Accounts.GetByID(ctx, token.AccountID)
		return err
	})
	if err != nil {
		return domain.PublicAccount{}, err
	}

	if err := s.emailSender.SendWelcomeEmail(ctx, account.Email, account.DisplayName); err != nil {
		s.logger.Warn("send welcome email failed", zap.Error(err), zap.String("email", account.Email))
	}
	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: account.ID,
		Event:     domain.AuditEmailVerify,
		Success:   true,
		IP:        device.IP,
		UserAgent: device.UserAgent,
	})
	return account.Public(), nil
}

// GetAccount devuelve la proyeccion publica de una cuenta.
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (domain.PublicAccount, error) {
	account, err := s.store.Repos().Accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PublicAccount{}, domain.NewNotFound("account not found")
		}
		return domain.PublicAccount{}, err
	}
	return account.Public(), nil
}

// HandleExternalAssertion reconcilia la asercion y emite la misma sesion que
// un login por password. Reconciliacion y emision corren en una sola
// transaccion: o la cuenta, la identidad y la sesion quedan todas, o ninguna.
func (s *AuthService) HandleExternalAssertion(ctx context.Context, assertion domain.ExternalAssertion, device domain.DeviceInfo) (LoginResult, error) {
	var (
		res    resolution
		result LoginResult
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		var err error
		res, err = s.reconciler.resolve(ctx, r, assertion)
		if err != nil {
			return err
		}
		if res.account.Status != domain.AccountActive {
			return domain.NewUnauthorized("account is not active")
		}
		result, err = s.issueSession(ctx, r, res.account, device)
		return err
	})
	if err != nil {
		return LoginResult{}, err
	}
	result.IsNewAccount = res.isNew

	s.reconciler.recordResolution(ctx, res, device)
	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: res.account.ID,
		Event:     domain.AuditLogin,
		Success:   true,
		IP:        device.IP,
		UserAgent: device.UserAgent,
		Metadata:  map[string]string{"provider": assertion.Provider},
	})
	return result, nil
}

// issueSession firma el par de tokens, persiste el hash del refresh con la
// metadata del dispositivo y actualiza el ultimo login. Corre dentro de la
// transaccion del caller.
func (s *AuthService) issueSession(ctx context.Context, r repository.Repos, account domain.Account, device domain.DeviceInfo) (LoginResult, error) {
	access, err := s.tokens.Sign(TokenAccess, account.ID, account.Email)
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := s.tokens.Sign(TokenRefresh, account.ID, account.Email)
	if err != nil {
		return LoginResult{}, err
	}

	now := time.Now().UTC()
	err = r.RefreshTokens.Create(ctx, domain.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TokenHash: secrets.HashToken(refresh),
		IP:        device.IP,
		UserAgent: device.UserAgent,
		ExpiresAt: now.Add(refreshTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return LoginResult{}, err
	}
	if err := r.Accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return LoginResult{}, err
	}
	account.LastLoginAt = &now

	return LoginResult{
		User:         account.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, accountID, reason string, device domain.DeviceInfo) error {
	s.audit.Record(ctx, domain.AuditEvent{
		AccountID: accountID,
		Event:     domain.AuditLoginFailed,
		Success:   false,
		IP:        device.IP,
		UserAgent: device.UserAgent,
		Metadata:  map[string]string{"reason": reason},
	})
	return domain.NewUnauthorized(loginFailedMessage)
}
