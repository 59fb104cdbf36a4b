package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authlink/internal/domain"
	"authlink/internal/repository"
)

// ReconcileService decide si una asercion externa verificada crea una cuenta
// nueva, se adjunta a una existente por coincidencia de email, o actualiza
// una identidad ya vinculada.
type ReconcileService struct {
	logger *zap.Logger
	store  repository.Store
	audit  AuditRecorder
}

func NewReconcileService(logger *zap.Logger, store repository.Store, audit AuditRecorder) *ReconcileService {
	return &ReconcileService{logger: logger, store: store, audit: audit}
}

// resolution es el resultado de reconciliar una asercion; los flags indican
// que eventos de auditoria corresponden una vez confirmada la transaccion.
type resolution struct {
	account     domain.Account
	isNew       bool
	newlyLinked bool
	provider    string
	subject     string
}

// Resolve ejecuta el algoritmo de reconciliacion en su propia transaccion y
// devuelve (cuenta, esNueva). Los eventos de auditoria se emiten despues de
// confirmar.
func (s *ReconcileService) Resolve(ctx context.Context, assertion domain.ExternalAssertion, device domain.DeviceInfo) (domain.Account, bool, error) {
	var res resolution
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		var err error
		res, err = s.resolve(ctx, r, assertion)
		return err
	})
	if err != nil {
		return domain.Account{}, false, err
	}
	s.recordResolution(ctx, res, device)
	return res.account, res.isNew, nil
}

// resolve corre dentro de la transaccion del caller:
//  1. busca la identidad por (provider, subject); si existe actualiza sus
//     tokens de proveedor en sitio y devuelve la cuenta duenia
//  2. si no existe, busca una cuenta por email; una asercion sin email
//     nunca coincide por email y cae siempre en creacion
//  3. sin cuenta coincidente crea una nueva, con email pre-verificado
//  4. crea la identidad vinculada con los tokens del proveedor
func (s *ReconcileService) resolve(ctx context.Context, r repository.Repos, assertion domain.ExternalAssertion) (resolution, error) {
	provider := strings.ToLower(strings.TrimSpace(assertion.Provider))
	subject := strings.TrimSpace(assertion.ProviderSubject)
	if provider == "" || subject == "" {
		return resolution{}, domain.NewValidation("assertion provider and subject are required")
	}
	emailAddr := normalizeEmail(assertion.Email)
	res := resolution{provider: provider, subject: subject}

	identity, err := r.Identities.GetByProviderSubject(ctx, provider, subject)
	if err == nil {
		owner, err := r.Accounts.GetByID(ctx, identity.AccountID)
		if err != nil {
			return resolution{}, err
		}
		if err := r.Identities.UpdateProviderTokens(ctx, identity.ID, assertion.AccessToken, assertion.RefreshToken, assertion.ExpiresAt); err != nil {
			return resolution{}, err
		}
		res.account = owner
		return res, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return resolution{}, err
	}

	if emailAddr != "" {
		existing, err := r.Accounts.GetByEmail(ctx, emailAddr)
		if err == nil {
			res.account = existing
		} else if !errors.Is(err, repository.ErrNotFound) {
			return resolution{}, err
		}
	}

	now := time.Now().UTC()
	if res.account.ID == "" {
		res.account = domain.Account{
			ID:            uuid.NewString(),
			Email:         emailAddr,
			EmailVerified: emailAddr != "",
			DisplayName:   strings.TrimSpace(assertion.DisplayName),
			AvatarURL:     strings.TrimSpace(assertion.AvatarURL),
			Status:        domain.AccountActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.Accounts.Create(ctx, res.account); err != nil {
			return resolution{}, err
		}
		res.isNew = true
	}

	identity = domain.LinkedIdentity{
		ID:              uuid.NewString(),
		AccountID:       res.account.ID,
		Provider:        provider,
		ProviderSubject: subject,
		Email:           emailAddr,
		AccessToken:     assertion.AccessToken,
		RefreshToken:    assertion.RefreshToken,
		TokenExpiresAt:  assertion.ExpiresAt,
		Metadata:        identityMetadata(assertion),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.Identities.Create(ctx, identity); err != nil {
		return resolution{}, err
	}
	res.newlyLinked = true
	return res, nil
}

// recordResolution emite REGISTER y OAUTH_LINK segun lo que la transaccion
// confirmada haya creado.
func (s *ReconcileService) recordResolution(ctx context.Context, res resolution, device domain.DeviceInfo) {
	if res.isNew {
		s.audit.Record(ctx, domain.AuditEvent{
			AccountID: res.account.ID,
			Event:     domain.AuditRegister,
			Success:   true,
			IP:        device.IP,
			UserAgent: device.UserAgent,
			Metadata:  map[string]string{"provider": res.provider},
		})
	}
	if res.newlyLinked {
		s.audit.Record(ctx, domain.AuditEvent{
			AccountID: res.account.ID,
			Event:     domain.AuditOAuthLink,
			Success:   true,
			IP:        device.IP,
			UserAgent: device.UserAgent,
			Metadata:  map[string]string{"provider": res.provider, "subject": res.subject},
		})
	}
}

// Unlink elimina la identidad (provider, subject) si existe, sin importar la
// cuenta duenia. Devuelve false sin error cuando nunca estuvo vinculada: los
// callbacks de desautorizacion del proveedor pueden llegar mas de una vez.
func (s *ReconcileService) Unlink(ctx context.Context, provider, subject string, device domain.DeviceInfo) (bool, error) {
	provider, subject, err := normalizeProviderKey(provider, subject)
	if err != nil {
		return false, err
	}

	identity, err := s.store.Repos().Identities.GetByProviderSubject(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if s.logger != nil {
				s.logger.Warn("unlink requested for identity that was never linked",
					zap.String("provider", provider),
					zap.String("subject", subject),
				)
			}
			return false, nil
		}
		return false, err
	}
	return s.removeIdentity(ctx, identity, device)
}

// UnlinkOwned elimina la identidad (provider, subject) solo si pertenece a la
// cuenta dada. Una identidad ajena responde igual que una inexistente, asi el
// caller no distingue "no existe" de "no es tuya".
func (s *ReconcileService) UnlinkOwned(ctx context.Context, accountID, provider, subject string, device domain.DeviceInfo) (bool, error) {
	provider, subject, err := normalizeProviderKey(provider, subject)
	if err != nil {
		return false, err
	}

	identity, err := s.store.Repos().Identities.GetByProviderSubject(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if identity.AccountID != accountID {
		if s.logger != nil {
			s.logger.Warn("unlink rejected for identity owned by another account",
				zap.String("provider", provider),
				zap.String("subject", subject),
				zap.String("account_id", accountID),
			)
		}
		return false, nil
	}
	return s.removeIdentity(ctx, identity, device)
}

func (s *ReconcileService) removeIdentity(ctx context.Context, identity domain.LinkedIdentity, device domain.DeviceInfo) (bool, error) {
	deleted, err := s.store.Repos().Identities.Delete(ctx, identity.Provider, identity.ProviderSubject)
	if err != nil {
		return false, err
	}
	if deleted {
		s.audit.Record(ctx, domain.AuditEvent{
			AccountID: identity.AccountID,
			Event:     domain.AuditOAuthUnlink,
			Success:   true,
			IP:        device.IP,
			UserAgent: device.UserAgent,
			Metadata:  map[string]string{"provider": identity.Provider, "subject": identity.ProviderSubject},
		})
	}
	return deleted, nil
}

func normalizeProviderKey(provider, subject string) (string, string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	subject = strings.TrimSpace(subject)
	if provider == "" || subject == "" {
		return "", "", domain.NewValidation("provider and subject are required")
	}
	return provider, subject, nil
}

func identityMetadata(assertion domain.ExternalAssertion) map[string]string {
	metadata := make(map[string]string)
	if name := strings.TrimSpace(assertion.DisplayName); name != "" {
		metadata["display_name"] = name
	}
	if avatar := strings.TrimSpace(assertion.AvatarURL); avatar != "" {
		metadata["avatar_url"] = avatar
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
