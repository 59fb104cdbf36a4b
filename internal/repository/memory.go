package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"authlink/internal/domain"
)

// MemoryStore es el adaptador en memoria del credential store. Sirve para
// tests y entornos sin Postgres; cada operacion se serializa con un mutex y
// InTx serializa el bloque completo frente a otras transacciones.
type MemoryStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	accounts        map[string]domain.Account
	accountsByEmail map[string]string
	identities      map[string]domain.LinkedIdentity
	identityByKey   map[string]string
	refreshTokens   map[string]domain.RefreshToken
	refreshByHash   map[string]string
	oneTimeTokens   map[string]domain.OneTimeToken
	oneTimeByValue  map[string]string
	audits          []domain.AuditEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:        make(map[string]domain.Account),
		accountsByEmail: make(map[string]string),
		identities:      make(map[string]domain.LinkedIdentity),
		identityByKey:   make(map[string]string),
		refreshTokens:   make(map[string]domain.RefreshToken),
		refreshByHash:   make(map[string]string),
		oneTimeTokens:   make(map[string]domain.OneTimeToken),
		oneTimeByValue:  make(map[string]string),
	}
}

func (s *MemoryStore) Repos() Repos {
	return Repos{
		Accounts:      &memAccounts{s: s},
		Identities:    &memIdentities{s: s},
		RefreshTokens: &memRefreshTokens{s: s},
		OneTimeTokens: &memOneTimeTokens{s: s},
		AuditEvents:   &memAudits{s: s},
	}
}

func (s *MemoryStore) InTx(_ context.Context, fn func(Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s.Repos())
}

// Audits devuelve una copia de los eventos registrados, en orden de insercion.
func (s *MemoryStore) Audits() []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEvent, len(s.audits))
	copy(out, s.audits)
	return out
}

func identityKey(provider, subject string) string {
	return provider + "|" + subject
}

type memAccounts struct{ s *MemoryStore }

func (m *memAccounts) Create(_ context.Context, account domain.Account) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if account.Email != "" {
		if _, exists := m.s.accountsByEmail[account.Email]; exists {
			return errors.New("duplicate email")
		}
	}
	m.s.accounts[account.ID] = account
	if account.Email != "" {
		m.s.accountsByEmail[account.Email] = account.ID
	}
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (domain.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	account, ok := m.s.accounts[id]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return account, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.accountsByEmail[email]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return m.s.accounts[id], nil
}

func (m *memAccounts) mutate(id string, fn func(*domain.Account)) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	account, ok := m.s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	fn(&account)
	account.UpdatedAt = time.Now().UTC()
	m.s.accounts[id] = account
	return nil
}

func (m *memAccounts) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	return m.mutate(id, func(a *domain.Account) { a.PasswordHash = passwordHash })
}

func (m *memAccounts) SetEmailVerified(_ context.Context, id string) error {
	return m.mutate(id, func(a *domain.Account) { a.EmailVerified = true })
}

func (m *memAccounts) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return m.mutate(id, func(a *domain.Account) { a.LastLoginAt = &at })
}

func (m *memAccounts) UpdateStatus(_ context.Context, id string, status domain.AccountStatus) error {
	return m.mutate(id, func(a *domain.Account) { a.Status = status })
}

type memIdentities struct{ s *MemoryStore }

func (m *memIdentities) Create(_ context.Context, identity domain.LinkedIdentity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := identityKey(identity.Provider, identity.ProviderSubject)
	if _, exists := m.s.identityByKey[key]; exists {
		return errors.New("duplicate linked identity")
	}
	m.s.identities[identity.ID] = identity
	m.s.identityByKey[key] = identity.ID
	return nil
}

func (m *memIdentities) GetByProviderSubject(_ context.Context, provider, subject string) (domain.LinkedIdentity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.identityByKey[identityKey(provider, subject)]
	if !ok {
		return domain.LinkedIdentity{}, ErrNotFound
	}
	return m.s.identities[id], nil
}

func (m *memIdentities) UpdateProviderTokens(_ context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	identity, ok := m.s.identities[id]
	if !ok {
		return ErrNotFound
	}
	identity.AccessToken = accessToken
	identity.RefreshToken = refreshToken
	identity.TokenExpiresAt = expiresAt
	identity.UpdatedAt = time.Now().UTC()
	m.s.identities[id] = identity
	return nil
}

func (m *memIdentities) Delete(_ context.Context, provider, subject string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := identityKey(provider, subject)
	id, ok := m.s.identityByKey[key]
	if !ok {
		return false, nil
	}
	delete(m.s.identityByKey, key)
	delete(m.s.identities, id)
	return true, nil
}

func (m *memIdentities) ListByAccount(_ context.Context, accountID string) ([]domain.LinkedIdentity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var identities []domain.LinkedIdentity
	for _, identity := range m.s.identities {
		if identity.AccountID == accountID {
			identities = append(identities, identity)
		}
	}
	return identities, nil
}

type memRefreshTokens struct{ s *MemoryStore }

func (m *memRefreshTokens) Create(_ context.Context, token domain.RefreshToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.refreshTokens[token.ID] = token
	m.s.refreshByHash[token.TokenHash] = token.ID
	return nil
}

func (m *memRefreshTokens) GetLiveByHash(_ context.Context, tokenHash string, now time.Time) (domain.RefreshToken, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.refreshByHash[tokenHash]
	if !ok {
		return domain.RefreshToken{}, ErrNotFound
	}
	token := m.s.refreshTokens[id]
	if !token.Live(now) {
		return domain.RefreshToken{}, ErrNotFound
	}
	return token, nil
}

func (m *memRefreshTokens) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	token, ok := m.s.refreshTokens[id]
	if !ok || token.RevokedAt != nil {
		return false, nil
	}
	token.RevokedAt = &at
	m.s.refreshTokens[id] = token
	return true, nil
}

func (m *memRefreshTokens) RevokeByHashForAccount(_ context.Context, tokenHash, accountID string, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.refreshByHash[tokenHash]
	if !ok {
		return false, nil
	}
	token := m.s.refreshTokens[id]
	if token.AccountID != accountID || token.RevokedAt != nil {
		return false, nil
	}
	token.RevokedAt = &at
	m.s.refreshTokens[id] = token
	return true, nil
}

func (m *memRefreshTokens) RevokeAllForAccount(_ context.Context, accountID string, at time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var revoked int64
	for id, token := range m.s.refreshTokens {
		if token.AccountID == accountID && token.RevokedAt == nil {
			token.RevokedAt = &at
			m.s.refreshTokens[id] = token
			revoked++
		}
	}
	return revoked, nil
}

type memOneTimeTokens struct{ s *MemoryStore }

func (m *memOneTimeTokens) Create(_ context.Context, token domain.OneTimeToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.oneTimeTokens[token.ID] = token
	m.s.oneTimeByValue[token.Token] = token.ID
	return nil
}

func (m *memOneTimeTokens) GetActive(_ context.Context, value string, tokenType domain.OneTimeTokenType, now time.Time) (domain.OneTimeToken, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	id, ok := m.s.oneTimeByValue[value]
	if !ok {
		return domain.OneTimeToken{}, ErrNotFound
	}
	token := m.s.oneTimeTokens[id]
	if token.Type != tokenType || !token.Usable(now) {
		return domain.OneTimeToken{}, ErrNotFound
	}
	return token, nil
}

func (m *memOneTimeTokens) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	token, ok := m.s.oneTimeTokens[id]
	if !ok || token.UsedAt != nil {
		return false, nil
	}
	token.UsedAt = &at
	m.s.oneTimeTokens[id] = token
	return true, nil
}

type memAudits struct{ s *MemoryStore }

func (m *memAudits) Insert(_ context.Context, event domain.AuditEvent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.audits = append(m.s.audits, event)
	return nil
}
