package repository

import (
	"context"
	"encoding/json"
	"time"

	"authlink/internal/domain"
)

// IdentityRepository define el contrato de persistencia para identidades vinculadas.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.LinkedIdentity) error
	GetByProviderSubject(ctx context.Context, provider, subject string) (domain.LinkedIdentity, error)
	UpdateProviderTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
	Delete(ctx context.Context, provider, subject string) (bool, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.LinkedIdentity, error)
}

// PgIdentityRepository implementa IdentityRepository usando pgx.
type PgIdentityRepository struct {
	q Querier
}

func (r *PgIdentityRepository) Create(ctx context.Context, identity domain.LinkedIdentity) error {
	const query = `
		INSERT INTO linked_identities (id, account_id, provider, provider_subject, email, access_token, refresh_token, token_expires_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	metadata, err := metadataJSON(identity.Metadata)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, query,
		identity.ID,
		identity.AccountID,
		identity.Provider,
		identity.ProviderSubject,
		identity.Email,
		identity.AccessToken,
		identity.RefreshToken,
		identity.TokenExpiresAt,
		metadata,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	return err
}

func (r *PgIdentityRepository) GetByProviderSubject(ctx context.Context, provider, subject string) (domain.LinkedIdentity, error) {
	const query = `
		SELECT id, account_id, provider, provider_subject, email, access_token, refresh_token, token_expires_at, metadata, created_at, updated_at
		FROM linked_identities
		WHERE provider = $1 AND provider_subject = $2
	`
	var (
		li       domain.LinkedIdentity
		metadata []byte
	)
	err := r.q.QueryRow(ctx, query, provider, subject).Scan(
		&li.ID,
		&li.AccountID,
		&li.Provider,
		&li.ProviderSubject,
		&li.Email,
		&li.AccessToken,
		&li.RefreshToken,
		&li.TokenExpiresAt,
		&metadata,
		&li.CreatedAt,
		&li.UpdatedAt,
	)
	if err != nil {
		return domain.LinkedIdentity{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &li.Metadata); err != nil {
			return domain.LinkedIdentity{}, err
		}
	}
	return li, nil
}

func (r *PgIdentityRepository) UpdateProviderTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	const query = `
		UPDATE linked_identities
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = now()
		WHERE id = $1
	`
	_, err := r.q.Exec(ctx, query, id, accessToken, refreshToken, expiresAt)
	return err
}

// Delete elimina la identidad si existe; devuelve false cuando nunca estuvo vinculada.
func (r *PgIdentityRepository) Delete(ctx context.Context, provider, subject string) (bool, error) {
	const query = `DELETE FROM linked_identities WHERE provider = $1 AND provider_subject = $2`
	tag, err := r.q.Exec(ctx, query, provider, subject)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgIdentityRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.LinkedIdentity, error) {
	const query = `
		SELECT id, account_id, provider, provider_subject, email, access_token, refresh_token, token_expires_at, metadata, created_at, updated_at
		FROM linked_identities
		WHERE account_id = $1
		ORDER BY created_at
	`
	rows, err := r.q.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []domain.LinkedIdentity
	for rows.Next() {
		var (
			li       domain.LinkedIdentity
			metadata []byte
		)
		if err := rows.Scan(
			&li.ID,
			&li.AccountID,
			&li.Provider,
			&li.ProviderSubject,
			&li.Email,
			&li.AccessToken,
			&li.RefreshToken,
			&li.TokenExpiresAt,
			&metadata,
			&li.CreatedAt,
			&li.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &li.Metadata); err != nil {
				return nil, err
			}
		}
		identities = append(identities, li)
	}
	return identities, rows.Err()
}

func metadataJSON(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	return json.Marshal(metadata)
}
