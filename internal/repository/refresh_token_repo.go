package repository

import (
	"context"
	"time"

	"authlink/internal/domain"
)

// RefreshTokenRepository define el contrato de persistencia para refresh tokens.
// Las revocaciones son compare-and-set sobre revoked_at para que dos refresh
// concurrentes con el mismo token produzcan a lo sumo un ganador.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	GetLiveByHash(ctx context.Context, tokenHash string, now time.Time) (domain.RefreshToken, error)
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeByHashForAccount(ctx context.Context, tokenHash, accountID string, at time.Time) (bool, error)
	RevokeAllForAccount(ctx context.Context, accountID string, at time.Time) (int64, error)
}

// PgRefreshTokenRepository implementa RefreshTokenRepository usando pgx.
type PgRefreshTokenRepository struct {
	q Querier
}

func (r *PgRefreshTokenRepository) Create(ctx context.Context, token domain.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (id, account_id, token_hash, ip, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, query,
		token.ID,
		token.AccountID,
		token.TokenHash,
		token.IP,
		token.UserAgent,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return err
}

func (r *PgRefreshTokenRepository) GetLiveByHash(ctx context.Context, tokenHash string, now time.Time) (domain.RefreshToken, error) {
	const query = `
		SELECT id, account_id, token_hash, ip, user_agent, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
	`
	var t domain.RefreshToken
	err := r.q.QueryRow(ctx, query, tokenHash, now).Scan(
		&t.ID,
		&t.AccountID,
		&t.TokenHash,
		&t.IP,
		&t.UserAgent,
		&t.ExpiresAt,
		&t.RevokedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	return t, nil
}

func (r *PgRefreshTokenRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRefreshTokenRepository) RevokeByHashForAccount(ctx context.Context, tokenHash, accountID string, at time.Time) (bool, error) {
	const query = `
		UPDATE refresh_tokens SET revoked_at = $3
		WHERE token_hash = $1 AND account_id = $2 AND revoked_at IS NULL
	`
	tag, err := r.q.Exec(ctx, query, tokenHash, accountID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRefreshTokenRepository) RevokeAllForAccount(ctx context.Context, accountID string, at time.Time) (int64, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE account_id = $1 AND revoked_at IS NULL`
	tag, err := r.q.Exec(ctx, query, accountID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
