package repository

import (
	"context"
	"time"

	"authlink/internal/domain"
)

// OneTimeTokenRepository define el contrato para tokens de un solo uso.
// MarkUsed es compare-and-set sobre used_at: el consumo es monotono y un
// token ya usado nunca vuelve a ser consumible.
type OneTimeTokenRepository interface {
	Create(ctx context.Context, token domain.OneTimeToken) error
	GetActive(ctx context.Context, token string, tokenType domain.OneTimeTokenType, now time.Time) (domain.OneTimeToken, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// PgOneTimeTokenRepository implementa OneTimeTokenRepository usando pgx.
type PgOneTimeTokenRepository struct {
	q Querier
}

func (r *PgOneTimeTokenRepository) Create(ctx context.Context, token domain.OneTimeToken) error {
	const query = `
		INSERT INTO one_time_tokens (id, account_id, token, token_type, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.Exec(ctx, query,
		token.ID,
		token.AccountID,
		token.Token,
		token.Type,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return err
}

func (r *PgOneTimeTokenRepository) GetActive(ctx context.Context, token string, tokenType domain.OneTimeTokenType, now time.Time) (domain.OneTimeToken, error) {
	const query = `
		SELECT id, account_id, token, token_type, expires_at, used_at, created_at
		FROM one_time_tokens
		WHERE token = $1 AND token_type = $2 AND used_at IS NULL AND expires_at > $3
	`
	var t domain.OneTimeToken
	err := r.q.QueryRow(ctx, query, token, tokenType, now).Scan(
		&t.ID,
		&t.AccountID,
		&t.Token,
		&t.Type,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.OneTimeToken{}, err
	}
	return t, nil
}

func (r *PgOneTimeTokenRepository) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE one_time_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
