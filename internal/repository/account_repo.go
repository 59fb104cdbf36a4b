package repository

import (
	"context"
	"time"

	"authlink/internal/domain"
)

// AccountRepository define el contrato de persistencia para cuentas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error
}

// PgAccountRepository implementa AccountRepository usando pgx.
type PgAccountRepository struct {
	q Querier
}

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) error {
	const query = `
		INSERT INTO accounts (id, email, email_verified, password_hash, display_name, avatar_url, status, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
	`
	_, err := r.q.Exec(ctx, query,
		account.ID,
		account.Email,
		account.EmailVerified,
		account.PasswordHash,
		account.DisplayName,
		account.AvatarURL,
		account.Status,
		account.CreatedAt,
		account.UpdatedAt,
	)
	return err
}

const accountColumns = `
	id, COALESCE(email, ''), email_verified, COALESCE(password_hash, ''),
	display_name, avatar_url, status, created_at, updated_at, last_login_at
`

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, query, id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanAccount(ctx, query, email)
}

func (r *PgAccountRepository) scanAccount(ctx context.Context, query string, arg any) (domain.Account, error) {
	var a domain.Account
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&a.EmailVerified,
		&a.PasswordHash,
		&a.DisplayName,
		&a.AvatarURL,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LastLoginAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (r *PgAccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, passwordHash)
	return err
}

func (r *PgAccountRepository) SetEmailVerified(ctx context.Context, id string) error {
	const query = `UPDATE accounts SET email_verified = TRUE, updated_at = now() WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id)
	return err
}

func (r *PgAccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE accounts SET last_login_at = $2, updated_at = now() WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, at)
	return err
}

func (r *PgAccountRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	const query = `UPDATE accounts SET status = $2, updated_at = now() WHERE id = $1`
	_, err := r.q.Exec(ctx, query, id, status)
	return err
}
