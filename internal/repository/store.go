package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound es el error que devuelven los repositorios cuando no hay fila.
var ErrNotFound = pgx.ErrNoRows

// Querier abstrae pool y transaccion para que los repositorios funcionen en ambos.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repos agrupa los repositorios del credential store.
type Repos struct {
	Accounts      AccountRepository
	Identities    IdentityRepository
	RefreshTokens RefreshTokenRepository
	OneTimeTokens OneTimeTokenRepository
	AuditEvents   AuditRepository
}

// Store expone los repositorios y permite ejecutar una secuencia de
// lecturas/escrituras dentro de una unica transaccion.
type Store interface {
	Repos() Repos
	InTx(ctx context.Context, fn func(Repos) error) error
}

// PgStore implementa Store sobre pgxpool.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Repos() Repos {
	return reposFor(s.pool)
}

// InTx ejecuta fn con repositorios ligados a una transaccion; cualquier
// error revierte todo el bloque.
func (s *PgStore) InTx(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(reposFor(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func reposFor(q Querier) Repos {
	return Repos{
		Accounts:      &PgAccountRepository{q: q},
		Identities:    &PgIdentityRepository{q: q},
		RefreshTokens: &PgRefreshTokenRepository{q: q},
		OneTimeTokens: &PgOneTimeTokenRepository{q: q},
		AuditEvents:   &PgAuditRepository{q: q},
	}
}
