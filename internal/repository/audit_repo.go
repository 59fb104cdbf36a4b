package repository

import (
	"context"

	"authlink/internal/domain"
)

// AuditRepository define el contrato de escritura append-only de auditoria.
type AuditRepository interface {
	Insert(ctx context.Context, event domain.AuditEvent) error
}

// PgAuditRepository implementa AuditRepository usando pgx.
type PgAuditRepository struct {
	q Querier
}

func (r *PgAuditRepository) Insert(ctx context.Context, event domain.AuditEvent) error {
	const query = `
		INSERT INTO audit_events (id, account_id, event, success, ip, user_agent, metadata, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
	`
	metadata, err := metadataJSON(event.Metadata)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, query,
		event.ID,
		event.AccountID,
		event.Event,
		event.Success,
		event.IP,
		event.UserAgent,
		metadata,
		event.CreatedAt,
	)
	return err
}
