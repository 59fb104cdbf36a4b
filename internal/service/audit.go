package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"authlink/internal/domain"
	"authlink/internal/repository"
)

// AuditRecorder es la capacidad estrecha de auditoria inyectada en los
// servicios. Record es best-effort: un fallo se loguea y se descarta,
// nunca se propaga a la operacion principal.
type AuditRecorder interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

type storeAuditRecorder struct {
	logger *zap.Logger
	audits repository.AuditRepository
}

func NewAuditRecorder(logger *zap.Logger, audits repository.AuditRepository) AuditRecorder {
	return &storeAuditRecorder{logger: logger, audits: audits}
}

func (r *storeAuditRecorder) Record(ctx context.Context, event domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := r.audits.Insert(ctx, event); err != nil && r.logger != nil {
		r.logger.Warn("audit insert failed",
			zap.Error(err),
			zap.String("event", event.Event),
			zap.String("account_id", event.AccountID),
		)
	}
}
