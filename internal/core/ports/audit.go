package ports

import (
	"context"

	"github.com/autoyard/garageapi/internal/core/domain"
)

type AuditRepository interface {
	Log(ctx context.Context, event domain.AuditEvent) error
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error)
}
