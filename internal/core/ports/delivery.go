package ports

import (
	"context"

	"github.com/autoyard/garageapi/internal/core/domain"
)

// DeliveryRepository is the durable queue of rendered notifications.
type DeliveryRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.Delivery, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}

// Sender hands a rendered delivery to an external provider. Returning an
// error lets the dispatcher apply its retry/dead-letter policy.
type Sender interface {
	Send(ctx context.Context, delivery domain.Delivery) error
}
