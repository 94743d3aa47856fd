package ports

import (
	"context"

	"github.com/autoyard/garageapi/internal/core/domain"
)

// RecordStore persists records. Mutations take a MutationMeta; the store
// must write the matching audit row and queued delivery atomically with the
// record change.
type RecordStore interface {
	CreateWithEvents(ctx context.Context, rec domain.Record, meta domain.MutationMeta) (domain.Record, error)
	UpdateWithEvents(ctx context.Context, rec domain.Record, meta domain.MutationMeta) (domain.Record, error)
	DeleteWithEvents(ctx context.Context, resource, id string, meta domain.MutationMeta) (bool, error)

	Get(ctx context.Context, resource, id string) (domain.Record, error)
	List(ctx context.Context, res domain.Resource, q domain.ListQuery) ([]domain.Record, int64, error)
	Stats(ctx context.Context, res domain.Resource, q domain.ListQuery) (domain.StatsOverview, error)

	// FindByField returns the first record whose data field equals value.
	FindByField(ctx context.Context, resource, field, value string) (domain.Record, error)
}
