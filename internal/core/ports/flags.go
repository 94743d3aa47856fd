package ports

import (
	"context"

	"github.com/autoyard/garageapi/internal/core/domain"
)

type FlagRepository interface {
	Upsert(ctx context.Context, flag domain.Flag) (domain.Flag, error)
	Get(ctx context.Context, name string) (domain.Flag, error)
	List(ctx context.Context) ([]domain.Flag, error)
}
