package usecase

import (
	"context"
	"time"

	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/internal/core/ports"
)

// FlagService is the injected feature-toggle surface. No process-wide
// singleton: everything goes through the repository port so tests can swap
// it out.
type FlagService struct {
	repo  ports.FlagRepository
	audit ports.AuditRepository
}

func NewFlagService(repo ports.FlagRepository, audit ports.AuditRepository) *FlagService {
	return &FlagService{repo: repo, audit: audit}
}

func (s *FlagService) List(ctx context.Context) ([]domain.Flag, error) {
	return s.repo.List(ctx)
}

func (s *FlagService) Get(ctx context.Context, name string) (domain.Flag, error) {
	if err := domain.ValidateFlagName(name); err != nil {
		return domain.Flag{}, err
	}
	return s.repo.Get(ctx, name)
}

// IsEnabled reports the flag state, defaulting to disabled for unknown
// names so callers can probe flags that were never set.
func (s *FlagService) IsEnabled(ctx context.Context, name string) bool {
	flag, err := s.Get(ctx, name)
	if err != nil {
		return false
	}
	return flag.Enabled
}

func (s *FlagService) Set(ctx context.Context, name string, enabled bool, note, actor string) (domain.Flag, error) {
	if err := domain.ValidateFlagName(name); err != nil {
		return domain.Flag{}, err
	}
	flag, err := s.repo.Upsert(ctx, domain.Flag{Name: name, Enabled: enabled, Note: note})
	if err != nil {
		return domain.Flag{}, err
	}
	_ = s.audit.Log(ctx, domain.AuditEvent{
		Resource: "flag",
		RecordID: name,
		Action:   "updated",
		Actor:    actor,
		At:       time.Now().UTC(),
	})
	return flag, nil
}
