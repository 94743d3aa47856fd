package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/internal/core/ports"
)

// systemFields are never taken from a client payload; they live in columns
// and are managed by the service.
var systemFields = map[string]bool{
	"id":        true,
	"ownerId":   true,
	"status":    true,
	"createdAt": true,
	"updatedAt": true,
}

// ResourceService is the generic CRUD engine. All per-resource behavior is
// read from the domain.Resource passed into each call.
type ResourceService struct {
	store     ports.RecordStore
	validator *PayloadValidator
	composer  *Composer
}

func NewResourceService(store ports.RecordStore, validator *PayloadValidator, composer *Composer) *ResourceService {
	return &ResourceService{store: store, validator: validator, composer: composer}
}

// List returns one page of matching records. Zero matches is a valid,
// successful result.
func (s *ResourceService) List(ctx context.Context, res domain.Resource, q domain.ListQuery) ([]domain.Record, domain.Page, error) {
	q = q.Normalize()
	records, total, err := s.store.List(ctx, res, q)
	if err != nil {
		return nil, domain.Page{}, fmt.Errorf("list %s: %w", res.Path, err)
	}
	return records, domain.NewPage(q.Page, q.Limit, total), nil
}

func (s *ResourceService) Get(ctx context.Context, res domain.Resource, id string) (domain.Record, error) {
	if err := validateID(id); err != nil {
		return domain.Record{}, err
	}
	rec, err := s.store.Get(ctx, res.Name, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Record{}, domain.NotFoundError(res.Name)
		}
		return domain.Record{}, fmt.Errorf("get %s: %w", res.Name, err)
	}
	return rec, nil
}

func (s *ResourceService) Create(ctx context.Context, res domain.Resource, caller domain.Caller, payload json.RawMessage) (domain.Record, error) {
	if err := s.validator.Validate(res, payload); err != nil {
		return domain.Record{}, err
	}

	fields := map[string]any{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return domain.Record{}, domain.NewError(http.StatusBadRequest, "INVALID_PAYLOAD", "payload must be a json object")
	}
	for name := range systemFields {
		delete(fields, name)
	}

	if err := s.checkUnique(ctx, res, "", fields); err != nil {
		return domain.Record{}, err
	}

	if res.ReferenceField != "" && res.ReferencePrefix != "" {
		fields[res.ReferenceField] = generateReference(res.ReferencePrefix)
	}

	now := time.Now().UTC()
	data, err := json.Marshal(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode %s data: %w", res.Name, err)
	}

	rec := domain.Record{
		ID:        uuid.NewString(),
		Resource:  res.Name,
		OwnerID:   caller.ID,
		Status:    res.Initial,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	meta := domain.MutationMeta{Actor: caller.ID, Action: "created", OccurredAt: now}
	if res.Notify {
		meta.Delivery = s.composer.Compose(res, "created", rec)
	}

	stored, err := s.store.CreateWithEvents(ctx, rec, meta)
	if err != nil {
		return domain.Record{}, fmt.Errorf("create %s: %w", res.Name, err)
	}
	return stored, nil
}

func (s *ResourceService) Update(ctx context.Context, res domain.Resource, caller domain.Caller, id string, payload json.RawMessage) (domain.Record, error) {
	if err := validateID(id); err != nil {
		return domain.Record{}, err
	}

	patch := map[string]any{}
	if err := json.Unmarshal(payload, &patch); err != nil {
		return domain.Record{}, domain.NewError(http.StatusBadRequest, "INVALID_PAYLOAD", "payload must be a json object")
	}

	existing, err := s.Get(ctx, res, id)
	if err != nil {
		return domain.Record{}, err
	}
	if res.Owned && !caller.MayMutate(existing.OwnerID) {
		return domain.Record{}, domain.ForbiddenError()
	}

	fields := existing.Fields()
	for name, value := range patch {
		if systemFields[name] {
			continue
		}
		fields[name] = value
	}

	if err := s.checkUnique(ctx, res, id, fields); err != nil {
		return domain.Record{}, err
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode %s data: %w", res.Name, err)
	}

	existing.Data = data
	existing.UpdatedAt = nextUpdateTime(existing.UpdatedAt)

	meta := domain.MutationMeta{Actor: caller.ID, Action: "updated", OccurredAt: existing.UpdatedAt}
	stored, err := s.store.UpdateWithEvents(ctx, existing, meta)
	if err != nil {
		return domain.Record{}, fmt.Errorf("update %s: %w", res.Name, err)
	}
	return stored, nil
}

// StatusPatch carries a status transition and its optional companions.
type StatusPatch struct {
	Status     string   `json:"status"`
	Notes      string   `json:"notes"`
	ActualCost *float64 `json:"actualCost"`
}

func (s *ResourceService) PatchStatus(ctx context.Context, res domain.Resource, caller domain.Caller, id string, patch StatusPatch) (domain.Record, error) {
	if err := validateID(id); err != nil {
		return domain.Record{}, err
	}
	if !res.ValidStatus(patch.Status) {
		return domain.Record{}, domain.NewError(http.StatusBadRequest, "INVALID_STATUS",
			fmt.Sprintf("status %q is not valid for %s", patch.Status, res.Name))
	}

	existing, err := s.Get(ctx, res, id)
	if err != nil {
		return domain.Record{}, err
	}
	if res.Owned && !caller.MayMutate(existing.OwnerID) {
		return domain.Record{}, domain.ForbiddenError()
	}

	now := nextUpdateTime(existing.UpdatedAt)
	fields := existing.Fields()
	if tsField, ok := res.Timestamps[patch.Status]; ok {
		fields[tsField] = now.Format(time.RFC3339Nano)
	}
	if patch.Notes != "" {
		fields["notes"] = patch.Notes
	}
	if patch.ActualCost != nil {
		fields["actualCost"] = *patch.ActualCost
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("encode %s data: %w", res.Name, err)
	}

	existing.Status = patch.Status
	existing.Data = data
	existing.UpdatedAt = now

	meta := domain.MutationMeta{Actor: caller.ID, Action: "status_changed", OccurredAt: now}
	if res.Notify {
		meta.Delivery = s.composer.Compose(res, patch.Status, existing)
	}

	stored, err := s.store.UpdateWithEvents(ctx, existing, meta)
	if err != nil {
		return domain.Record{}, fmt.Errorf("patch %s status: %w", res.Name, err)
	}
	return stored, nil
}

func (s *ResourceService) Delete(ctx context.Context, res domain.Resource, caller domain.Caller, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	if res.Owned {
		existing, err := s.Get(ctx, res, id)
		if err != nil {
			return err
		}
		if !caller.MayMutate(existing.OwnerID) {
			return domain.ForbiddenError()
		}
	}

	meta := domain.MutationMeta{Actor: caller.ID, Action: "deleted", OccurredAt: time.Now().UTC()}
	deleted, err := s.store.DeleteWithEvents(ctx, res.Name, id, meta)
	if err != nil {
		return fmt.Errorf("delete %s: %w", res.Name, err)
	}
	if !deleted {
		return domain.NotFoundError(res.Name)
	}
	return nil
}

func (s *ResourceService) Stats(ctx context.Context, res domain.Resource, q domain.ListQuery) (domain.StatsOverview, error) {
	overview, err := s.store.Stats(ctx, res, q.Normalize())
	if err != nil {
		return domain.StatsOverview{}, fmt.Errorf("stats %s: %w", res.Path, err)
	}
	return overview, nil
}

func (s *ResourceService) checkUnique(ctx context.Context, res domain.Resource, selfID string, fields map[string]any) error {
	for _, field := range res.Unique {
		value, ok := fields[field].(string)
		if !ok || value == "" {
			continue
		}
		other, err := s.store.FindByField(ctx, res.Name, field, value)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("uniqueness check %s.%s: %w", res.Name, field, err)
		}
		if other.ID != selfID {
			return domain.ConflictError(res.Name, field)
		}
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.InvalidIDError()
	}
	return nil
}

// nextUpdateTime guarantees updatedAt strictly increases even when the
// clock has not advanced past the previous mutation.
func nextUpdateTime(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func generateReference(prefix string) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().UTC().UnixMilli(), rand.Intn(10000))
}
