package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/autoyard/garageapi/internal/core/domain"
)

// memStore is an in-memory RecordStore for service tests. It keeps the
// audit events and deliveries each mutation produced so tests can assert
// against them.
type memStore struct {
	mu         sync.Mutex
	records    map[string]domain.Record
	audits     []domain.AuditEvent
	deliveries []domain.Delivery
	err        error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.Record{}}
}

func (s *memStore) CreateWithEvents(_ context.Context, rec domain.Record, meta domain.MutationMeta) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Record{}, s.err
	}
	s.records[rec.ID] = rec
	s.recordEvents(rec, meta)
	return rec, nil
}

func (s *memStore) UpdateWithEvents(_ context.Context, rec domain.Record, meta domain.MutationMeta) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Record{}, s.err
	}
	if _, ok := s.records[rec.ID]; !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	s.records[rec.ID] = rec
	s.recordEvents(rec, meta)
	return rec, nil
}

func (s *memStore) DeleteWithEvents(_ context.Context, resource, id string, meta domain.MutationMeta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	rec, ok := s.records[id]
	if !ok || rec.Resource != resource {
		return false, nil
	}
	delete(s.records, id)
	s.recordEvents(rec, meta)
	return true, nil
}

func (s *memStore) Get(_ context.Context, resource, id string) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Resource != resource {
		return domain.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *memStore) List(_ context.Context, res domain.Resource, q domain.ListQuery) ([]domain.Record, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, 0, s.err
	}

	matched := s.matching(res.Name, q)
	total := int64(len(matched))

	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *memStore) Stats(_ context.Context, res domain.Resource, q domain.ListQuery) (domain.StatsOverview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overview := domain.NewStatsOverview()
	for _, rec := range s.matching(res.Name, q) {
		overview.Total++
		overview.ByStatus[rec.Status]++
	}
	return overview, nil
}

func (s *memStore) FindByField(_ context.Context, resource, field, value string) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *domain.Record
	for _, rec := range s.records {
		if rec.Resource != resource || rec.Field(field) != value {
			continue
		}
		rec := rec
		if found == nil || rec.CreatedAt.Before(found.CreatedAt) {
			found = &rec
		}
	}
	if found == nil {
		return domain.Record{}, domain.ErrNotFound
	}
	return *found, nil
}

func (s *memStore) matching(resource string, q domain.ListQuery) []domain.Record {
	var matched []domain.Record
	for _, rec := range s.records {
		if rec.Resource != resource {
			continue
		}
		if q.Status != "" && rec.Status != q.Status {
			continue
		}
		if q.OwnerID != "" && rec.OwnerID != q.OwnerID {
			continue
		}
		fields := rec.Fields()
		ok := true
		for field, want := range q.Equals {
			if fmt.Sprintf("%v", fields[field]) != want {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

func (s *memStore) recordEvents(rec domain.Record, meta domain.MutationMeta) {
	meta = meta.Normalize()
	s.audits = append(s.audits, domain.AuditEvent{
		ID:       int64(len(s.audits) + 1),
		Resource: rec.Resource,
		RecordID: rec.ID,
		Action:   meta.Action,
		Actor:    meta.Actor,
		At:       meta.OccurredAt,
	})
	if meta.Delivery != nil {
		s.deliveries = append(s.deliveries, *meta.Delivery)
	}
}

func (s *memStore) lastAudit() domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.audits) == 0 {
		return domain.AuditEvent{}
	}
	return s.audits[len(s.audits)-1]
}
