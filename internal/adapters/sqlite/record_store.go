package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/autoyard/garageapi/internal/adapters/sqlite/gormsqlite"
	"github.com/autoyard/garageapi/internal/core/domain"
)

type recordModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Resource  string    `gorm:"column:resource;not null"`
	OwnerID   string    `gorm:"column:owner_id;not null"`
	Status    string    `gorm:"column:status;not null"`
	Data      string    `gorm:"column:data;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (recordModel) TableName() string {
	return "records"
}

// RecordStore persists records and, inside the same transaction, the audit
// row and queued delivery belonging to each mutation.
type RecordStore struct {
	db *gormsqlite.DB
}

func NewRecordStore(db *gormsqlite.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) CreateWithEvents(ctx context.Context, rec domain.Record, meta domain.MutationMeta) (domain.Record, error) {
	meta = meta.Normalize()
	model := toModel(rec)

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		return insertMutationEvents(tx, rec, meta)
	})
	if err != nil {
		return domain.Record{}, err
	}
	return toDomain(model), nil
}

func (s *RecordStore) UpdateWithEvents(ctx context.Context, rec domain.Record, meta domain.MutationMeta) (domain.Record, error) {
	meta = meta.Normalize()

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Model(&recordModel{}).
			Where("resource = ? AND id = ?", rec.Resource, rec.ID).
			Updates(map[string]any{
				"status":     rec.Status,
				"data":       string(rec.Data),
				"updated_at": rec.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return insertMutationEvents(tx, rec, meta)
	})
	if err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (s *RecordStore) DeleteWithEvents(ctx context.Context, resource, id string, meta domain.MutationMeta) (bool, error) {
	meta = meta.Normalize()
	deleted := false

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("resource = ? AND id = ?", resource, id).Delete(&recordModel{})
		if res.Error != nil {
			return fmt.Errorf("delete record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		rec := domain.Record{ID: id, Resource: resource}
		return insertMutationEvents(tx, rec, meta)
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *RecordStore) Get(ctx context.Context, resource, id string) (domain.Record, error) {
	var model recordModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("resource = ? AND id = ?", resource, id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, fmt.Errorf("get record: %w", err)
	}
	return toDomain(model), nil
}

func (s *RecordStore) List(ctx context.Context, res domain.Resource, q domain.ListQuery) ([]domain.Record, int64, error) {
	var models []recordModel
	var total int64

	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := applyFilter(tx.Model(&recordModel{}), res, q).Count(&total).Error; err != nil {
			return fmt.Errorf("count records: %w", err)
		}

		query := applyFilter(tx.Model(&recordModel{}), res, q)
		query = applyOrder(query, res, q)
		return query.Limit(q.Limit).Offset(q.Offset()).Find(&models).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	records := make([]domain.Record, 0, len(models))
	for _, model := range models {
		records = append(records, toDomain(model))
	}
	return records, total, nil
}

func (s *RecordStore) Stats(ctx context.Context, res domain.Resource, q domain.ListQuery) (domain.StatsOverview, error) {
	overview := domain.NewStatsOverview()

	type bucket struct {
		Key   string
		Count int64
	}

	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := applyFilter(tx.Model(&recordModel{}), res, q).Count(&overview.Total).Error; err != nil {
			return fmt.Errorf("count: %w", err)
		}

		var statuses []bucket
		err := applyFilter(tx.Model(&recordModel{}), res, q).
			Select("status AS key, COUNT(*) AS count").
			Group("status").
			Scan(&statuses).Error
		if err != nil {
			return fmt.Errorf("group by status: %w", err)
		}
		for _, b := range statuses {
			overview.ByStatus[b.Key] = b.Count
		}

		for _, field := range res.Stats.GroupBy {
			var buckets []bucket
			err := applyFilter(tx.Model(&recordModel{}), res, q).
				Select("COALESCE(CAST(json_extract(data, ?) AS TEXT), '') AS key, COUNT(*) AS count", jsonPath(field)).
				Group("key").
				Scan(&buckets).Error
			if err != nil {
				return fmt.Errorf("group by %s: %w", field, err)
			}
			counts := map[string]int64{}
			for _, b := range buckets {
				counts[b.Key] = b.Count
			}
			overview.ByField[field] = counts
		}

		if res.Stats.SumField != "" {
			query := applyFilter(tx.Model(&recordModel{}), res, q)
			if res.Stats.SumStatus != "" {
				query = query.Where("status = ?", res.Stats.SumStatus)
			}
			err := query.
				Select("COALESCE(SUM(CAST(json_extract(data, ?) AS REAL)), 0)", jsonPath(res.Stats.SumField)).
				Scan(&overview.Sum).Error
			if err != nil {
				return fmt.Errorf("sum %s: %w", res.Stats.SumField, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.StatsOverview{}, fmt.Errorf("stats: %w", err)
	}
	return overview, nil
}

func (s *RecordStore) FindByField(ctx context.Context, resource, field, value string) (domain.Record, error) {
	var model recordModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("resource = ?", resource).
			Where("CAST(json_extract(data, ?) AS TEXT) = ?", jsonPath(field), value).
			Order("created_at ASC").
			First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, fmt.Errorf("find record by %s: %w", field, err)
	}
	return toDomain(model), nil
}

func applyFilter(query *gorm.DB, res domain.Resource, q domain.ListQuery) *gorm.DB {
	query = query.Where("resource = ?", res.Name)
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.OwnerID != "" {
		query = query.Where("owner_id = ?", q.OwnerID)
	}
	for field, value := range q.Equals {
		query = query.Where("CAST(json_extract(data, ?) AS TEXT) = ?", jsonPath(field), value)
	}
	for field, value := range q.Matches {
		query = query.Where("instr(lower(CAST(json_extract(data, ?) AS TEXT)), lower(?)) > 0", jsonPath(field), value)
	}
	for field, bound := range q.NumMin {
		query = query.Where("CAST(json_extract(data, ?) AS REAL) >= ?", jsonPath(field), bound)
	}
	for field, bound := range q.NumMax {
		query = query.Where("CAST(json_extract(data, ?) AS REAL) <= ?", jsonPath(field), bound)
	}

	if q.DateFrom != nil || q.DateTo != nil {
		if res.DateField == "" {
			if q.DateFrom != nil {
				query = query.Where("created_at >= ?", *q.DateFrom)
			}
			if q.DateTo != nil {
				query = query.Where("created_at <= ?", *q.DateTo)
			}
		} else {
			// Date fields hold ISO-8601 strings, which order lexically.
			path := jsonPath(res.DateField)
			if q.DateFrom != nil {
				query = query.Where("CAST(json_extract(data, ?) AS TEXT) >= ?", path, q.DateFrom.Format("2006-01-02"))
			}
			if q.DateTo != nil {
				query = query.Where("CAST(json_extract(data, ?) AS TEXT) <= ?", path, q.DateTo.Format("2006-01-02")+"￿")
			}
		}
	}
	return query
}

func applyOrder(query *gorm.DB, res domain.Resource, q domain.ListQuery) *gorm.DB {
	if rule, ok := res.SortFor(q.Status); ok {
		dir := "DESC"
		if rule.Ascending {
			dir = "ASC"
		}
		if rule.Field == "" {
			return query.Order("created_at " + dir).Order("id " + dir)
		}
		// Sort fields come from the static catalog, never from the request.
		return query.
			Order("CAST(json_extract(data, '" + jsonPath(rule.Field) + "') AS TEXT) " + dir).
			Order("id ASC")
	}
	return query.Order("created_at DESC").Order("id DESC")
}

func insertMutationEvents(tx *gormsqlite.Tx, rec domain.Record, meta domain.MutationMeta) error {
	audit := auditModel{
		Resource: rec.Resource,
		RecordID: rec.ID,
		Action:   meta.Action,
		Actor:    meta.Actor,
		At:       meta.OccurredAt,
	}
	if err := tx.Create(&audit).Error; err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	if meta.Delivery != nil {
		model := toDeliveryModel(*meta.Delivery)
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
	}
	return nil
}

func jsonPath(field string) string {
	return "$." + field
}

func toModel(rec domain.Record) recordModel {
	return recordModel{
		ID:        rec.ID,
		Resource:  rec.Resource,
		OwnerID:   rec.OwnerID,
		Status:    rec.Status,
		Data:      string(rec.Data),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func toDomain(model recordModel) domain.Record {
	return domain.Record{
		ID:        model.ID,
		Resource:  model.Resource,
		OwnerID:   model.OwnerID,
		Status:    model.Status,
		Data:      []byte(model.Data),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
