package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/autoyard/garageapi/internal/adapters/sqlite/gormsqlite"
	"github.com/autoyard/garageapi/internal/core/domain"
)

type auditModel struct {
	ID       int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Resource string    `gorm:"column:resource;not null"`
	RecordID string    `gorm:"column:record_id;not null"`
	Action   string    `gorm:"column:action;not null"`
	Actor    string    `gorm:"column:actor;not null"`
	At       time.Time `gorm:"column:at;not null"`
}

func (auditModel) TableName() string {
	return "audit_logs"
}

type AuditRepository struct {
	db *gormsqlite.DB
}

func NewAuditRepository(db *gormsqlite.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Log(ctx context.Context, event domain.AuditEvent) error {
	model := auditModel{
		Resource: event.Resource,
		RecordID: event.RecordID,
		Action:   event.Action,
		Actor:    event.Actor,
		At:       event.At,
	}
	if model.At.IsZero() {
		model.At = time.Now().UTC()
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	var rows []auditModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditModel{})
		if filter.Resource != "" {
			query = query.Where("resource = ?", filter.Resource)
		}
		if filter.RecordID != "" {
			query = query.Where("record_id = ?", filter.RecordID)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.AfterID > 0 {
			query = query.Where("id < ?", filter.AfterID)
		}
		return query.Order("id DESC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	result := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.AuditEvent{
			ID:       row.ID,
			Resource: row.Resource,
			RecordID: row.RecordID,
			Action:   row.Action,
			Actor:    row.Actor,
			At:       row.At,
		})
	}
	return result, nil
}
