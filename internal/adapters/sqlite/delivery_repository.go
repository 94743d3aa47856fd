package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/autoyard/garageapi/internal/adapters/sqlite/gormsqlite"
	"github.com/autoyard/garageapi/internal/core/domain"
)

type deliveryModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Resource      string     `gorm:"column:resource;not null"`
	RecordID      string     `gorm:"column:record_id;not null"`
	Event         string     `gorm:"column:event;not null"`
	Recipient     string     `gorm:"column:recipient;not null"`
	Subject       string     `gorm:"column:subject;not null"`
	Body          string     `gorm:"column:body;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	SentAt        *time.Time `gorm:"column:sent_at"`
}

func (deliveryModel) TableName() string {
	return "deliveries"
}

// DeliveryRepository is the durable notification queue behind the dispatcher.
type DeliveryRepository struct {
	db *gormsqlite.DB
}

func NewDeliveryRepository(db *gormsqlite.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) FetchPending(ctx context.Context, limit int) ([]domain.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []deliveryModel
	now := time.Now().UTC()
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status IN ? AND next_attempt_at <= ?", []string{domain.DeliveryPending, domain.DeliveryFailed}, now).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending deliveries: %w", err)
	}

	result := make([]domain.Delivery, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDeliveryDomain(row))
	}
	return result, nil
}

func (r *DeliveryRepository) MarkSent(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&deliveryModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": domain.DeliverySent, "sent_at": &now, "last_error": ""}).Error
	})
	if err != nil {
		return fmt.Errorf("mark delivery sent: %w", err)
	}
	return nil
}

func (r *DeliveryRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("parse next attempt: %w", err)
	}
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&deliveryModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": domain.DeliveryFailed, "attempts": attempts, "next_attempt_at": parsed, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	return nil
}

func (r *DeliveryRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&deliveryModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": domain.DeliveryDead, "attempts": attempts, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark delivery dead: %w", err)
	}
	return nil
}

func toDeliveryModel(d domain.Delivery) deliveryModel {
	return deliveryModel{
		EventID:       d.EventID,
		Resource:      d.Resource,
		RecordID:      d.RecordID,
		Event:         d.Event,
		Recipient:     d.Recipient,
		Subject:       d.Subject,
		Body:          d.Body,
		Status:        d.Status,
		Attempts:      d.Attempts,
		NextAttemptAt: d.NextAttemptAt,
		LastError:     d.LastError,
		CreatedAt:     d.CreatedAt,
		SentAt:        d.SentAt,
	}
}

func toDeliveryDomain(model deliveryModel) domain.Delivery {
	return domain.Delivery{
		ID:            model.ID,
		EventID:       model.EventID,
		Resource:      model.Resource,
		RecordID:      model.RecordID,
		Event:         model.Event,
		Recipient:     model.Recipient,
		Subject:       model.Subject,
		Body:          model.Body,
		Status:        model.Status,
		Attempts:      model.Attempts,
		NextAttemptAt: model.NextAttemptAt,
		LastError:     model.LastError,
		CreatedAt:     model.CreatedAt,
		SentAt:        model.SentAt,
	}
}
