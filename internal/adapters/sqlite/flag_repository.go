package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/autoyard/garageapi/internal/adapters/sqlite/gormsqlite"
	"github.com/autoyard/garageapi/internal/core/domain"
)

type flagModel struct {
	Name      string    `gorm:"column:name;primaryKey"`
	Enabled   bool      `gorm:"column:enabled;not null"`
	Note      string    `gorm:"column:note;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (flagModel) TableName() string {
	return "feature_flags"
}

type FlagRepository struct {
	db *gormsqlite.DB
}

func NewFlagRepository(db *gormsqlite.DB) *FlagRepository {
	return &FlagRepository{db: db}
}

func (r *FlagRepository) Upsert(ctx context.Context, flag domain.Flag) (domain.Flag, error) {
	model := flagModel{
		Name:      flag.Name,
		Enabled:   flag.Enabled,
		Note:      flag.Note,
		UpdatedAt: time.Now().UTC(),
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "note", "updated_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return domain.Flag{}, fmt.Errorf("upsert flag: %w", err)
	}
	return toFlagDomain(model), nil
}

func (r *FlagRepository) Get(ctx context.Context, name string) (domain.Flag, error) {
	var model flagModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("name = ?", name).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Flag{}, domain.ErrNotFound
		}
		return domain.Flag{}, fmt.Errorf("get flag: %w", err)
	}
	return toFlagDomain(model), nil
}

func (r *FlagRepository) List(ctx context.Context) ([]domain.Flag, error) {
	var models []flagModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Order("name ASC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}

	flags := make([]domain.Flag, 0, len(models))
	for _, model := range models {
		flags = append(flags, toFlagDomain(model))
	}
	return flags, nil
}

func toFlagDomain(model flagModel) domain.Flag {
	return domain.Flag{
		Name:      model.Name,
		Enabled:   model.Enabled,
		Note:      model.Note,
		UpdatedAt: model.UpdatedAt,
	}
}
