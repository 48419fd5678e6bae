package repository

import (
	"context"

	"github.com/railzwaylabs/plexsource/internal/flow/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) List(ctx context.Context, designation domain.Designation) ([]domain.Flow, error) {
	var flows []domain.Flow
	err := r.db.WithContext(ctx).
		Where("designation = ?", designation).
		Order("pk ASC").
		Find(&flows).Error
	if err != nil {
		return nil, err
	}
	return flows, nil
}

// Upsert inserts or replaces flows by primary key.
func Upsert(ctx context.Context, db *gorm.DB, flows []domain.Flow) error {
	if len(flows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Save(&flows).Error
}
