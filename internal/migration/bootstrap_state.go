package migration

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	StatusInitializing = "initializing"
	StatusActive       = "active"
)

// State is the single system_bootstrap_state row written after a
// successful migration.
type State struct {
	ID            bool       `gorm:"column:id;primaryKey"`
	Status        string     `gorm:"column:status;size:32;not null"`
	SchemaVersion string     `gorm:"column:schema_version;size:32;not null"`
	Checksum      *string    `gorm:"column:checksum;size:64"`
	ActivatedAt   *time.Time `gorm:"column:activated_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (State) TableName() string { return "system_bootstrap_state" }

func activate(ctx context.Context, db *gorm.DB, v Version, now time.Time) error {
	checksum := v.Checksum
	state := State{
		ID:            true,
		Status:        StatusActive,
		SchemaVersion: v.String(),
		Checksum:      &checksum,
		ActivatedAt:   &now,
		CreatedAt:     now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "schema_version", "checksum", "activated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("activate bootstrap state: %w", err)
	}
	return nil
}

// LoadState reads the bootstrap row.
func LoadState(ctx context.Context, db *gorm.DB) (*State, error) {
	var state State
	res := db.WithContext(ctx).Where("id = ?", true).Limit(1).Find(&state)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStateNotFound
	}
	return &state, nil
}
