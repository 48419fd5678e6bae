package migration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	"gorm.io/gorm"
)

var defaultFlowNames = map[flowdomain.Designation]string{
	flowdomain.DesignationAuthentication: "Welcome to plexsource!",
	flowdomain.DesignationEnrollment:     "Welcome to plexsource! Please enter your details.",
}

// seedDefaultFlows inserts the default flow of each designation unless a
// flow with its slug already exists.
func seedDefaultFlows(ctx context.Context, db *gorm.DB) (int, error) {
	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, designation := range flowdomain.Designations {
			slug := flowdomain.DefaultSlug(designation)

			var count int64
			if err := tx.Model(&flowdomain.Flow{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
				return fmt.Errorf("lookup default flow %s: %w", slug, err)
			}
			if count > 0 {
				continue
			}

			flow := flowdomain.Flow{
				PK:          uuid.NewString(),
				Slug:        slug,
				Name:        defaultFlowNames[designation],
				Designation: designation,
			}
			if err := tx.Create(&flow).Error; err != nil {
				return fmt.Errorf("create default flow %s: %w", slug, err)
			}
			created++
		}
		return nil
	})
	return created, err
}
