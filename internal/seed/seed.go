package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	flowrepository "github.com/railzwaylabs/plexsource/internal/flow/repository"
	"gorm.io/gorm"
)

var ErrInvalidFlowSpec = errors.New("invalid_flow_spec")

// FlowSpec describes a flow to seed. An empty slug is derived from the name.
type FlowSpec struct {
	Name        string
	Slug        string
	Designation flowdomain.Designation
}

// ParseFlowSpec reads "designation:name" or "designation:name:slug".
func ParseFlowSpec(raw string) (FlowSpec, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return FlowSpec{}, fmt.Errorf("%w: %q", ErrInvalidFlowSpec, raw)
	}
	spec := FlowSpec{
		Designation: flowdomain.Designation(strings.TrimSpace(parts[0])),
		Name:        strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		spec.Slug = strings.TrimSpace(parts[2])
	}
	if !spec.Designation.Valid() || spec.Name == "" {
		return FlowSpec{}, fmt.Errorf("%w: %q", ErrInvalidFlowSpec, raw)
	}
	return spec, nil
}

// Flows upserts the given flows keyed by slug. Existing flows keep their PK.
func Flows(ctx context.Context, db *gorm.DB, specs []FlowSpec) ([]flowdomain.Flow, error) {
	if db == nil {
		return nil, errors.New("seed database handle is required")
	}

	flows := make([]flowdomain.Flow, 0, len(specs))
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, spec := range specs {
			s := spec.Slug
			if s == "" {
				s = slug.Make(spec.Name)
			}
			if !slug.IsSlug(s) {
				return fmt.Errorf("%w: slug %q", ErrInvalidFlowSpec, s)
			}

			flow := flowdomain.Flow{Slug: s, Name: spec.Name, Designation: spec.Designation}
			var existing flowdomain.Flow
			res := tx.Where("slug = ?", s).Limit(1).Find(&existing)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				flow.PK = existing.PK
			} else {
				flow.PK = uuid.NewString()
			}
			flows = append(flows, flow)
		}
		return flowrepository.Upsert(ctx, tx, flows)
	})
	if err != nil {
		return nil, err
	}
	return flows, nil
}
