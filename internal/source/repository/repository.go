package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	"github.com/railzwaylabs/plexsource/internal/source/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const msgTokenRequired = "This field is required."

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

// Repository stores sources in the local database.
type Repository struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func New(p Params) *Repository {
	return &Repository{db: p.DB, genID: p.GenID}
}

func Provide(p Params) domain.Gateway {
	return New(p)
}

func (r *Repository) Get(ctx context.Context, slug string) (*domain.Source, error) {
	m, err := r.find(ctx, r.db, slug)
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *Repository) Create(ctx context.Context, src domain.Source, token string) (*domain.Source, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.NewValidationError("plex_token", msgTokenRequired)
	}

	var out *domain.Source
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkFlows(tx, src); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&Model{}).Where("slug = ?", src.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrConflict
		}

		now := time.Now().UTC()
		m := &Model{ID: r.genID.Generate(), Slug: src.Slug, CreatedAt: now, UpdatedAt: now}
		m.apply(src)
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		out = m.toDomain()
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Update replaces every mutable field of the source keyed by slug. The slug
// itself never changes.
func (r *Repository) Update(ctx context.Context, slug string, src domain.Source, token string) (*domain.Source, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.NewValidationError("plex_token", msgTokenRequired)
	}

	var out *domain.Source
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := r.find(ctx, tx, slug)
		if err != nil {
			return err
		}
		if err := checkFlows(tx, src); err != nil {
			return err
		}

		m.apply(src)
		m.UpdatedAt = time.Now().UTC()
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		out = m.toDomain()
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *Repository) find(ctx context.Context, db *gorm.DB, slug string) (*Model, error) {
	var m Model
	err := db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// checkFlows verifies that referenced flows exist with the expected
// designation.
func checkFlows(tx *gorm.DB, src domain.Source) error {
	verr := &domain.ValidationError{}
	refs := []struct {
		field       string
		pk          string
		designation flowdomain.Designation
	}{
		{"authentication_flow", src.AuthenticationFlow, flowdomain.DesignationAuthentication},
		{"enrollment_flow", src.EnrollmentFlow, flowdomain.DesignationEnrollment},
	}
	for _, ref := range refs {
		if ref.pk == "" {
			continue
		}
		var count int64
		if err := tx.Model(&flowdomain.Flow{}).
			Where("pk = ? AND designation = ?", ref.pk, ref.designation).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			verr.Add(ref.field, "Invalid pk \""+ref.pk+"\" - object does not exist.")
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidationFailed),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrConflict
	default:
		return errors.Join(domain.ErrPersistenceFailed, err)
	}
}
