package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/railzwaylabs/plexsource/internal/cache"
	"github.com/railzwaylabs/plexsource/internal/config"
	"github.com/railzwaylabs/plexsource/internal/flow/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Repo   domain.Repository
	Redis  *redis.Client `optional:"true"`
	Log    *zap.Logger
}

// Loader reads flow catalogs, ordered by primary key, through a shared
// cache.
type Loader struct {
	repo  domain.Repository
	cache *cache.Loader[[]domain.Flow]
	log   *zap.Logger
}

func New(p Params) *Loader {
	store := cache.New[[]domain.Flow](p.Redis, p.Config.Redis.KeyPrefix+"flows:")
	return &Loader{
		repo:  p.Repo,
		cache: cache.NewLoader(store, p.Config.Flows.CacheTTL),
		log:   p.Log.Named("flow.loader"),
	}
}

func (l *Loader) List(ctx context.Context, designation domain.Designation) ([]domain.Flow, error) {
	if !designation.Valid() {
		return nil, fmt.Errorf("%w: %w", domain.ErrReferenceLoadFailed, domain.ErrInvalidDesignation)
	}

	flows, err := l.cache.Get(ctx, string(designation), func(ctx context.Context) ([]domain.Flow, error) {
		flows, err := l.repo.List(ctx, designation)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(flows, func(i, j int) bool { return flows[i].PK < flows[j].PK })
		return flows, nil
	})
	if err != nil {
		l.log.Warn("flow catalog load failed", zap.String("designation", string(designation)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrReferenceLoadFailed, err)
	}
	return append([]domain.Flow(nil), flows...), nil
}

// Invalidate drops cached catalogs so the next List reads through.
func (l *Loader) Invalidate(ctx context.Context, designations ...domain.Designation) {
	if len(designations) == 0 {
		designations = domain.Designations
	}
	for _, d := range designations {
		if err := l.cache.Invalidate(ctx, string(d)); err != nil {
			l.log.Warn("flow cache invalidate failed", zap.String("designation", string(d)), zap.Error(err))
		}
	}
}
