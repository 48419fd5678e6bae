package service

import (
	"context"
	"fmt"

	"github.com/railzwaylabs/plexsource/internal/plex/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type DiscoveryParams struct {
	fx.In

	Provider domain.Provider
	Log      *zap.Logger
}

type Discovery struct {
	provider domain.Provider
	log      *zap.Logger
}

func NewDiscovery(p DiscoveryParams) *Discovery {
	return &Discovery{
		provider: p.Provider,
		log:      p.Log.Named("plex.discovery"),
	}
}

// ListResources returns the media servers visible to credential. An empty
// credential is a no-op.
func (d *Discovery) ListResources(ctx context.Context, clientID, credential string) ([]domain.Resource, error) {
	if credential == "" {
		return nil, nil
	}

	resources, err := d.provider.Resources(ctx, clientID, credential)
	if err != nil {
		discoveriesTotal.WithLabelValues("failed").Inc()
		d.log.Warn("plex resource discovery failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrDiscoveryFailed, err)
	}

	servers := make([]domain.Resource, 0, len(resources))
	for _, r := range resources {
		if r.IsServer() {
			servers = append(servers, r)
		}
	}
	discoveriesTotal.WithLabelValues("succeeded").Inc()
	d.log.Debug("plex resources discovered", zap.Int("total", len(resources)), zap.Int("servers", len(servers)))
	return servers, nil
}
