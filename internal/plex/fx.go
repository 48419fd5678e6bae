package plex

import (
	"github.com/railzwaylabs/plexsource/internal/clock"
	"github.com/railzwaylabs/plexsource/internal/config"
	"github.com/railzwaylabs/plexsource/internal/plex/client"
	"github.com/railzwaylabs/plexsource/internal/plex/domain"
	"github.com/railzwaylabs/plexsource/internal/plex/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plex",
	fx.Provide(func(cfg config.Config, clk clock.Clock) domain.Provider {
		return client.New(cfg.Plex, client.WithClock(clk))
	}),
	fx.Provide(service.NewAuthorizer),
	fx.Provide(service.NewDiscovery),
)
