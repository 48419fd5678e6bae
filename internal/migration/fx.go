package migration

import (
	"context"

	"github.com/railzwaylabs/plexsource/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates the database once the connection is up.
var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, conn *gorm.DB, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return Run(ctx, conn, cfg.Database.Driver, log.Named("migration"))
			},
		})
	}),
)
