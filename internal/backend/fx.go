package backend

import (
	"github.com/railzwaylabs/plexsource/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("backend",
	fx.Provide(func(cfg config.Config, log *zap.Logger) (*Client, error) {
		return New(cfg.Backend, log)
	}),
)
