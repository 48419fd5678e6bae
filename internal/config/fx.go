package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module supplies an already loaded Config and, when it came from a file,
// reports edits to that file. Settings are not hot-swapped; a changed file
// takes effect on the next start.
func Module(cfg Config, path string) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
		fx.Invoke(func(lc fx.Lifecycle, log *zap.Logger) {
			if strings.TrimSpace(path) == "" {
				return
			}
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					return Watch(path, func(next Config, event fsnotify.Event) {
						log.Warn("config file changed, restart to apply",
							zap.String("file", event.Name),
							zap.String("op", event.Op.String()),
							zap.String("backend_mode", next.Backend.Mode),
						)
					}, func(err error) {
						log.Error("config file reload failed", zap.Error(err))
					})
				},
			})
		}),
	)
}

// Watch re-reads the config file whenever it changes and hands the decoded
// result to onChange. Decoding failures go to onError.
func Watch(path string, onChange func(Config, fsnotify.Event), onError func(error)) error {
	v, err := newViper(path)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(event fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(next, event)
		}
	})
	v.WatchConfig()
	return nil
}
