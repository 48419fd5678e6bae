package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/plexsource/internal/backend"
	"github.com/railzwaylabs/plexsource/internal/bootstrap"
	"github.com/railzwaylabs/plexsource/internal/clock"
	"github.com/railzwaylabs/plexsource/internal/config"
	"github.com/railzwaylabs/plexsource/internal/flow"
	"github.com/railzwaylabs/plexsource/internal/migration"
	"github.com/railzwaylabs/plexsource/internal/observability"
	"github.com/railzwaylabs/plexsource/internal/plex"
	"github.com/railzwaylabs/plexsource/internal/redis"
	"github.com/railzwaylabs/plexsource/internal/server"
	"github.com/railzwaylabs/plexsource/internal/session"
	"github.com/railzwaylabs/plexsource/internal/source"
	"github.com/railzwaylabs/plexsource/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "plexsource",
		Short:         "Configure Plex login sources for an identity backend",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a config file")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newFlowsCmd(opts),
		newSourceCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the form session API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			app := fx.New(
				coreModules(cfg, opts.configPath),
				session.Module,
				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the local database and seed default flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.IsLocal() {
				return fmt.Errorf("migrate requires backend.mode=%s", config.BackendModeLocal)
			}

			app := fx.New(
				config.Module(cfg, ""),
				observability.Module,
				db.Module,
				migration.Module,
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("migrate failed: %w", err)
			}
			return app.Stop(context.Background())
		},
	}
}

// coreModules wires the collaborators every command shares. Local mode
// keeps flows and sources in the database; api mode talks to the backend.
func coreModules(cfg config.Config, path string) fx.Option {
	opts := []fx.Option{
		config.Module(cfg, path),
		observability.Module,
		clock.Module,
		redis.Module,
		plex.Module,
	}
	if cfg.IsLocal() {
		opts = append(opts,
			fx.Provide(registerSnowflake),
			db.Module,
			bootstrap.Module,
			flow.LocalModule,
			source.LocalModule,
		)
	} else {
		opts = append(opts,
			backend.Module,
			flow.APIModule,
			source.APIModule,
		)
	}
	return fx.Options(opts...)
}

// runWith starts a short-lived app, populates targets and runs fn until it
// returns or the process is interrupted.
func runWith(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context) error, extra ...fx.Option) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	app := fx.New(append([]fx.Option{coreModules(cfg, "")}, extra...)...)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	return fn(ctx)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
