package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	sourcerepository "github.com/railzwaylabs/plexsource/internal/source/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrLocked        = errors.New("migration_locked")
	ErrDirty         = errors.New("migration_dirty")
	ErrStateNotFound = errors.New("bootstrap_state_not_found")
)

// Run brings the schema to the embedded version, seeds the default flows and
// activates the bootstrap state. Postgres uses the versioned SQL migrations;
// other drivers are migrated from the gorm models.
func Run(ctx context.Context, db *gorm.DB, driver string, log *zap.Logger) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	version, err := Current()
	if err != nil {
		return err
	}

	switch driver {
	case "", "postgres", "postgresql":
		err = migratePostgres(ctx, db, version)
	default:
		err = db.WithContext(ctx).AutoMigrate(&flowdomain.Flow{}, &sourcerepository.Model{}, &State{})
	}
	if err != nil {
		return err
	}

	created, err := seedDefaultFlows(ctx, db)
	if err != nil {
		return err
	}
	if err := activate(ctx, db, version, time.Now().UTC()); err != nil {
		return err
	}

	log.Info("schema migrated",
		zap.String("driver", driver),
		zap.String("version", version.String()),
		zap.Int("seeded_flows", created),
	)
	return nil
}

func migratePostgres(ctx context.Context, db *gorm.DB, version Version) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	unlock, err := acquireAdvisoryLock(ctx, sqlDB)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock(context.Background())
	}()

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	current, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if current != version.Number {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, version.Number)
	}
	return nil
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("%w: version %d", ErrDirty, version)
	}
	return version, nil
}
