package bootstrap

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/plexsource/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestSchemaGateActiveAfterMigration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, migration.Run(ctx, db, "sqlite", zap.NewNop()))

	gate, err := NewSchemaGate(db)
	require.NoError(t, err)
	assert.NoError(t, gate.MustBeActive(ctx))
}

func TestSchemaGateRejectsStaleVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, migration.Run(ctx, db, "sqlite", zap.NewNop()))
	require.NoError(t, db.Model(&migration.State{}).Where("id = ?", true).Update("schema_version", "1").Error)

	gate, err := NewSchemaGate(db)
	require.NoError(t, err)
	assert.ErrorIs(t, gate.MustBeActive(ctx), ErrSchemaVersionMismatch)
}

func TestSchemaGateMissingState(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&migration.State{}))

	gate, err := NewSchemaGate(db)
	require.NoError(t, err)
	assert.ErrorIs(t, gate.MustBeActive(context.Background()), migration.ErrStateNotFound)
}
