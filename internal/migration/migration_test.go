package migration

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
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

func TestCurrentVersion(t *testing.T) {
	v, err := Current()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v.Number)
	assert.Len(t, v.Checksum, 64)

	again, err := Current()
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestParseNumber(t *testing.T) {
	n, ok := parseNumber("000012_add_things.up.sql")
	assert.True(t, ok)
	assert.Equal(t, uint(12), n)

	_, ok = parseNumber("add_things.up.sql")
	assert.False(t, ok)
}

func TestRunOnSQLite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, db, "sqlite", zap.NewNop()))
	require.NoError(t, Run(ctx, db, "sqlite", zap.NewNop()))

	var flows []flowdomain.Flow
	require.NoError(t, db.Order("slug").Find(&flows).Error)
	require.Len(t, flows, 2)
	assert.Equal(t, flowdomain.DefaultSlug(flowdomain.DesignationAuthentication), flows[0].Slug)
	assert.Equal(t, flowdomain.DesignationEnrollment, flows[1].Designation)

	state, err := LoadState(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, state.Status)
	assert.Equal(t, "3", state.SchemaVersion)
	require.NotNil(t, state.Checksum)
}

func TestLoadStateMissing(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&State{}))

	_, err := LoadState(context.Background(), db)
	assert.ErrorIs(t, err, ErrStateNotFound)
}
