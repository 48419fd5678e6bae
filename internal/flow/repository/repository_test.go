package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/plexsource/internal/flow/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Flow{}))
	return db
}

func TestListFiltersAndOrders(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, Upsert(ctx, db, []domain.Flow{
		{PK: "c", Slug: "third", Name: "Third", Designation: domain.DesignationAuthentication},
		{PK: "a", Slug: "first", Name: "First", Designation: domain.DesignationAuthentication},
		{PK: "b", Slug: "enroll", Name: "Enroll", Designation: domain.DesignationEnrollment},
	}))

	flows, err := Provide(db).List(ctx, domain.DesignationAuthentication)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "a", flows[0].PK)
	assert.Equal(t, "c", flows[1].PK)
}

func TestUpsertReplaces(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, Upsert(ctx, db, []domain.Flow{{PK: "a", Slug: "first", Name: "First", Designation: domain.DesignationEnrollment}}))
	require.NoError(t, Upsert(ctx, db, []domain.Flow{{PK: "a", Slug: "first", Name: "Renamed", Designation: domain.DesignationEnrollment}}))

	flows, err := Provide(db).List(ctx, domain.DesignationEnrollment)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "Renamed", flows[0].Name)
}
