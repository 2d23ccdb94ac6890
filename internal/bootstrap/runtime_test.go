package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microblogs/internal/config"
	"microblogs/internal/database"
	"microblogs/models"
)

func TestSeedIfEmpty(t *testing.T) {
	cfg := &config.Config{Env: "test", DBDriver: database.DriverSQLite, DBName: ":memory:"}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, database.ApplySchema(ctx, db, cfg))

	require.NoError(t, SeedIfEmpty(ctx, db))
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 99, users)

	require.NoError(t, SeedIfEmpty(ctx, db), "a populated database is left alone")
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 99, users)
}
