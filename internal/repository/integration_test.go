//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"microblogs/internal/config"
	"microblogs/internal/database"
	"microblogs/models"
)

// setupPostgres starts a throwaway Postgres and applies the SQL migrations to it.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("microblogs_test"),
		postgres.WithUsername("microblogs"),
		postgres.WithPassword("microblogs"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.Config{
		Env:          "test",
		DBDriver:     database.DriverPostgres,
		DBHost:       host,
		DBPort:       port.Port(),
		DBUser:       "microblogs",
		DBPassword:   "microblogs",
		DBName:       "microblogs_test",
		DBSSLMode:    "disable",
		DBSchemaMode: database.SchemaModeSQL,
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.ApplySchema(ctx, db, cfg))
	return db
}

func TestPostgres_UniqueRaceAndCascade(t *testing.T) {
	db := setupPostgres(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	george := &models.User{Username: "@george", FirstName: "George", LastName: "Ducks", Email: "george@lemonade.org", PasswordHash: "h"}
	require.NoError(t, users.Create(ctx, george))

	clash := &models.User{Username: "@george", FirstName: "G", LastName: "D", Email: "other@lemonade.org", PasswordHash: "h"}
	appErr := appError(t, users.Create(ctx, clash))
	assert.Equal(t, models.CodeConflict, appErr.Code)
	assert.True(t, appErr.Fields.Has("username"))

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: george.ID, Text: "old", CreatedAt: base}))
	require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: george.ID, Text: "new", CreatedAt: base.Add(time.Second)}))

	feed, err := posts.ListFeed(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "new", feed[0].Text)

	// The foreign key alone must remove posts when a user row goes away.
	require.NoError(t, db.Exec("DELETE FROM users WHERE id = ?", george.ID).Error)
	n, err := posts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
