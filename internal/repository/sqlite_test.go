package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"microblogs/internal/config"
	"microblogs/internal/database"
	"microblogs/models"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{Env: "test", DBDriver: database.DriverSQLite, DBName: ":memory:"}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.ApplySchema(context.Background(), db, cfg))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repo UserRepository, handle string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     "@" + handle,
		FirstName:    "First",
		LastName:     "Last",
		Email:        handle + "@example.org",
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestSQLite_FeedIsNewestFirst(t *testing.T) {
	db := setupSQLite(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, users, "george")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"T1", "T2", "T3"} {
		p := &models.Post{AuthorID: author.ID, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, posts.Create(ctx, p))
		require.NotNil(t, p.Author, "created post is reloaded with its author")
	}

	feed, err := posts.ListFeed(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, []string{"T3", "T2", "T1"}, []string{feed[0].Text, feed[1].Text, feed[2].Text})
	assert.Equal(t, "@george", feed[0].Author.Username)
}

func TestSQLite_FeedTiesKeepInsertionOrder(t *testing.T) {
	db := setupSQLite(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, users, "george")
	same := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: author.ID, Text: text, CreatedAt: same}))
	}

	for i := 0; i < 3; i++ {
		feed, err := posts.ListFeed(ctx, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, []string{feed[0].Text, feed[1].Text, feed[2].Text})
	}
}

func TestSQLite_FeedPagination(t *testing.T) {
	db := setupSQLite(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, users, "george")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: author.ID, Text: fmt.Sprintf("p%d", i), CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	page, err := posts.ListFeed(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "p2", page[0].Text)
	assert.Equal(t, "p1", page[1].Text)

	total, err := posts.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
}

func TestSQLite_ListByAuthor(t *testing.T) {
	db := setupSQLite(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	george := createUser(t, users, "george")
	logan := createUser(t, users, "logan")
	require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: george.ID, Text: "mine"}))
	require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: logan.ID, Text: "theirs"}))

	list, err := posts.ListByAuthor(ctx, george.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].Text)

	n, err := posts.CountByAuthor(ctx, logan.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSQLite_CreateTranslatesUniqueViolations(t *testing.T) {
	db := setupSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	createUser(t, repo, "george")

	dupUsername := &models.User{Username: "@george", FirstName: "G", LastName: "D", Email: "other@example.org", PasswordHash: "h"}
	appErr := appError(t, repo.Create(ctx, dupUsername))
	assert.Equal(t, models.CodeConflict, appErr.Code)
	assert.Equal(t, []string{"username"}, appErr.Fields.Fields())

	dupEmail := &models.User{Username: "@other", FirstName: "G", LastName: "D", Email: "george@example.org", PasswordHash: "h"}
	appErr = appError(t, repo.Create(ctx, dupEmail))
	assert.Equal(t, []string{"email"}, appErr.Fields.Fields())

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSQLite_UpdateProfile(t *testing.T) {
	db := setupSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	george := createUser(t, repo, "george")
	createUser(t, repo, "logan")

	george.Username = "@georgie"
	george.Bio = ""
	require.NoError(t, repo.Update(ctx, george))

	reloaded, err := repo.GetByID(ctx, george.ID)
	require.NoError(t, err)
	assert.Equal(t, "@georgie", reloaded.Username)
	assert.Equal(t, "hash", reloaded.PasswordHash, "password is left alone")

	george.Username = "@logan"
	appErr := appError(t, repo.Update(ctx, george))
	assert.Equal(t, models.CodeConflict, appErr.Code)

	missing := &models.User{ID: 999, Username: "@ghost", Email: "ghost@example.org"}
	assert.Equal(t, models.CodeNotFound, appError(t, repo.Update(ctx, missing)).Code)
}

func TestSQLite_ExistsExcludesSelf(t *testing.T) {
	db := setupSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	george := createUser(t, repo, "george")

	exists, err := repo.ExistsByEmail(ctx, "george@example.org", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "george@example.org", george.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	byName, err := repo.GetByUsername(ctx, "@nobody")
	require.NoError(t, err)
	assert.Nil(t, byName)
}

func TestSQLite_DeleteRemovesAuthoredPosts(t *testing.T) {
	db := setupSQLite(t)
	users := NewUserRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	george := createUser(t, users, "george")
	logan := createUser(t, users, "logan")
	require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: george.ID, Text: "bye"}))
	require.NoError(t, posts.Create(ctx, &models.Post{AuthorID: logan.ID, Text: "stay"}))

	require.NoError(t, users.Delete(ctx, george.ID))

	feed, err := posts.ListFeed(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "stay", feed[0].Text)

	_, err = users.GetByID(ctx, george.ID)
	assert.Equal(t, models.CodeNotFound, appError(t, err).Code)
	assert.Equal(t, models.CodeNotFound, appError(t, users.Delete(ctx, george.ID)).Code)

	remaining, err := users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, remaining)
	left, err := users.GetByUsername(ctx, "@logan")
	require.NoError(t, err)
	require.NotNil(t, left)
}
