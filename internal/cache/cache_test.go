package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	IDs []uint `json:"ids"`
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb)
}

func TestStore_Aside(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dest *page) func() error {
		return func() error {
			calls++
			dest.IDs = []uint{3, 2, 1}
			return nil
		}
	}

	var first page
	hit, err := store.Aside(ctx, "k", &first, time.Minute, fetch(&first))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists("k"))

	var second page
	hit, err = store.Aside(ctx, "k", &second, time.Minute, fetch(&second))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls, "second read is served from redis")
	assert.Equal(t, []uint{3, 2, 1}, second.IDs)

	mr.FastForward(2 * time.Minute)
	var third page
	hit, err = store.Aside(ctx, "k", &third, time.Minute, fetch(&third))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls, "expired entries are refetched")
}

func TestStore_AsideFetchError(t *testing.T) {
	mr, store := newTestStore(t)
	var dest page
	_, err := store.Aside(context.Background(), "k", &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("k"), "failures are not cached")
}

func TestStore_AsideSurvivesCorruptEntry(t *testing.T) {
	mr, store := newTestStore(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var dest page
	hit, err := store.Aside(context.Background(), "k", &dest, time.Minute, func() error {
		dest.IDs = []uint{1}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []uint{1}, dest.IDs)
}

func TestStore_FeedVersioning(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	before := store.FeedPageKey(ctx, 50, 0)
	assert.Equal(t, "feed:v0:page:50:0", before)
	authorBefore := store.AuthorPageKey(ctx, 7, 50, 0)

	require.NoError(t, store.InvalidateFeed(ctx))

	assert.Equal(t, "feed:v1:page:50:0", store.FeedPageKey(ctx, 50, 0))
	assert.NotEqual(t, authorBefore, store.AuthorPageKey(ctx, 7, 50, 0))
}

func TestStore_InvalidateUser(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetJSON(ctx, UserKey(5), page{IDs: []uint{5}}, UserTTL))
	assert.True(t, mr.Exists("user:5"))

	store.InvalidateUser(ctx, 5)
	assert.False(t, mr.Exists("user:5"))
}

func TestStore_NilClientIsPassThrough(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	assert.False(t, store.Enabled())

	calls := 0
	var dest page
	for i := 0; i < 2; i++ {
		hit, err := store.Aside(ctx, "k", &dest, time.Minute, func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)
	assert.NoError(t, store.InvalidateFeed(ctx))
	assert.Equal(t, "feed:v0:page:10:0", store.FeedPageKey(ctx, 10, 0))
}

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, err = NewClient("redis://%%bad")
	assert.Error(t, err)
}
