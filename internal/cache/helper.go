package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a JSON cache over Redis. A Store with a nil client misses every
// lookup and drops every write.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Enabled reports whether a Redis client backs the store.
func (s *Store) Enabled() bool {
	return s != nil && s.rdb != nil
}

// GetJSON returns (true, nil) when key was found and decoded into dest.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// Aside serves key from Redis or calls fetch to fill dest and caches the
// result. Cache failures never fail the call; they only cost a fetch.
// It reports whether dest came from the cache.
func (s *Store) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) (bool, error) {
	if found, err := s.GetJSON(ctx, key, dest); err == nil && found {
		return true, nil
	}

	if err := fetch(); err != nil {
		return false, err
	}

	_ = s.SetJSON(ctx, key, dest, ttl)
	return false, nil
}

// Invalidate deletes keys, ignoring errors.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	s.rdb.Del(ctx, keys...)
}
