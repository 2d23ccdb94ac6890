package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix    = "user:%d"
	FeedVersionKey   = "feed:version"
	FeedPagePrefix   = "feed:v%d:page:%d:%d"
	AuthorPagePrefix = "user:%d:posts:v%d:%d:%d"
)

const (
	UserTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// feedVersion is bumped on every post write. Page keys embed it, so a bump
// orphans every cached page at once and they age out via TTL.
func (s *Store) feedVersion(ctx context.Context) int64 {
	if !s.Enabled() {
		return 0
	}
	v, err := s.rdb.Get(ctx, FeedVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

// FeedPageKey is the key for one page of the global feed at the current version.
func (s *Store) FeedPageKey(ctx context.Context, limit, offset int) string {
	return fmt.Sprintf(FeedPagePrefix, s.feedVersion(ctx), limit, offset)
}

// AuthorPageKey is the key for one page of a user's posts at the current version.
func (s *Store) AuthorPageKey(ctx context.Context, authorID uint, limit, offset int) string {
	return fmt.Sprintf(AuthorPagePrefix, authorID, s.feedVersion(ctx), limit, offset)
}

// InvalidateFeed makes every cached feed page stale.
func (s *Store) InvalidateFeed(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Incr(ctx, FeedVersionKey).Err()
}

func (s *Store) InvalidateUser(ctx context.Context, userID uint) {
	s.Invalidate(ctx, UserKey(userID))
}
