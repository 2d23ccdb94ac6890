package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"microblogs/internal/cache"
	"microblogs/internal/middleware"
	"microblogs/internal/observability"
	"microblogs/internal/repository"
	"microblogs/models"
	"microblogs/validation"
)

// PostPublisher fans a freshly created post out to live feed listeners.
type PostPublisher interface {
	PublishPost(ctx context.Context, post models.FeedPost) error
}

type FeedService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	cache     *cache.Store
	cacheTTL  time.Duration
	publisher PostPublisher
	now       func() time.Time
}

// NewFeedService wires the feed workflow. A zero cacheTTL disables page
// caching and a nil publisher disables the live feed.
func NewFeedService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	store *cache.Store,
	cacheTTL time.Duration,
	publisher PostPublisher,
) *FeedService {
	return &FeedService{
		postRepo:  postRepo,
		userRepo:  userRepo,
		cache:     store,
		cacheTTL:  cacheTTL,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListFeed returns posts newest first with their authors. A non-positive
// limit returns every post.
func (s *FeedService) ListFeed(ctx context.Context, limit, offset int) ([]models.FeedPost, error) {
	fetch := func() ([]models.FeedPost, error) {
		posts, err := s.postRepo.ListFeed(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		return toFeedPosts(posts), nil
	}
	if !s.cacheable(limit) {
		return fetch()
	}
	return s.cachedPage(ctx, s.cache.FeedPageKey(ctx, limit, offset), fetch)
}

// ListByAuthor returns one user's posts in feed order.
func (s *FeedService) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.FeedPost, error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	fetch := func() ([]models.FeedPost, error) {
		posts, err := s.postRepo.ListByAuthor(ctx, authorID, limit, offset)
		if err != nil {
			return nil, err
		}
		return toFeedPosts(posts), nil
	}
	if !s.cacheable(limit) {
		return fetch()
	}
	return s.cachedPage(ctx, s.cache.AuthorPageKey(ctx, authorID, limit, offset), fetch)
}

// CountFeed is the number of posts in the whole feed.
func (s *FeedService) CountFeed(ctx context.Context) (int64, error) {
	return s.postRepo.Count(ctx)
}

// CountByAuthor is the number of posts by authorID.
func (s *FeedService) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	return s.postRepo.CountByAuthor(ctx, authorID)
}

func (s *FeedService) cacheable(limit int) bool {
	return s.cacheTTL > 0 && limit > 0 && s.cache.Enabled()
}

func (s *FeedService) cachedPage(ctx context.Context, key string, fetch func() ([]models.FeedPost, error)) ([]models.FeedPost, error) {
	var page []models.FeedPost
	hit, err := s.cache.Aside(ctx, key, &page, s.cacheTTL, func() error {
		var err error
		page, err = fetch()
		return err
	})
	if err != nil {
		return nil, err
	}
	if hit {
		observability.FeedCacheLookups.WithLabelValues("hit").Inc()
	} else {
		observability.FeedCacheLookups.WithLabelValues("miss").Inc()
	}
	if page == nil {
		page = []models.FeedPost{}
	}
	return page, nil
}

// SubmitPost creates a post by authorID. The author must exist; the feed
// cache is invalidated before it returns so the author sees their post.
func (s *FeedService) SubmitPost(ctx context.Context, authorID uint, text string) (*models.FeedPost, error) {
	ctx, span := observability.StartSpan(ctx, "FeedService.SubmitPost",
		attribute.Int("author.id", int(authorID)))
	defer span.End()

	if authorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, models.NewUnauthorizedError("Authentication required")
		}
		span.SetError(err)
		return nil, err
	}

	in := validation.PostInput{Text: text}
	in.Normalize()
	if errs := validation.ValidatePost(in); len(errs) > 0 {
		observability.RecordValidationFailures("post", errs.Fields())
		return nil, models.NewFieldValidationError(errs)
	}

	// Postgres keeps microseconds; the returned post must match what the feed reads back.
	post := &models.Post{AuthorID: authorID, Text: in.Text, CreatedAt: s.now().Truncate(time.Microsecond)}
	if err := s.postRepo.Create(ctx, post); err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := s.cache.InvalidateFeed(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to invalidate feed cache", slog.String("error", err.Error()))
	}
	observability.PostsCreated.Inc()
	middleware.Logger.InfoContext(ctx, "post created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.Uint64("author_id", uint64(authorID)),
	)

	out := post.ToFeedPost()
	if s.publisher != nil {
		if err := s.publisher.PublishPost(ctx, out); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish post", slog.String("error", err.Error()))
		}
	}
	return &out, nil
}

func toFeedPosts(posts []models.Post) []models.FeedPost {
	out := make([]models.FeedPost, 0, len(posts))
	for i := range posts {
		out = append(out, posts[i].ToFeedPost())
	}
	return out
}
