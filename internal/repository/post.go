package repository

import (
	"context"

	"gorm.io/gorm"

	"microblogs/models"
)

// PostRepository defines persistence operations for posts.
// Every list is ordered by models.FeedOrder; a non-positive limit lists everything.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	ListFeed(ctx context.Context, limit, offset int) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error)
	Count(ctx context.Context) (int64, error)
	CountByAuthor(ctx context.Context, authorID uint) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts post and reloads it with its author so callers can render it.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Preload("Author").First(post, post.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListFeed reads the primary so an author sees their own post right after submitting it.
func (r *postRepository) ListFeed(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	q := r.db.WithContext(ctx).Preload("Author").Order(models.FeedOrder)
	err := paginate(q, limit, offset).Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	q := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("author_id = ?", authorID).
		Order(models.FeedOrder)
	err := paginate(q, limit, offset).Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
