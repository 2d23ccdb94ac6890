package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microblogs/models"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn          func(context.Context, uint) (*models.User, error)
	getByUsernameFn    func(context.Context, string) (*models.User, error)
	existsByUsernameFn func(context.Context, string, uint) (bool, error)
	existsByEmailFn    func(context.Context, string, uint) (bool, error)
	createFn           func(context.Context, *models.User) error
	updateFn           func(context.Context, *models.User) error
	deleteFn           func(context.Context, uint) error
	countFn            func(context.Context) (int64, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) ExistsByUsername(ctx context.Context, username string, exceptID uint) (bool, error) {
	return s.existsByUsernameFn(ctx, username, exceptID)
}
func (s *userRepoStub) ExistsByEmail(ctx context.Context, email string, exceptID uint) (bool, error) {
	return s.existsByEmailFn(ctx, email, exceptID)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "@george"}, nil
		},
		getByUsernameFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		existsByUsernameFn: func(_ context.Context, _ string, _ uint) (bool, error) { return false, nil },
		existsByEmailFn:    func(_ context.Context, _ string, _ uint) (bool, error) { return false, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn: func(_ context.Context, _ *models.User) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
		countFn:  func(_ context.Context) (int64, error) { return 0, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	listFeedFn      func(context.Context, int, int) ([]models.Post, error)
	listByAuthorFn  func(context.Context, uint, int, int) ([]models.Post, error)
	countFn         func(context.Context) (int64, error)
	countByAuthorFn func(context.Context, uint) (int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) ListFeed(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.listFeedFn(ctx, limit, offset)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error) {
	return s.listByAuthorFn(ctx, authorID, limit, offset)
}
func (s *postRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}
func (s *postRepoStub) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	return s.countByAuthorFn(ctx, authorID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		listFeedFn:      func(_ context.Context, _, _ int) ([]models.Post, error) { return nil, nil },
		listByAuthorFn:  func(_ context.Context, _ uint, _, _ int) ([]models.Post, error) { return nil, nil },
		countFn:         func(_ context.Context) (int64, error) { return 0, nil },
		countByAuthorFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

type publisherStub struct {
	published []models.FeedPost
	err       error
}

func (p *publisherStub) PublishPost(_ context.Context, post models.FeedPost) error {
	p.published = append(p.published, post)
	return p.err
}

func requireAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) *models.AppError {
	t.Helper()
	return requireAppError(t, err, models.CodeValidation)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	requireAppError(t, err, models.CodeUnauthorized)
}
