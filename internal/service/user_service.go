// Package service holds the sign-up, account and feed workflows.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"microblogs/internal/auth"
	"microblogs/internal/cache"
	"microblogs/internal/middleware"
	"microblogs/internal/observability"
	"microblogs/internal/repository"
	"microblogs/models"
	"microblogs/validation"
)

type UserService struct {
	userRepo repository.UserRepository
	hasher   *auth.Hasher
	cache    *cache.Store
}

func NewUserService(userRepo repository.UserRepository, hasher *auth.Hasher, store *cache.Store) *UserService {
	if hasher == nil {
		hasher = auth.NewHasher(0)
	}
	return &UserService{userRepo: userRepo, hasher: hasher, cache: store}
}

// SignUp validates in, checks uniqueness and creates exactly one user.
// Every failing field is reported at once; on failure nothing is written.
func (s *UserService) SignUp(ctx context.Context, in validation.SignUpInput) (*models.User, error) {
	ctx, span := observability.StartSpan(ctx, "UserService.SignUp")
	defer span.End()

	in.Normalize()
	errs := validation.ValidateSignUp(in)

	taken, err := s.takenFields(ctx, in.Username, in.Email, 0)
	if err != nil {
		observability.SignUps.WithLabelValues("error").Inc()
		span.SetError(err)
		return nil, err
	}
	errs = append(errs, taken...)

	if len(errs) > 0 {
		return nil, s.rejectSignUp(ctx, errs)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		observability.SignUps.WithLabelValues("error").Inc()
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Bio:          in.Bio,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
			return nil, s.rejectSignUp(ctx, appErr.Fields)
		}
		observability.SignUps.WithLabelValues("error").Inc()
		span.SetError(err)
		return nil, err
	}

	observability.SignUps.WithLabelValues("created").Inc()
	span.AddAttributes(attribute.Int("user.id", int(user.ID)))
	middleware.Logger.InfoContext(ctx, "user signed up",
		slog.Uint64("user_id", uint64(user.ID)),
		slog.String("username", user.Username),
	)
	return user, nil
}

func (s *UserService) rejectSignUp(ctx context.Context, errs models.ValidationErrors) error {
	outcome := "invalid"
	if errs.OnlyUniqueness() {
		outcome = "conflict"
	}
	observability.SignUps.WithLabelValues(outcome).Inc()
	observability.RecordValidationFailures("sign_up", errs.Fields())
	middleware.Logger.InfoContext(ctx, "sign-up rejected", slog.Any("fields", errs.Fields()))
	return models.NewFieldValidationError(errs)
}

// takenFields checks username and email against storage independently of
// their syntax. exceptID excludes the caller's own row.
func (s *UserService) takenFields(ctx context.Context, username, email string, exceptID uint) (models.ValidationErrors, error) {
	var errs models.ValidationErrors
	if username != "" {
		exists, err := s.userRepo.ExistsByUsername(ctx, username, exceptID)
		if err != nil {
			return nil, err
		}
		if exists {
			errs = append(errs, models.NewUniquenessError("username"))
		}
	}
	if email != "" {
		exists, err := s.userRepo.ExistsByEmail(ctx, email, exceptID)
		if err != nil {
			return nil, err
		}
		if exists {
			errs = append(errs, models.NewUniquenessError("email"))
		}
	}
	return errs, nil
}

// Authenticate returns the user owning username when password matches.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid username or password")

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalid
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, invalid
	}
	return user, nil
}

// GetUser serves profile reads through the user cache.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	_, err := s.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies in to the user's account. Uniqueness ignores the
// user's own row, so keeping the current username or email is allowed.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in validation.ProfileInput) (*models.User, error) {
	in.Normalize()
	errs := validation.ValidateProfile(in)

	taken, err := s.takenFields(ctx, in.Username, in.Email, userID)
	if err != nil {
		return nil, err
	}
	errs = append(errs, taken...)
	if len(errs) > 0 {
		observability.RecordValidationFailures("profile", errs.Fields())
		return nil, models.NewFieldValidationError(errs)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Username = in.Username
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Email = in.Email
	user.Bio = in.Bio

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.cache.InvalidateUser(ctx, userID)
	// Cached feed pages embed the old author view.
	if err := s.cache.InvalidateFeed(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to invalidate feed cache", slog.String("error", err.Error()))
	}
	return user, nil
}

// DeleteAccount removes the user and all of their posts.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, userID)
	if err := s.cache.InvalidateFeed(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to invalidate feed cache", slog.String("error", err.Error()))
	}
	middleware.Logger.InfoContext(ctx, "account deleted", slog.Uint64("user_id", uint64(userID)))
	return nil
}
