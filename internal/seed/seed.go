// Package seed fills a development database with synthetic accounts and
// posts. Seeded users are written directly and skip the sign-up rules, so
// their passwords are deliberately weak.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"microblogs/internal/auth"
	"microblogs/internal/middleware"
	"microblogs/models"
	"microblogs/validation"
)

const (
	DefaultUsers = 99

	minPasswordLength = 1
	maxPasswordLength = 9
	passwordChars     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// maxPostAgeDays bounds how far back seeded posts are dated.
	maxPostAgeDays = 30
)

// Options configure one seeding run.
type Options struct {
	Users        int
	PostsPerUser int
	Clean        bool
	// DryRun builds everything in memory and writes nothing.
	DryRun bool
	// RandSeed makes a run reproducible; zero seeds from the clock.
	RandSeed int64
}

// Result reports what a run created.
type Result struct {
	Users []models.User
	Posts int
	// Passwords maps each seeded username to its plaintext password.
	Passwords map[string]string
}

// Seeder builds synthetic users and posts.
type Seeder struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	hasher *auth.Hasher
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.Users <= 0 {
		opts.Users = DefaultUsers
	}
	if opts.PostsPerUser < 0 {
		opts.PostsPerUser = 0
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		hasher: auth.NewHasher(bcrypt.MinCost),
		nextID: 1000,
	}
}

// Run clears the tables if asked, then creates users and their posts.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	log := middleware.Logger.With(slog.Bool("dry_run", s.opts.DryRun))
	log.InfoContext(ctx, "seeding started",
		slog.Int("users", s.opts.Users),
		slog.Int("posts_per_user", s.opts.PostsPerUser),
		slog.Bool("clean", s.opts.Clean),
	)

	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	res := &Result{Passwords: make(map[string]string, s.opts.Users)}
	users, err := s.SeedUsers(ctx, res.Passwords)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	res.Users = users

	posts, err := s.SeedPosts(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	res.Posts = posts

	log.InfoContext(ctx, "seeding completed", slog.Int("users", len(users)), slog.Int("posts", posts))
	return res, nil
}

// ClearAll removes every post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		middleware.Logger.InfoContext(ctx, "dry run: skipping cleanup")
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return all.Delete(&models.User{}).Error
	})
}

// SeedUsers creates @user1..@userN. Generated passwords are recorded in
// passwords when it is non-nil.
func (s *Seeder) SeedUsers(ctx context.Context, passwords map[string]string) ([]models.User, error) {
	users := make([]models.User, 0, s.opts.Users)
	for i := 1; i <= s.opts.Users; i++ {
		password := s.RandomPassword()
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, err
		}

		first, last := s.faker.FirstName(), s.faker.LastName()
		user := models.User{
			Username:     fmt.Sprintf("@user%d", i),
			FirstName:    truncate(first, validation.MaxNameLength),
			LastName:     truncate(last, validation.MaxNameLength),
			Email:        s.email(first, last, i),
			Bio:          truncate(s.faker.Paragraph(1, 3, 12, " "), validation.MaxBioLength),
			PasswordHash: hash,
		}
		if passwords != nil {
			passwords[user.Username] = password
		}
		users = append(users, user)
	}

	if s.opts.DryRun {
		for i := range users {
			users[i].ID = s.syntheticID()
		}
		return users, nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SeedPosts gives each user PostsPerUser posts dated within the last month.
func (s *Seeder) SeedPosts(ctx context.Context, users []models.User) (int, error) {
	if s.opts.PostsPerUser == 0 || len(users) == 0 {
		return 0, nil
	}

	now := time.Now()
	posts := make([]models.Post, 0, len(users)*s.opts.PostsPerUser)
	for _, u := range users {
		for j := 0; j < s.opts.PostsPerUser; j++ {
			age := time.Duration(s.faker.IntRange(0, maxPostAgeDays*24*60)) * time.Minute
			posts = append(posts, models.Post{
				AuthorID:  u.ID,
				Text:      truncate(s.faker.Sentence(s.faker.IntRange(3, 20)), validation.MaxPostLength),
				CreatedAt: now.Add(-age),
			})
		}
	}

	if s.opts.DryRun {
		return len(posts), nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&posts, 200).Error; err != nil {
		return 0, err
	}
	return len(posts), nil
}

// RandomPassword returns 1 to 9 ASCII letters and digits.
func (s *Seeder) RandomPassword() string {
	n := s.faker.IntRange(minPasswordLength, maxPasswordLength)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(passwordChars[s.faker.IntRange(0, len(passwordChars)-1)])
	}
	return b.String()
}

// email derives a unique address; the index suffix avoids collisions between
// generated names.
func (s *Seeder) email(first, last string, i int) string {
	local := strings.ToLower(alnum(first) + "." + alnum(last))
	return fmt.Sprintf("%s%d@%s", local, i, strings.ToLower(s.faker.DomainName()))
}

func (s *Seeder) syntheticID() uint {
	s.nextID++
	return s.nextID
}

func alnum(v string) string {
	return strings.Map(func(r rune) rune {
		if r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, v)
}

func truncate(v string, max int) string {
	r := []rune(v)
	if len(r) <= max {
		return v
	}
	return strings.TrimSpace(string(r[:max]))
}
