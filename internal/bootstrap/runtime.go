// Package bootstrap wires the process-wide database and Redis connections.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"microblogs/internal/cache"
	"microblogs/internal/config"
	"microblogs/internal/database"
	"microblogs/internal/middleware"
	"microblogs/internal/repository"
	"microblogs/internal/seed"
)

// InitRuntime connects to the database and Redis. The Redis client is nil
// when Redis is unreachable. An empty database is seeded when
// cfg.SeedOnStart is set.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if cfg.SeedOnStart {
		if err := SeedIfEmpty(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// SeedIfEmpty runs the default seeder when no user exists yet.
func SeedIfEmpty(ctx context.Context, db *gorm.DB) error {
	users, err := repository.NewUserRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	if users > 0 {
		middleware.Logger.InfoContext(ctx, "database already populated, skipping seed", slog.Int64("users", users))
		return nil
	}
	_, err = seed.NewSeeder(db, seed.Options{PostsPerUser: 3}).Run(ctx)
	return err
}
