// Package database handles database connections and schema management.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"microblogs/internal/config"
	"microblogs/internal/middleware"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB is the global database connection instance.
var DB *gorm.DB

var readDB *gorm.DB

// gormLogger sends GORM's output through the application logger so SQL
// errors carry the request context.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs failed statements, and statements slower than 200ms.
func NewGormLogger() logger.Interface {
	return &gormLogger{log: middleware.Logger, level: logger.Warn, slow: 200 * time.Millisecond}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *gormLogger) printf(ctx context.Context, at logger.LogLevel, lvl slog.Level, msg string, args []any) {
	if l.level >= at {
		l.log.Log(ctx, lvl, fmt.Sprintf(msg, args...))
	}
}

// Trace logs one line per statement at the most severe applicable level.
// gorm.ErrRecordNotFound is an ordinary miss, not a failure.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)

	var (
		lvl slog.Level
		msg string
	)
	switch {
	case failed && l.level >= logger.Error:
		lvl, msg = slog.LevelError, "sql failed"
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "sql slow"
	case l.level >= logger.Info:
		lvl, msg = slog.LevelInfo, "sql"
	default:
		return
	}

	stmt, rows := fc()
	attrs := []any{slog.String("sql", stmt), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed)}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log.Log(ctx, lvl, msg, attrs...)
}

func postgresDSN(host, port string, cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode,
	)
}

// sqliteDSN enables foreign keys so posts cascade with their author.
func sqliteDSN(name string) string {
	if name == "" {
		name = "microblogs.db"
	}
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + "_foreign_keys=on"
}

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.DBDriver) {
	case "", DriverPostgres:
		return postgres.Open(postgresDSN(cfg.DBHost, cfg.DBPort, cfg)), nil
	case DriverSQLite:
		return sqlite.Open(sqliteDSN(cfg.DBName)), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// Open opens a connection for cfg and configures its pool. It does not touch the schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:  NewGormLogger(),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// Connect opens the primary database, applies the schema policy and, when
// DB_READ_HOST is set, opens the read replica.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	middleware.Logger.Info("Database connected successfully", slog.String("driver", db.Dialector.Name()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := ApplySchema(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	DB = db

	if cfg.DBReadHost != "" && db.Dialector.Name() == DriverPostgres {
		replica, err := gorm.Open(postgres.Open(postgresDSN(cfg.DBReadHost, cfg.DBReadPort, cfg)), &gorm.Config{
			Logger: NewGormLogger(),
		})
		if err != nil {
			// Reads fall back to the primary.
			middleware.Logger.Warn("Read replica unavailable", slog.String("error", err.Error()))
		} else if err := configurePool(replica, cfg); err == nil {
			readDB = replica
			middleware.Logger.Info("Read replica connected", slog.String("host", cfg.DBReadHost))
		}
	}

	return DB, nil
}

// GetReadDB returns the read replica, or nil when none is configured.
func GetReadDB() *gorm.DB {
	return readDB
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}

	maxOpen := cfg.DBMaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.DBMaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := time.Duration(cfg.DBConnMaxLifetimeMinutes) * time.Minute
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}

	// An in-memory SQLite database lives and dies with its single connection.
	if db.Dialector.Name() == DriverSQLite && strings.Contains(cfg.DBName, ":memory:") {
		maxOpen, maxIdle = 1, 1
		lifetime = 0
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}

// Ping checks the primary connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the primary and replica pools.
func Close() error {
	var errs []error
	for _, db := range []*gorm.DB{DB, readDB} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	DB, readDB = nil, nil
	return errors.Join(errs...)
}
