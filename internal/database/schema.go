package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gorm.io/gorm"

	"microblogs/internal/config"
	"microblogs/internal/middleware"
	"microblogs/models"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid" // SQL migrations, then AutoMigrate outside production
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do for a config.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// PersistentModels lists the GORM models AutoMigrate manages.
func PersistentModels() []any {
	return []any{&models.User{}, &models.Post{}}
}

// schemaPlan is the resolved DB_SCHEMA_MODE for one database.
type schemaPlan struct {
	mode string
	sql  bool
	auto bool
}

var prodLikeEnvs = []string{"production", "prod", "staging", "stage"}

func planSchema(cfg *config.Config, dialect string) (schemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	switch {
	case dialect == DriverSQLite:
		// Embedded migrations are PostgreSQL DDL.
		mode = SchemaModeAuto
	case mode == "":
		mode = SchemaModeHybrid
	}
	prodLike := slices.Contains(prodLikeEnvs, strings.ToLower(strings.TrimSpace(cfg.Env)))

	plan := schemaPlan{mode: mode}
	switch mode {
	case SchemaModeSQL:
		plan.sql = true
	case SchemaModeHybrid:
		plan.sql, plan.auto = true, !prodLike
	case SchemaModeAuto:
		if prodLike {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q", cfg.Env)
		}
		plan.auto = true
	default:
		return plan, fmt.Errorf("unknown DB_SCHEMA_MODE %q", mode)
	}
	return plan, nil
}

// AutoMigrate creates or updates tables straight from the GORM models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database schema up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg, db.Dialector.Name())
	if err != nil {
		return err
	}
	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
	}
	if plan.auto {
		middleware.Logger.InfoContext(ctx, "AutoMigrate models", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the resolved plan and, when SQL migrations are in
// play, which of them are still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg, db.Dialector.Name())
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{
		Mode:               plan.mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.sql,
		WillRunAutoMigrate: plan.auto,
	}
	if !plan.sql {
		return status, nil
	}

	if status.AppliedVersions, err = NewLedger(db).Versions(ctx); err != nil {
		return nil, err
	}
	for _, m := range GetMigrations() {
		if !slices.Contains(status.AppliedVersions, m.Version) {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
