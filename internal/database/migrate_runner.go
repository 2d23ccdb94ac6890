package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"microblogs/internal/middleware"
)

// Ledger records which migration versions a database has seen.
type Ledger interface {
	Versions(ctx context.Context) ([]int, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

// MigrationLog is one row of the migration_logs table.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string { return "migration_logs" }

const createLedgerSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

type gormLedger struct {
	db *gorm.DB
}

// NewLedger returns a Ledger stored in the migration_logs table of db.
func NewLedger(db *gorm.DB) Ledger {
	return gormLedger{db: db}
}

func (l gormLedger) Versions(ctx context.Context) ([]int, error) {
	versions := []int{}
	err := l.db.WithContext(ctx).Model(&MigrationLog{}).Order("version").Pluck("version", &versions).Error
	switch {
	case err == nil:
		return versions, nil
	case tableMissing(err):
		return []int{}, nil
	default:
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
}

// tableMissing matches the "no table" errors of postgres and sqlite, which
// carry no shared error code.
func tableMissing(err error) bool {
	msg := err.Error()
	if strings.Contains(msg, "no such table") {
		return true
	}
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}

func (l gormLedger) Apply(ctx context.Context, m Migration) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("migration %06d_%s up: %w", m.Version, m.Name, err)
		}
		return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error
	})
}

func (l gormLedger) Revert(ctx context.Context, m Migration) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("migration %06d_%s down: %w", m.Version, m.Name, err)
		}
		return tx.Delete(&MigrationLog{}, "version = ?", m.Version).Error
	})
}

// migrator drives a Ledger over a fixed, ordered migration set.
type migrator struct {
	ledger Ledger
	known  []Migration
}

func (mg migrator) up(ctx context.Context) error {
	done, err := mg.ledger.Versions(ctx)
	if err != nil {
		return err
	}
	if err := mg.checkKnown(done); err != nil {
		return err
	}

	for _, m := range mg.known {
		if slices.Contains(done, m.Version) {
			continue
		}
		if err := mg.ledger.Apply(ctx, m); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "Migration applied",
			slog.Int("version", m.Version), slog.String("name", m.Name))
	}
	return nil
}

func (mg migrator) down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(mg.known, func(m Migration) bool { return m.Version == version })
	if idx < 0 {
		return fmt.Errorf("no migration with version %d", version)
	}
	done, err := mg.ledger.Versions(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(done, version) {
		return fmt.Errorf("migration %d is not applied", version)
	}

	m := mg.known[idx]
	if err := mg.ledger.Revert(ctx, m); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Migration reverted",
		slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

// checkKnown refuses to run against a database migrated by newer code.
func (mg migrator) checkKnown(done []int) error {
	var stray []string
	for _, v := range done {
		if !slices.ContainsFunc(mg.known, func(m Migration) bool { return m.Version == v }) {
			stray = append(stray, fmt.Sprintf("%06d", v))
		}
	}
	if len(stray) == 0 {
		return nil
	}
	slices.Sort(stray)
	return fmt.Errorf("database has migrations this build does not know: %s", strings.Join(stray, ", "))
}

// RunMigrations creates migration_logs if needed and applies every pending migration.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(createLedgerSQL).Error; err != nil {
		return fmt.Errorf("create migration_logs: %w", err)
	}
	return migrator{ledger: NewLedger(db), known: migrations}.up(ctx)
}

// RollbackMigration reverts one applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return migrator{ledger: NewLedger(db), known: migrations}.down(ctx, version)
}
