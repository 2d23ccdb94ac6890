// Command migrate runs schema operations for the microblogs database.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"microblogs/internal/config"
	"microblogs/internal/database"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the microblogs database schema",
	Long: `Manage the microblogs database schema.

Subcommands:
  up      - Apply pending SQL migrations
  auto    - Run GORM automigrations for every model
  status  - Show the schema policy and pending migrations
  down    - Roll back one migration by version`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending SQL migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *gorm.DB) error {
			if err := database.RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("sql migrations failed: %w", err)
			}
			cmd.Println("sql migrations applied")
			return nil
		})
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run GORM automigrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
			cfg.DBSchemaMode = database.SchemaModeAuto
			if err := database.ApplySchema(ctx, db, cfg); err != nil {
				return fmt.Errorf("auto schema apply failed: %w", err)
			}
			cmd.Println("automigrations applied")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
			status, err := database.GetSchemaStatus(ctx, db, cfg)
			if err != nil {
				return fmt.Errorf("schema status failed: %w", err)
			}
			cmd.Printf("mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
				status.Mode, status.Environment, status.WillRunSQL, status.WillRunAutoMigrate,
				len(status.AppliedVersions), len(status.PendingMigrations))
			for _, m := range status.PendingMigrations {
				cmd.Printf("pending: %s\n", m.String())
			}
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down <version>",
	Short: "Roll back one applied migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withDB(cmd.Context(), func(ctx context.Context, _ *config.Config, db *gorm.DB) error {
			if err := database.RollbackMigration(ctx, db, version); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			cmd.Printf("rolled back migration %d\n", version)
			return nil
		})
	},
}

// withDB opens the database without applying the schema policy.
func withDB(ctx context.Context, fn func(context.Context, *config.Config, *gorm.DB) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return fn(ctx, cfg, db)
}

func main() {
	rootCmd.AddCommand(upCmd, autoCmd, statusCmd, downCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
