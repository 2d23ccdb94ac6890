// Command seed populates the database with synthetic users and posts.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"microblogs/internal/config"
	"microblogs/internal/database"
	"microblogs/internal/seed"
)

var (
	numUsers         int
	postsPerUser     int
	shouldClean      bool
	dryRun           bool
	randSeed         int64
	printCredentials bool
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with test data",
	Long: `Populate the database with synthetic accounts @user1..@userN.

Seeded accounts bypass the sign-up rules: their passwords are 1 to 9
random letters and digits. Use --print-credentials to list them.

Examples:
  seed                              # 99 users, no posts
  seed --users 10 --posts-per-user 5
  seed --clean --dry-run`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.Flags().IntVar(&numUsers, "users", seed.DefaultUsers, "Number of users to create")
	rootCmd.Flags().IntVar(&postsPerUser, "posts-per-user", 0, "Posts to create for each user")
	rootCmd.Flags().BoolVar(&shouldClean, "clean", false, "Delete all users and posts first")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate data without writing it")
	rootCmd.Flags().Int64Var(&randSeed, "seed", 0, "Random seed for reproducible data (0 = time based)")
	rootCmd.Flags().BoolVar(&printCredentials, "print-credentials", false, "Print the generated username/password pairs")
}

func run(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.IsProduction() {
		return fmt.Errorf("refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close() }()

	res, err := seed.NewSeeder(db, seed.Options{
		Users:        numUsers,
		PostsPerUser: postsPerUser,
		Clean:        shouldClean,
		DryRun:       dryRun,
		RandSeed:     randSeed,
	}).Run(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("created %d users and %d posts (dry run: %t)\n", len(res.Users), res.Posts, dryRun)
	if printCredentials {
		names := make([]string, 0, len(res.Passwords))
		for name := range res.Passwords {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmd.Printf("%s\t%s\n", name, res.Passwords[name])
		}
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
