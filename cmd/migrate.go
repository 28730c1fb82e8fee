package cmd

import (
	"fmt"

	"github.com/cass-tech/storefront/internal/log"
	"github.com/cass-tech/storefront/internal/repository"
	"github.com/spf13/cobra"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the payment ledger migrations and exit",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", "", "migrations directory (defaults to database.migrationsPath)")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, cfg, err := setup(cmd.Context())
	if err != nil {
		return err
	}

	path := migrationsPath
	if path == "" {
		path = cfg.Database.MigrationsPath
	}

	repo, err := repository.NewRepository(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(path); err != nil {
		return err
	}
	log.L(ctx).WithField("path", path).Info("database migrations completed")
	return nil
}
