package commands

import (
	"errors"

	"github.com/SscSPs/pfm_backend/internal/platform/config"
	"github.com/SscSPs/pfm_backend/pkg/database"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.StorageDriver != config.StoragePostgres {
				return errors.New("migrate requires STORAGE_DRIVER=postgres")
			}
			return database.RunMigrations(opts.cfg.DatabaseURL, opts.cfg.MigrationsPath, opts.logger)
		},
	}
}
