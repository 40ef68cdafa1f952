package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/logger"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Long: `Apply pending migrations for the configured SQL driver. Applied files are
recorded in schema_migrations, so running the command twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StorageDriver == config.DriverMemory {
				return fmt.Errorf("nothing to migrate: STORAGE_DRIVER is %s", config.DriverMemory)
			}
			log, err := logger.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.close()
			if err := be.migrate(cmd.Context()); err != nil {
				return err
			}
			if seed {
				if err := be.seedDemo(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.StorageDriver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load the demo catalog and events after migrating")
	return cmd
}
