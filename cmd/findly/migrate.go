package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/findly/internal/runtime"
	"github.com/mohammad-safakhou/findly/internal/store"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	var migDir string
	var direction string
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			dsn, err := runtime.BuildPostgresDSN(cfg)
			if err != nil {
				return err
			}
			if migDir == "" {
				migDir = cfg.Storage.Postgres.MigrationsPath
			}
			if err := store.Migrate(migDir, dsn, direction, steps); err != nil {
				return err
			}
			logger.Info("migrations applied", "source", migDir, "direction", direction, "steps", steps)
			return nil
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "", "migrations source (default storage.postgres.migrations_path)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}
