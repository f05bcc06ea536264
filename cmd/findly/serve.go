package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/findly/internal/runtime"
	"github.com/mohammad-safakhou/findly/internal/server"
	"github.com/mohammad-safakhou/findly/internal/store"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	var migrateFirst bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			tele, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, cfg.General.ServiceName, version)
			if err != nil {
				return err
			}
			defer func() { _ = tele.Shutdown(ctx) }()

			if migrateFirst && cfg.Storage.UsesPostgres() {
				dsn, err := runtime.BuildPostgresDSN(cfg)
				if err != nil {
					return err
				}
				if err := store.Migrate(cfg.Storage.Postgres.MigrationsPath, dsn, "up", 0); err != nil {
					return err
				}
			}

			c, err := runtime.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			e := server.New(&server.QAHandler{
				Indexer:       c.Pipeline,
				Retriever:     c.Retriever,
				Conversations: c.Conversations,
			}, server.Options{Config: cfg.Server, Logger: logger, Health: c})
			return server.Run(ctx, e, cfg.Server, logger)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	serve.Flags().BoolVar(&migrateFirst, "migrate", false, "apply postgres migrations before serving")
	return serve
}
