package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/findly/internal/mcp"
	"github.com/mohammad-safakhou/findly/internal/runtime"
)

func mcpCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the page tools as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			c, err := runtime.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			srv := &mcp.Server{
				Indexer:       c.Pipeline,
				Retriever:     c.Retriever,
				Conversations: c.Conversations,
				Logger:        logger,
			}
			return srv.Serve(ctx, version, os.Stdin, os.Stdout)
		},
	}
}
