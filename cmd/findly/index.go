package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/findly/internal/runtime"
)

func indexCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index <url>",
		Short: "Fetch a page and index its current content",
		Args:  cobra.ExactArgs(1),
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

			res, err := c.Pipeline.Ingest(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
