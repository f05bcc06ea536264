package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/findly/config"
	"github.com/mohammad-safakhou/findly/internal/runtime"
)

var version = "dev"

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "findly",
		Short:         "Freshness-aware question answering over web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")
	root.AddCommand(serveCMD(&cfgPath), migrateCMD(&cfgPath), indexCMD(&cfgPath), askCMD(&cfgPath), mcpCMD(&cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger every command uses.
func bootstrap(ctx context.Context, cfgPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := runtime.LoadConfig(ctx, cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := runtime.NewLogger(os.Stderr, cfg.General)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
