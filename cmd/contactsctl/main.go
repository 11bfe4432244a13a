package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/campaign-contacts-api/internal/app"
	"github.com/noah-isme/campaign-contacts-api/pkg/cache"
	"github.com/noah-isme/campaign-contacts-api/pkg/config"
	"github.com/noah-isme/campaign-contacts-api/pkg/database"
	"github.com/noah-isme/campaign-contacts-api/pkg/logger"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "contactsctl",
	Short:         "Operate the campaign contacts store from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "contactsctl %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(templateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openContainer wires the service graph without starting the reconcile
// queue, so scheduled recounts run inline before the command returns.
func openContainer(ctx context.Context) (*app.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		rdb = nil
	}
	container, err := app.Build(cfg, db, rdb, logr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return container, nil
}
