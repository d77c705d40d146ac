package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vedran77/spark/internal/config"
	"github.com/vedran77/spark/pkg/logger"
	"go.uber.org/zap"
)

func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "spark",
		Short:        "Chat relay and match notifications",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	root.AddCommand(
		buildServeCmd(&configPath),
		buildMigrateCmd(&configPath),
		buildReapCmd(&configPath),
	)
	return root
}

func buildServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, live channel and metrics server",
		Long: `Start the server.

Depending on transport.kind the live channel is either an in-process
websocket hub on /ws or API Gateway integrations on /gateway/*.
Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runServe(cmd.Context(), cfg, log)
		},
	}
}

func buildMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runMigrate(cmd.Context(), cfg, log)
		},
	}
}

func buildReapCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Remove stale connection records once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runReap(cmd.Context(), cfg, log)
		},
	}
}

func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log, nil
}
