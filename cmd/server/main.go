package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/event-ticketing/internal/app"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	root := &cobra.Command{
		Use:           "event-ticketing",
		Short:         "Event ticketing API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(serve, &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}, &cobra.Command{
		Use:   "seed",
		Short: "Sync roles, permissions, catalog data and the bootstrap admin",
		RunE:  runSeed,
	})
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	db, err := database.Open(cmd.Context(), cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.Migrate(cmd.Context(), db)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		log.Info("schema up to date")
		return nil
	}
	for _, v := range applied {
		log.WithField("version", v).Info("migration applied")
	}
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	db, err := database.Open(cmd.Context(), cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Seed(cmd.Context(), db, database.SeedOptionsFromEnv(cfg.BcryptCost)); err != nil {
		return err
	}
	log.Info("seed complete")
	return nil
}
