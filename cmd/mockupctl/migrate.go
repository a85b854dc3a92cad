package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"mockupstudio/internal/config"
	"mockupstudio/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the template database schema",
		Long: `Apply or inspect the embedded migrations. Connection settings come
from the POSTGRES_* environment variables used by the server.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withDB(database.Migrate)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied state of every migration",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withDB(database.MigrationStatus)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert the sample template when no templates exist",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withDB(database.Seed)
			},
		},
	)
	return cmd
}

func withDB(fn func(*sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
