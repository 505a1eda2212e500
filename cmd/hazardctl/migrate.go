package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-ingest-service/internal/adapter/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending PostgreSQL schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		store, err := postgres.Open(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		version, err := store.Migrate()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}
