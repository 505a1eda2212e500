// Command hazardctl is the operator CLI for the hazard ingest service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/hazard-ingest-service/internal/config"
	"github.com/couchcryptid/hazard-ingest-service/internal/observability"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "hazardctl <command>",
	Short:         "Operate the hazard ingest service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		// Logs go to stderr so stdout stays machine-readable.
		logger = observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
