// Package main provides the entry point for the examprep admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"examprep/cmd/adm/commands"
	"examprep/internal/config"
	"examprep/internal/database"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/store"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Quiet down the admin tool: no exporter connections, errors only.
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "examprep-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// Connect lazily-enough for the admin tool: no migrations on startup,
	// the db migrate command runs them explicitly.
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": commands.MaskDatabaseURL(cfg.Database.URL)})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	pgStore := store.NewPostgresStore(db, logger)
	ledgerService := services.NewLedgerService(pgStore, logger)
	statsService := services.NewStatsService(pgStore, logger)
	importService := services.NewImportService(pgStore, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Examprep Administration Tool",
		Long: `Examprep Administration Tool

CLI tool for administering the exam preparation service. Provides commands
for credential management, question imports, database operations, and
performance summary repair.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(cfg, statsService, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(dbManager, db, logger, cfg.Database.URL))
	rootCmd.AddCommand(commands.QuestionCommands(importService, pgStore, logger))
	rootCmd.AddCommand(commands.SummaryCommands(ledgerService, pgStore, logger))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
