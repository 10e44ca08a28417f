// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"examprep/internal/database"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(dbManager *database.Manager, db *sql.DB, logger *observability.Logger, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the exam preparation service.

Available commands:
  migrate - Apply the schema and pending migrations
  stats   - Show row counts per table`,
	}

	dbCmd.AddCommand(migrateCmd(dbManager, db, logger, databaseURL))
	dbCmd.AddCommand(dbStatsCmd(db, logger))

	return dbCmd
}

func migrateCmd(dbManager *database.Manager, db *sql.DB, logger *observability.Logger, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and pending migrations",
		Long:  `Apply the application schema and any pending versioned migrations.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()
			logger.Info(ctx, "Running migrations", map[string]interface{}{"db_url": MaskDatabaseURL(databaseURL)})

			if err := dbManager.RunMigrations(db); err != nil {
				logger.Error(ctx, "Migrations failed", err, nil)
				return contextutils.WrapError(err, "failed to run migrations")
			}

			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func dbStatsCmd(db *sql.DB, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts per table",
		Long:  `Show row counts for the questions, answer_events, and performance_summaries tables.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			for _, table := range []string{"questions", "answer_events", "performance_summaries"} {
				var count int
				// Table names come from the fixed list above, never from input.
				if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
					logger.Error(ctx, "Failed to count rows", err, map[string]interface{}{"table": table})
					return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count %s: %v", table, err)
				}
				fmt.Printf("%-22s %d\n", table, count)
			}
			return nil
		},
	}
}

// MaskDatabaseURL masks credentials in a database URL for display.
func MaskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			return "postgres://***:***@" + parts[1]
		}
	}
	return url
}
