package commands

import (
	"context"
	"fmt"

	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"

	"github.com/spf13/cobra"
)

// SummaryCommands returns the performance summary repair commands
func SummaryCommands(ledgerService *services.LedgerService, s store.Store, logger *observability.Logger) *cobra.Command {
	summariesCmd := &cobra.Command{
		Use:   "summaries",
		Short: "Performance summary repair commands",
		Long: `Performance summary repair commands.

Summaries are a deterministic fold over the answer event log, so any
summary can be rebuilt from scratch by replaying the pair's events.

Available commands:
  rebuild - Replay one pair's event log into a fresh summary
  show    - Print the stored summary for one pair`,
	}

	summariesCmd.AddCommand(rebuildSummaryCmd(ledgerService, logger))
	summariesCmd.AddCommand(showSummaryCmd(s, logger))

	return summariesCmd
}

func rebuildSummaryCmd(ledgerService *services.LedgerService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild [username] [question-id]",
		Short: "Replay one pair's event log into a fresh summary",
		Long: `Replay the full answer event log for one (user, question) pair and
replace the stored summary with the result. Use after manual data
surgery or to verify fold determinism.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			username, questionID := args[0], args[1]

			summary, err := ledgerService.RebuildSummary(ctx, username, questionID)
			if err != nil {
				logger.Error(ctx, "Rebuild failed", err, map[string]interface{}{
					"username":    username,
					"question_id": questionID,
				})
				return err
			}

			printSummary(summary)
			return nil
		},
	}
}

func showSummaryCmd(s store.Store, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "show [username] [question-id]",
		Short: "Print the stored summary for one pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			username, questionID := args[0], args[1]

			summary, err := s.GetSummary(ctx, username, questionID)
			if err != nil {
				logger.Error(ctx, "Failed to load summary", err, map[string]interface{}{
					"username":    username,
					"question_id": questionID,
				})
				return err
			}
			if summary == nil {
				return contextutils.ErrorWithContextf("no summary for %s / %s", username, questionID)
			}

			printSummary(summary)
			return nil
		},
	}
}

func printSummary(summary *models.PerformanceSummary) {
	fmt.Printf("username:        %s\n", summary.Username)
	fmt.Printf("question_id:     %s\n", summary.QuestionID)
	fmt.Printf("topic:           %s\n", summary.Topic)
	fmt.Printf("attempts:        %d (%d correct, %d incorrect)\n", summary.TotalAttempts, summary.CorrectAttempts, summary.IncorrectAttempts)
	fmt.Printf("streak:          %d\n", summary.Streak)
	fmt.Printf("priority_score:  %.2f\n", summary.PriorityScore)
	fmt.Printf("last_answered:   %s\n", summary.LastAnsweredAt.Format("2006-01-02 15:04:05"))
}
