package commands

import (
	"context"
	"fmt"
	"os"

	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/store"
	contextutils "examprep/internal/utils"

	"github.com/spf13/cobra"
)

// QuestionCommands returns the question catalog commands
func QuestionCommands(importService *services.ImportService, s store.Store, logger *observability.Logger) *cobra.Command {
	questionsCmd := &cobra.Command{
		Use:   "questions",
		Short: "Question catalog commands",
		Long: `Question catalog commands for the exam preparation service.

Available commands:
  import - Import questions from a JSON file
  count  - Show catalog size, optionally per topic
  topics - List the distinct topics in the catalog`,
	}

	questionsCmd.AddCommand(importQuestionsCmd(importService, logger))
	questionsCmd.AddCommand(countQuestionsCmd(s, logger))
	questionsCmd.AddCommand(listTopicsCmd(s, logger))

	return questionsCmd
}

func importQuestionsCmd(importService *services.ImportService, logger *observability.Logger) *cobra.Command {
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import questions from a JSON file",
		Long: `Import questions from a JSON file into the catalog.

The payload is validated against the import schema before anything is
written; a payload with any invalid or duplicate entry imports nothing.
Existing questions with matching IDs are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			path := args[0]

			data, err := os.ReadFile(path)
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read %s: %v", path, err)
			}

			if validateOnly {
				if err := importService.ValidatePayload(data); err != nil {
					return err
				}
				fmt.Println("Payload is valid")
				return nil
			}

			imported, err := importService.ImportQuestions(ctx, data)
			if err != nil {
				logger.Error(ctx, "Import failed", err, map[string]interface{}{"file": path})
				return err
			}

			fmt.Printf("Imported %d questions from %s\n", imported, path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "Validate the payload without writing anything")

	return cmd
}

func countQuestionsCmd(s store.Store, logger *observability.Logger) *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Show catalog size",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			count, err := s.CountQuestions(ctx, store.QuestionFilter{Topic: topic})
			if err != nil {
				logger.Error(ctx, "Failed to count questions", err, map[string]interface{}{"topic": topic})
				return err
			}

			fmt.Println(count)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Count only questions in this topic")

	return cmd
}

func listTopicsCmd(s store.Store, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the distinct topics in the catalog",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			topics, err := s.ListTopics(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to list topics", err, nil)
				return err
			}

			for _, topic := range topics {
				fmt.Println(topic)
			}
			return nil
		},
	}
}
