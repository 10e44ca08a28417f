package commands

import (
	"context"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"examprep/internal/config"
	"examprep/internal/observability"
	"examprep/internal/services"
	contextutils "examprep/internal/utils"

	"github.com/spf13/cobra"
)

// UserCommands returns the user management commands
func UserCommands(cfg *config.Config, statsService *services.StatsService, logger *observability.Logger) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for the exam preparation service.

Users are a fixed list in the configuration file; there is no signup flow.

Available commands:
  list           - List configured users
  hash-password  - Produce a bcrypt hash for the credentials file
  reset-progress - Delete a user's answer history and summaries`,
	}

	userCmd.AddCommand(listUsersCmd(cfg))
	userCmd.AddCommand(hashPasswordCmd())
	userCmd.AddCommand(resetProgressCmd(statsService, logger))

	return userCmd
}

func listUsersCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured users",
		Long:  `List the usernames present in the configuration file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			usernames := cfg.Usernames()
			if len(usernames) == 0 {
				fmt.Println("No users configured")
				return nil
			}
			for _, username := range usernames {
				fmt.Println(username)
			}
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Produce a bcrypt hash for the credentials file",
		Long: `Prompt for a password and print its bcrypt hash.

Paste the hash into the auth.users section of the configuration file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Print("Enter password: ")
			passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
			}
			fmt.Println()

			password := string(passwordBytes)
			if password == "" {
				return contextutils.ErrorWithContextf("password cannot be empty")
			}

			fmt.Print("Confirm password: ")
			confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password confirmation: %v", err)
			}
			fmt.Println()

			if password != string(confirmBytes) {
				return contextutils.ErrorWithContextf("passwords do not match")
			}

			hash, err := services.HashPassword(password)
			if err != nil {
				return err
			}

			fmt.Println(hash)
			return nil
		},
	}
}

func resetProgressCmd(statsService *services.StatsService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-progress [username]",
		Short: "Delete a user's answer history and summaries",
		Long: `Delete all answer events and performance summaries for a user.

The question catalog is untouched. This cannot be undone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			username := args[0]

			fmt.Printf("Delete all progress for %q? Type the username to confirm: ", username)
			var confirm string
			if _, err := fmt.Scanln(&confirm); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read confirmation: %v", err)
			}
			if confirm != username {
				return contextutils.ErrorWithContextf("confirmation did not match, aborting")
			}

			if err := statsService.ResetProgress(ctx, username); err != nil {
				logger.Error(ctx, "Failed to reset progress", err, map[string]interface{}{"username": username})
				return err
			}

			fmt.Printf("Progress reset for %s\n", username)
			return nil
		},
	}
}
