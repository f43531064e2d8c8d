package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jernst/mailsheets/internal/google"
	"github.com/jernst/mailsheets/internal/logging"
)

func newSetupCmd() *cobra.Command {
	var (
		credentialsFile string
		tokenFile       string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the interactive Google authorization flow",
		Long: `Authorize mailsheets against your Google account.

Opens the Google consent page in your browser and waits for the redirect on
a local callback listener. The granted token is persisted to the token file
and reused by the serve command; re-run setup when the token is revoked or
the requested scopes change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("credentials-file") {
				if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
					credentialsFile = v
				}
			}
			if !cmd.Flags().Changed("token-file") {
				if v := os.Getenv("GOOGLE_TOKEN_FILE"); v != "" {
					tokenFile = v
				}
			}

			logger := logging.Setup(os.Stderr, false)
			store := google.NewStore(google.Options{
				CredentialsFile: credentialsFile,
				TokenFile:       tokenFile,
				Logger:          logging.NewSlogAdapter(logging.WithService(logging.WithOperation(logger, "authorize"), "oauth")),
			})

			if _, err := store.Obtain(cmd.Context()); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Printf("Authorization complete. Token saved to %s\n", tokenFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&credentialsFile, "credentials-file", google.DefaultCredentialsFile, "Path to the Google OAuth client secrets JSON. Can also use GOOGLE_CREDENTIALS_FILE env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", google.DefaultTokenFile, "Path where the granted OAuth token is persisted. Can also use GOOGLE_TOKEN_FILE env var.")

	return cmd
}
