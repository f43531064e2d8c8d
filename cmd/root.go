package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailsheets application
var rootCmd = &cobra.Command{
	Use:   "mailsheets",
	Short: "MCP server for sending email and managing Google Spreadsheets",
	Long: `mailsheets exposes Gmail, Google Sheets and Google Drive operations as
MCP (Model Context Protocol) tools for AI assistants.

Tools provided:
  - send_email: Send an email via Gmail
  - create_blank_spreadsheet: Create a new spreadsheet
  - write_data_to_spreadsheet: Write data into a spreadsheet
  - share_spreadsheet: Share a spreadsheet with a user
  - get_spreadsheet_link: Resolve a spreadsheet's browser link`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailsheets version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSetupCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
