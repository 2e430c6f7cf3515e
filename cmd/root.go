package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// rootCmd represents the base command for the tether application.
var rootCmd = &cobra.Command{
	Use:   "tether",
	Short: "Conversational agent for stateful MCP tool servers",
	Long: `tether connects an LLM agent to a stateful MCP tool server and runs
the conversation loop between them: the model's tool calls are translated
to protocol requests, results are fed back, and the agent continues until
it answers without tools.

The server's capability set may change as its internal state transitions;
tether tracks those changes and keeps the model's tool view current.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tether version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}
