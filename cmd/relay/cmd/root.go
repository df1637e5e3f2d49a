package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Real-time multi-party text relay",
	Long: `Relay fans out text messages between every connected participant.

Available commands:
  serve     Run the relay server
  chat      Connect to a relay from the terminal
  events    List the topics published on the observer bus
  version   Print the version

Use "relay [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
