package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fixflow",
	Short: "Agent-driven issue workflow",
	Long:  "fixflow — drives issues through validate, propose, review, implement,\ntest+fix, and document phases, with an AI agent doing the reasoning at\neach step and every decision written down as an artifact.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listOpenCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(uiCmd)
}
