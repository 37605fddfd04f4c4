package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [issue-id]",
	Short: "Show the journal for an issue",
	Long:  "Prints every recorded event for an issue: phase transitions,\nagent output previews, check failures, fix cycles.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

var logVerbose bool

func init() {
	logCmd.Flags().BoolVarP(&logVerbose, "verbose", "v", false, "Show full event content")
}

func runLog(cmd *cobra.Command, args []string) error {
	journal, err := mustJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	events, err := journal.GetEvents(args[0])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No events recorded for issue %s.\n", args[0])
		return nil
	}

	for _, e := range events {
		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		label := e.Type
		if e.Phase != "" {
			label = e.Phase + "/" + e.Type
		}
		fmt.Printf("%s%s%s  %s%-24s%s", colorDim, ts, colorReset, colorBold, label, colorReset)
		if e.Agent != "" {
			fmt.Printf(" [%s]", e.Agent)
		}
		fmt.Println()

		if e.Content == "" {
			continue
		}
		content := e.Content
		if !logVerbose && len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("  %s\n", content)
	}
	return nil
}
