package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fixflow/internal/workflow"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [issue-id]",
	Short: "Archive a terminal issue",
	Long: `Moves a RESOLVED or REJECTED issue from issues/ into archive/.
A normal run archives automatically; this covers issues closed by hand.

With --reopen, moves an archived issue back into issues/.`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

var archiveReopen bool

func init() {
	archiveCmd.Flags().BoolVar(&archiveReopen, "reopen", false, "Move an archived issue back to the active root")
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}

	issueID := args[0]
	mgr := workflow.NewArchiveManager(artifactStore(cfg))

	if archiveReopen {
		if err := mgr.Unarchive(issueID); err != nil {
			return err
		}
		fmt.Printf("Reopened issue %s\n", issueID)
		return nil
	}

	if err := mgr.Archive(issueID); err != nil {
		return err
	}
	fmt.Printf("Archived issue %s\n", issueID)
	return nil
}
