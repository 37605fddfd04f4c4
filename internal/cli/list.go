package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fixflow/internal/artifact"
	"fixflow/internal/issue"
)

var listOpenCmd = &cobra.Command{
	Use:   "list-open",
	Short: "List active (non-archived) issues",
	RunE:  runListOpen,
}

var listArchived bool

func init() {
	listOpenCmd.Flags().BoolVar(&listArchived, "archived", false, "List archived issues instead")
}

func runListOpen(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	st := artifactStore(cfg)

	var ids []string
	if listArchived {
		ids, err = st.ListArchived()
	} else {
		ids, err = st.ListActive()
	}
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if listArchived {
			fmt.Println("No archived issues.")
		} else {
			fmt.Println("No active issues.")
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Kind", "Status", "Artifacts"})

	for _, id := range ids {
		kind, status, count := issueSummary(st, id, listArchived)
		t.AppendRow(table.Row{id, kind, status, fmt.Sprintf("%d/%d", count, len(artifact.Names))})
	}

	t.Render()
	return nil
}

// issueSummary tolerates malformed issues: the listing should still show
// them, flagged with "?", rather than abort.
func issueSummary(st *artifact.Store, id string, archived bool) (issue.Kind, issue.Status, int) {
	read := st.Read
	if archived {
		read = st.ReadArchived
	}

	problem, ok := read(id, artifact.Problem)
	if !ok {
		return "?", "?", 0
	}
	status, kind, err := issue.ParseHeader(problem)
	if err != nil {
		return "?", "?", 0
	}

	count := 0
	for _, name := range artifact.Names {
		if _, ok := read(id, name); ok {
			count++
		}
	}
	return kind, status, count
}
