package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fixflow/internal/issue"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Workspace overview",
	Long:  "Shows issue counts per status, plus any runs that were interrupted\nmid-flight and can be resumed.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	st := artifactStore(cfg)

	active, err := st.ListActive()
	if err != nil {
		return err
	}
	archived, err := st.ListArchived()
	if err != nil {
		return err
	}

	counts := make(map[issue.Status]int)
	malformed := 0
	for _, id := range active {
		rec, err := issue.Load(st, id)
		if err != nil {
			malformed++
			continue
		}
		counts[rec.Status]++
	}

	fmt.Printf("%sActive issues:%s %d\n", colorBold, colorReset, len(active))
	order := []issue.Status{
		issue.StatusOpen, issue.StatusConfirmed, issue.StatusReviewed,
		issue.StatusImplemented, issue.StatusTested,
		issue.StatusResolved, issue.StatusRejected,
	}
	for _, s := range order {
		if counts[s] > 0 {
			fmt.Printf("  %-12s %d\n", s, counts[s])
		}
	}
	if malformed > 0 {
		fmt.Printf("  %smalformed    %d%s\n", colorRed, malformed, colorReset)
	}
	fmt.Printf("%sArchived:%s %d\n", colorBold, colorReset, len(archived))

	journal, err := mustJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	interrupted, err := journal.ListInterruptedRuns()
	if err != nil {
		return err
	}
	if len(interrupted) > 0 {
		fmt.Printf("\n%sInterrupted runs:%s\n", colorYellow, colorReset)
		for _, r := range interrupted {
			fmt.Printf("  %s (started %s) — resume with: fixflow run %s\n",
				r.IssueID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.IssueID)
		}
	}
	return nil
}
