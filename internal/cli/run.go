package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fixflow/internal/checker"
	"fixflow/internal/vcs"
	"fixflow/internal/worker"
	"fixflow/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run [issue-id]",
	Short: "Drive an issue through the workflow",
	Long: `Runs every remaining phase of an issue until it is archived or a
phase fails. A previously interrupted run resumes where the artifact
trail stops; nothing already done is redone.

With --all, runs every open issue, optionally in parallel.`,
	RunE: runRun,
}

var (
	runAll      bool
	runParallel int
	runForce    bool
)

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "Run every active issue")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 1, "Workers to use with --all")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Re-enter test+fix after a previous run exhausted the fix budget")

	runCmd.Flags().SortFlags = false
}

func runRun(cmd *cobra.Command, args []string) error {
	if !runAll && len(args) != 1 {
		return fmt.Errorf("need an issue id (or --all)")
	}
	if runAll && len(args) > 0 {
		return fmt.Errorf("--all takes no issue id")
	}

	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	journal, err := mustJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	st := artifactStore(cfg)
	workDir, _ := os.Getwd()

	var committer workflow.Committer
	if g := vcs.New(workDir); g.IsRepo() {
		committer = g
	}

	orch := workflow.New(
		st,
		journal,
		checker.New(cfg.Checker, workDir),
		workflow.ConfigAgents(cfg),
		committer,
		workflow.Options{
			MaxFixLoops: cfg.Workflow.MaxLoops(),
			Force:       runForce,
			WorkDir:     workDir,
			Out:         os.Stdout,
		},
	)

	// Ctrl+C cancels cleanly; the next run resumes from the artifacts.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !runAll {
		return runOne(ctx, orch, args[0])
	}

	ids, err := st.ListActive()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No active issues.")
		return nil
	}

	pool := worker.NewPool(orch.Run, runParallel)
	results := pool.Run(ctx, ids)

	fmt.Println()
	for _, r := range results {
		switch {
		case r.Error != nil:
			fmt.Printf("%s✗%s %-20s %v\n", colorRed, colorReset, r.IssueID, r.Error)
		default:
			fmt.Printf("%s✓%s %-20s %s (%s)\n", colorGreen, colorReset, r.IssueID, r.Final, r.Duration.Round(time.Second))
		}
	}
	if n := worker.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d issues failed", n, len(results))
	}
	return nil
}

func runOne(ctx context.Context, orch *workflow.Orchestrator, issueID string) error {
	fmt.Printf("Running issue %s\n", issueID)

	report, err := orch.Run(ctx, issueID)
	if err != nil {
		if errors.Is(err, workflow.ErrTestFixExhausted) {
			fmt.Printf("\n%sIssue %s stalled in test+fix.%s Inspect the implementation, then retry with --force.\n",
				colorYellow, issueID, colorReset)
		}
		return err
	}

	fmt.Printf("\nIssue %s finished at %s%s%s", issueID, colorBold, report.Final, colorReset)
	if report.Archived {
		fmt.Printf(" (archived)")
	}
	fmt.Println()
	if report.FixCycles > 0 {
		fmt.Printf("  fix cycles: %d\n", report.FixCycles)
	}
	for _, id := range report.FollowUps {
		fmt.Printf("  follow-up: %s\n", id)
	}
	if report.CommitHash != "" {
		fmt.Printf("  commit: %s\n", report.CommitHash)
	}
	return nil
}
