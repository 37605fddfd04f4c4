package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fixflow/internal/artifact"
	"fixflow/internal/issue"
)

var newCmd = &cobra.Command{
	Use:   "new [issue-id] [title]",
	Short: "Create a new issue",
	Long: `Creates an issue directory with its problem document at status OPEN.

The body is taken from --body, or from stdin when piped:
  fixflow new login-crash "Crash on empty password" --kind bug
  cat report.md | fixflow new login-crash "Crash on empty password"`,
	Args: cobra.ExactArgs(2),
	RunE: runNew,
}

var (
	newKind string
	newBody string
)

func init() {
	newCmd.Flags().StringVarP(&newKind, "kind", "k", "bug", "Issue kind: bug, feature, or performance")
	newCmd.Flags().StringVarP(&newBody, "body", "b", "", "Problem description (default: stdin when piped)")
}

func runNew(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}

	issueID, title := args[0], args[1]
	if strings.ContainsAny(issueID, "/\\ ") {
		return fmt.Errorf("issue id %q must not contain spaces or path separators", issueID)
	}

	kind := issue.Kind(strings.ToUpper(newKind))
	if !issue.ValidKind(kind) {
		return fmt.Errorf("unknown kind %q (want bug, feature, or performance)", newKind)
	}

	body := newBody
	if body == "" {
		if stat, _ := os.Stdin.Stat(); stat != nil && stat.Mode()&os.ModeCharDevice == 0 {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			body = string(data)
		}
	}

	st := artifactStore(cfg)
	if st.Archived(issueID) {
		return fmt.Errorf("issue %s is archived; pick another id", issueID)
	}

	problem := issue.NewProblem(title, kind, body)
	if err := st.Write(issueID, artifact.Problem, problem); err != nil {
		if errors.Is(err, artifact.ErrAlreadyExists) {
			return fmt.Errorf("issue %s already exists", issueID)
		}
		return err
	}

	fmt.Printf("Created issue %s (%s)\n", issueID, kind)
	fmt.Printf("  %s\n", st.IssueDir(issueID))
	fmt.Printf("\nRun it with: fixflow run %s\n", issueID)
	return nil
}
