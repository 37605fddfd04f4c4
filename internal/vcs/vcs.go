// Package vcs provides the git operations the workflow needs: staging
// the artifact trail and committing it once an issue reaches a terminal
// status.
package vcs

import (
	"fmt"
	"os/exec"
	"strings"
)

// Git runs git commands in a working directory.
type Git struct {
	workDir string
}

// New creates a Git instance for the given working directory.
func New(workDir string) *Git {
	return &Git{workDir: workDir}
}

// IsRepo checks if the working directory is a git repository.
func (g *Git) IsRepo() bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = g.workDir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// CurrentBranch returns the name of the current git branch.
func (g *Git) CurrentBranch() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = g.workDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("get current branch: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Commit stages the given paths and commits them with the message,
// returning the commit hash. With no paths it stages everything.
// Returns an empty hash without error when there is nothing to commit,
// so re-running a completed workflow stays idempotent.
func (g *Git) Commit(files []string, message string) (string, error) {
	addArgs := []string{"add"}
	if len(files) == 0 {
		addArgs = append(addArgs, "-A")
	} else {
		addArgs = append(addArgs, "--")
		addArgs = append(addArgs, files...)
	}
	addCmd := exec.Command("git", addArgs...)
	addCmd.Dir = g.workDir
	if out, err := addCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git add: %s", strings.TrimSpace(string(out)))
	}

	// Check if there are staged changes.
	diffCmd := exec.Command("git", "diff", "--cached", "--quiet")
	diffCmd.Dir = g.workDir
	if err := diffCmd.Run(); err == nil {
		return "", nil
	}

	commitCmd := exec.Command("git", "commit", "-m", message)
	commitCmd.Dir = g.workDir
	if out, err := commitCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git commit: %s", strings.TrimSpace(string(out)))
	}

	hashCmd := exec.Command("git", "rev-parse", "HEAD")
	hashCmd.Dir = g.workDir
	out, err := hashCmd.Output()
	if err != nil {
		return "", fmt.Errorf("get commit hash: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// HasUncommittedChanges checks for uncommitted changes in the working tree.
func (g *Git) HasUncommittedChanges() bool {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = g.workDir
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}
