// Package checker wraps the project's lint, type-check, and test
// tooling behind a pass/fail interface. The orchestrator only cares
// whether a check passed and what the diagnostic output was.
package checker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"fixflow/internal/config"
)

// Result is the outcome of one check run.
type Result struct {
	Passed bool
	Report string // Combined stdout+stderr, kept for the fix prompt.
}

// Checker runs the three gates of the test+fix loop.
type Checker interface {
	RunLint(ctx context.Context) (Result, error)
	RunTypeCheck(ctx context.Context) (Result, error)
	RunTests(ctx context.Context) (Result, error)
}

// CommandChecker runs configured shell commands in the repo working
// directory. A check with no configured command passes trivially.
type CommandChecker struct {
	cfg     config.Checker
	workDir string
}

// New creates a checker over the configured commands.
func New(cfg config.Checker, workDir string) *CommandChecker {
	return &CommandChecker{cfg: cfg, workDir: workDir}
}

func (c *CommandChecker) RunLint(ctx context.Context) (Result, error) {
	return c.run(ctx, "lint", c.cfg.Lint)
}

func (c *CommandChecker) RunTypeCheck(ctx context.Context) (Result, error) {
	return c.run(ctx, "typecheck", c.cfg.Typecheck)
}

func (c *CommandChecker) RunTests(ctx context.Context) (Result, error) {
	return c.run(ctx, "tests", c.cfg.Tests)
}

func (c *CommandChecker) run(ctx context.Context, name, command string) (Result, error) {
	if command == "" {
		return Result{Passed: true, Report: name + ": no command configured, skipped"}, nil
	}

	timeout := time.Duration(c.cfg.DefaultTimeout()) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = c.workDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, fmt.Errorf("%s command timed out after %s: %s", name, timeout, command)
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// The tool ran and found problems — that is a failed check,
			// not a checker error.
			return Result{Passed: false, Report: out.String()}, nil
		}
		return Result{}, fmt.Errorf("run %s command %q: %w", name, command, err)
	}

	return Result{Passed: true, Report: out.String()}, nil
}
