// Package workflow drives an issue through the fixed phase sequence:
// validate, propose, review, implement, test+fix, document and archive.
// Each phase gates on the artifacts earlier phases wrote, invokes an
// opaque agent or checker, and records its output as a new artifact.
// Status only moves forward; the one shortcut is the rejection
// short-circuit out of validation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fixflow/internal/agent"
	"fixflow/internal/artifact"
	"fixflow/internal/checker"
	"fixflow/internal/config"
	"fixflow/internal/issue"
	"fixflow/internal/store"
)

// ErrTestFixExhausted means the test+fix loop hit its retry bound. The
// issue stays at IMPLEMENTED and is not retried automatically — a later
// run must be forced.
var ErrTestFixExhausted = errors.New("test+fix retries exhausted")

// AuditEntry records one successful phase transition.
type AuditEntry struct {
	Phase     string
	Timestamp time.Time
	Status    issue.Status
}

// Report is what a completed (or failed) run hands back to the caller.
type Report struct {
	IssueID    string
	Final      issue.Status
	Audit      []AuditEntry
	Archived   bool
	CommitHash string
	FollowUps  []string // ids of follow-up issues minted during document
	FixCycles  int
}

// AgentResolver maps a workflow role to a ready-to-run agent.
type AgentResolver func(role string) (name string, runner agent.Runner, err error)

// ConfigAgents resolves roles against the workspace config, falling
// back to the "default" role.
func ConfigAgents(cfg *config.Config) AgentResolver {
	return func(role string) (string, agent.Runner, error) {
		name, agentCfg, ok := cfg.FindByRole(role)
		if !ok {
			return "", nil, fmt.Errorf("no agent configured for role %q (and no default)", role)
		}
		runner, err := agent.NewRunner(name, agentCfg)
		if err != nil {
			return "", nil, err
		}
		return name, runner, nil
	}
}

// Committer is the slice of version control the workflow needs.
// *vcs.Git satisfies it.
type Committer interface {
	Commit(files []string, message string) (string, error)
}

// Options tunes an orchestrator.
type Options struct {
	MaxFixLoops int       // test+fix retry bound (0 = 10)
	Force       bool      // re-enter test+fix after a previous exhausted run
	WorkDir     string    // repo root agents and checkers run in
	Out         io.Writer // progress output (nil = silent)
}

// Orchestrator sequences the phases for one issue at a time. It is safe
// to use from multiple goroutines as long as they drive distinct issues;
// the per-issue file lock enforces exactly that across processes too.
type Orchestrator struct {
	store   *artifact.Store
	journal *store.Store // may be nil (tests)
	checks  checker.Checker
	agents  AgentResolver
	vcs     Committer // may be nil (not a git repo)
	prompts *agent.PromptBuilder

	maxFixLoops int
	force       bool
	workDir     string
	out         io.Writer
}

// New creates an orchestrator over the given collaborators.
func New(st *artifact.Store, journal *store.Store, checks checker.Checker, agents AgentResolver, vc Committer, opts Options) *Orchestrator {
	max := opts.MaxFixLoops
	if max <= 0 {
		max = 10
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		store:       st,
		journal:     journal,
		checks:      checks,
		agents:      agents,
		vcs:         vc,
		prompts:     agent.NewPromptBuilder(st),
		maxFixLoops: max,
		force:       opts.Force,
		workDir:     opts.WorkDir,
		out:         out,
	}
}

func (o *Orchestrator) logf(format string, args ...any) {
	fmt.Fprintf(o.out, format, args...)
}

// event journals an entry, tolerating a nil journal.
func (o *Orchestrator) event(issueID, phase, agentName, eventType, content string) {
	if o.journal != nil {
		o.journal.AddEvent(issueID, phase, agentName, eventType, content)
	}
}

// Run drives one issue through every remaining phase until it is
// archived or a phase fails. State is reloaded from disk before each
// phase, so a run interrupted at any point resumes exactly where the
// artifact trail stops.
func (o *Orchestrator) Run(ctx context.Context, issueID string) (*Report, error) {
	report := &Report{IssueID: issueID}

	// Already archived: idempotent no-op.
	if !o.store.Exists(issueID) && o.store.Archived(issueID) {
		if problem, ok := o.store.ReadArchived(issueID, artifact.Problem); ok {
			if status, _, err := issue.ParseHeader(problem); err == nil {
				report.Final = status
			}
		}
		report.Archived = true
		o.logf("Issue %s is already archived.\n", issueID)
		return report, nil
	}

	lock, err := o.store.LockIssue(issueID)
	if err != nil {
		return report, err
	}
	defer lock.Release()

	var runID int64
	if o.journal != nil {
		runID, _ = o.journal.StartRun(issueID, o.maxFixLoops)
	}

	err = o.drive(ctx, issueID, report)

	if o.journal != nil && runID > 0 {
		switch {
		case err == nil:
			o.journal.EndRun(runID, store.RunCompleted)
		case errors.Is(err, ErrTestFixExhausted):
			o.journal.EndRun(runID, store.RunExhausted)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			o.journal.EndRun(runID, store.RunInterrupted)
		default:
			o.journal.EndRun(runID, store.RunFailed)
		}
	}

	return report, err
}

func (o *Orchestrator) drive(ctx context.Context, issueID string, report *Report) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := issue.Load(o.store, issueID)
		if err != nil {
			return err
		}
		report.Final = rec.Status

		if rec.Status.Terminal() {
			return o.finishTerminal(rec, report)
		}

		ph, err := nextPhase(rec)
		if err != nil {
			return err
		}
		if ph == nil {
			return o.finishTerminal(rec, report)
		}

		if err := o.runPhase(ctx, rec, ph, report); err != nil {
			return err
		}
	}
}

// runPhase executes one phase, or repairs the status if the phase's
// artifact already exists from an interrupted run.
func (o *Orchestrator) runPhase(ctx context.Context, rec *issue.Record, ph *Phase, report *Report) error {
	if err := rec.RequireArtifacts(ph.Requires...); err != nil {
		return err
	}

	// The artifact exists but the status was never advanced: the prior
	// run was interrupted between the write and the header edit. Replay
	// the transition without re-invoking the agent.
	if rec.HasArtifact(ph.Produces) {
		return o.repairPhase(rec, ph, report)
	}

	switch ph.Name {
	case PhaseValidate:
		return o.runValidate(ctx, rec, ph, report)
	case PhaseTestFix:
		return o.runTestFix(ctx, rec, ph, report)
	case PhaseDocument:
		return o.runDocument(ctx, rec, ph, report)
	default:
		return o.runAgentPhase(ctx, rec, ph, ph.Name, "", report)
	}
}

func (o *Orchestrator) repairPhase(rec *issue.Record, ph *Phase, report *Report) error {
	next := ph.Next
	if ph.Name == PhaseValidate {
		// The recorded validation outcome decides the branch.
		content, _ := o.store.Read(rec.ID, artifact.Validation)
		if tag, reason := agent.ParseOutcome(content); tag == agent.OutcomeRejected {
			return o.reject(rec, reason, report)
		}
	}
	if err := o.setStatus(rec, next); err != nil {
		return err
	}
	o.event(rec.ID, ph.Name, "", "status", fmt.Sprintf("replayed %s -> %s after interrupted run", ph.Name, next))
	o.logf("  %s: artifact already present, status advanced to %s\n", ph.Name, next)
	appendAudit(report, ph.Name, next)
	return nil
}

// runAgentPhase covers the phases whose whole job is: invoke the
// role's agent, persist its output as the phase artifact, advance.
func (o *Orchestrator) runAgentPhase(ctx context.Context, rec *issue.Record, ph *Phase, promptPhase, extra string, report *Report) error {
	resp, agentName, err := o.invokeAgent(ctx, rec, ph, promptPhase, extra)
	if err != nil {
		return err
	}

	if err := o.store.Write(rec.ID, ph.Produces, resp.Output); err != nil {
		return fmt.Errorf("issue %s: %s phase: %w", rec.ID, ph.Name, err)
	}

	if ph.Next != rec.Status {
		if err := o.setStatus(rec, ph.Next); err != nil {
			return err
		}
	}

	o.completePhase(rec, ph.Name, agentName, ph.Next, report)
	return nil
}

func (o *Orchestrator) runValidate(ctx context.Context, rec *issue.Record, ph *Phase, report *Report) error {
	resp, agentName, err := o.invokeAgent(ctx, rec, ph, PhaseValidate, "")
	if err != nil {
		return err
	}

	tag, reason := agent.ParseOutcome(resp.Output)
	if tag == "" {
		return fmt.Errorf("issue %s: validate phase: agent %s declared no OUTCOME", rec.ID, agentName)
	}

	if err := o.store.Write(rec.ID, artifact.Validation, resp.Output); err != nil {
		return fmt.Errorf("issue %s: validate phase: %w", rec.ID, err)
	}

	if tag == agent.OutcomeRejected {
		o.event(rec.ID, PhaseValidate, agentName, "rejected", reason)
		o.logf("  validate: issue rejected (%s)\n", reason)
		appendAudit(report, PhaseValidate, issue.StatusRejected)
		return o.reject(rec, reason, report)
	}

	if err := o.setStatus(rec, issue.StatusConfirmed); err != nil {
		return err
	}
	o.completePhase(rec, PhaseValidate, agentName, issue.StatusConfirmed, report)
	return nil
}

// reject is the short-circuit out of validation: the solution document
// recording the rejection is written immediately and every intermediate
// phase is skipped.
func (o *Orchestrator) reject(rec *issue.Record, reason string, report *Report) error {
	if !rec.HasArtifact(artifact.Solution) {
		if err := o.store.Write(rec.ID, artifact.Solution, rejectionSolution(rec.ID, reason)); err != nil {
			return fmt.Errorf("issue %s: reject: %w", rec.ID, err)
		}
	}
	if err := o.setStatus(rec, issue.StatusRejected); err != nil {
		return err
	}
	report.Final = issue.StatusRejected
	return nil
}

func rejectionSolution(issueID, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Solution: %s\n\n", issueID)
	b.WriteString("**Resolution**: REJECTED\n\n")
	if reason != "" {
		fmt.Fprintf(&b, "%s\n\n", reason)
	}
	b.WriteString("Validation determined this issue is not actionable. See validation.md for the full analysis.\n")
	return b.String()
}

// runTestFix runs the checkers, and on any failure asks the fixer agent
// for a patch, up to the retry bound. It also settles the structural
// validation tests: each must be converted into a permanent test or
// deleted before the phase can complete.
func (o *Orchestrator) runTestFix(ctx context.Context, rec *issue.Record, ph *Phase, report *Report) error {
	if err := o.guardExhausted(rec); err != nil {
		return err
	}

	validation, _ := o.store.Read(rec.ID, artifact.Validation)
	structural := agent.ParseStructuralTests(validation)

	var converted, deleted []string
	var refactorings []agent.Refactoring
	var checkLines []string
	fixCycles := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		failName, failReport, lines, err := o.runChecks(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("issue %s: testfix phase: checker: %w", rec.ID, err)
		}
		checkLines = lines

		if failName == "" {
			leftover := unaccounted(structural, converted, deleted)
			if len(leftover) == 0 {
				break
			}
			failName = "structural-tests"
			failReport = "These structural validation tests are still tagged provisional.\n" +
				"Convert each into a permanent behavioral test or delete it:\n  " +
				strings.Join(leftover, "\n  ")
		}

		if fixCycles >= o.maxFixLoops {
			o.event(rec.ID, PhaseTestFix, "", "exhausted",
				fmt.Sprintf("gave up after %d fix cycles; last failure: %s", fixCycles, failName))
			o.logf("  testfix: retry budget exhausted after %d cycles\n", fixCycles)
			return fmt.Errorf("issue %s: testfix phase: %d cycles: %w", rec.ID, fixCycles, ErrTestFixExhausted)
		}
		fixCycles++

		o.event(rec.ID, PhaseTestFix, "", "check_failed", failName)
		o.logf("  testfix: %s failed, fix cycle %d/%d\n", failName, fixCycles, o.maxFixLoops)

		extra := fmt.Sprintf("## Failing check: %s\n\n```\n%s\n```", failName, strings.TrimSpace(failReport))
		resp, agentName, err := o.invokeAgent(ctx, rec, ph, "fix", extra)
		if err != nil {
			return err
		}
		o.event(rec.ID, PhaseTestFix, agentName, "fix_cycle", preview(resp.Output))

		conv, del := agent.ParseDispositions(resp.Output)
		converted = append(converted, conv...)
		deleted = append(deleted, del...)
		refactorings = append(refactorings, agent.ParseRefactorings(resp.Output)...)
	}

	report.FixCycles = fixCycles
	content := testingReport(fixCycles, converted, deleted, checkLines, refactorings)
	if err := o.store.Write(rec.ID, artifact.Testing, content); err != nil {
		return fmt.Errorf("issue %s: testfix phase: %w", rec.ID, err)
	}

	if err := o.setStatus(rec, issue.StatusTested); err != nil {
		return err
	}
	o.completePhase(rec, PhaseTestFix, "", issue.StatusTested, report)
	return nil
}

// guardExhausted refuses to re-enter test+fix after a previous run hit
// the retry bound, unless the caller forces it. Automatic retries would
// just burn the budget again on the same failure.
func (o *Orchestrator) guardExhausted(rec *issue.Record) error {
	if o.force || o.journal == nil {
		return nil
	}
	last, err := o.journal.LastEndedRunStatus(rec.ID)
	if err != nil {
		return err
	}
	if last == store.RunExhausted {
		return fmt.Errorf("issue %s: previous run exhausted the fix budget, re-run with --force: %w",
			rec.ID, ErrTestFixExhausted)
	}
	return nil
}

// runChecks runs lint, typecheck, and tests in order. Returns the name
// and report of the first failure, plus a summary line per check.
func (o *Orchestrator) runChecks(ctx context.Context, issueID string) (failName, failReport string, lines []string, err error) {
	checks := []struct {
		name string
		run  func(context.Context) (checker.Result, error)
	}{
		{"lint", o.checks.RunLint},
		{"typecheck", o.checks.RunTypeCheck},
		{"tests", o.checks.RunTests},
	}

	for _, c := range checks {
		res, runErr := c.run(ctx)
		if runErr != nil {
			return "", "", nil, runErr
		}
		if res.Passed {
			lines = append(lines, fmt.Sprintf("- %s: passed", c.name))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: FAILED", c.name))
		if failName == "" {
			failName = c.name
			failReport = res.Report
		}
	}
	return failName, failReport, lines, nil
}

func unaccounted(structural, converted, deleted []string) []string {
	settled := make(map[string]bool, len(converted)+len(deleted))
	for _, t := range converted {
		settled[t] = true
	}
	for _, t := range deleted {
		settled[t] = true
	}
	var left []string
	for _, t := range structural {
		if !settled[t] {
			left = append(left, t)
		}
	}
	return left
}

func testingReport(fixCycles int, converted, deleted, checkLines []string, refactorings []agent.Refactoring) string {
	var b strings.Builder
	b.WriteString("# Testing Report\n\n")
	fmt.Fprintf(&b, "**Fix cycles**: %d\n", fixCycles)
	fmt.Fprintf(&b, "**Structural tests converted**: %d\n", len(converted))
	fmt.Fprintf(&b, "**Structural tests deleted**: %d\n\n", len(deleted))

	b.WriteString("## Checks\n\n")
	for _, line := range checkLines {
		b.WriteString(line + "\n")
	}

	if len(converted)+len(deleted) > 0 {
		b.WriteString("\n## Structural Test Bookkeeping\n\n")
		for _, t := range converted {
			fmt.Fprintf(&b, "CONVERTED: %s\n", t)
		}
		for _, t := range deleted {
			fmt.Fprintf(&b, "DELETED: %s\n", t)
		}
	}

	if len(refactorings) > 0 {
		b.WriteString("\nREFACTORING OPPORTUNITIES:\n")
		for i, r := range refactorings {
			fmt.Fprintf(&b, "%d. %s - %s (priority: %s)\n", i+1, r.Title, r.Note, r.Priority)
		}
	}

	return b.String()
}

// runDocument writes the solution record, mints follow-up issues for
// the HIGH and MEDIUM refactoring opportunities the testing report
// surfaced, and marks the issue resolved. Archival and the final commit
// happen in finishTerminal once the status flip lands.
func (o *Orchestrator) runDocument(ctx context.Context, rec *issue.Record, ph *Phase, report *Report) error {
	resp, agentName, err := o.invokeAgent(ctx, rec, ph, PhaseDocument, "")
	if err != nil {
		return err
	}

	testing, _ := o.store.Read(rec.ID, artifact.Testing)
	followUps, err := o.createFollowUps(rec, agent.ParseRefactorings(testing))
	if err != nil {
		return err
	}
	report.FollowUps = followUps

	content := resp.Output
	if len(followUps) > 0 {
		var b strings.Builder
		b.WriteString(strings.TrimRight(content, "\n"))
		b.WriteString("\n\n## Follow-up Issues\n\n")
		for _, id := range followUps {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		content = b.String()
	}

	if err := o.store.Write(rec.ID, artifact.Solution, content); err != nil {
		return fmt.Errorf("issue %s: document phase: %w", rec.ID, err)
	}

	if err := o.setStatus(rec, issue.StatusResolved); err != nil {
		return err
	}
	o.completePhase(rec, PhaseDocument, agentName, issue.StatusResolved, report)
	return nil
}

// createFollowUps mints a fresh OPEN issue for each HIGH or MEDIUM
// refactoring opportunity. LOW entries are dropped.
func (o *Orchestrator) createFollowUps(rec *issue.Record, refs []agent.Refactoring) ([]string, error) {
	var ids []string
	for _, r := range refs {
		if r.Priority != "high" && r.Priority != "medium" {
			continue
		}
		id := "refactor-" + uuid.NewString()[:8]
		body := r.Note
		if body != "" {
			body += "\n\n"
		}
		body += fmt.Sprintf("Spun off from issue %s during testing.", rec.ID)
		problem := issue.NewProblem(r.Title, issue.KindFeature, body)
		if err := o.store.Write(id, artifact.Problem, problem); err != nil {
			return ids, fmt.Errorf("issue %s: create follow-up: %w", rec.ID, err)
		}
		o.event(rec.ID, PhaseDocument, "", "followup", fmt.Sprintf("%s: %s (priority: %s)", id, r.Title, r.Priority))
		o.logf("  follow-up issue created: %s (%s)\n", id, r.Priority)
		ids = append(ids, id)
	}
	return ids, nil
}

// finishTerminal archives a terminal issue and makes the final commit.
// Safe to re-enter: a rejected issue missing its solution document
// (crash between writes) gets one composed here.
func (o *Orchestrator) finishTerminal(rec *issue.Record, report *Report) error {
	report.Final = rec.Status

	if o.store.Exists(rec.ID) {
		if rec.Status == issue.StatusRejected && !rec.HasArtifact(artifact.Solution) {
			if err := o.store.Write(rec.ID, artifact.Solution, rejectionSolution(rec.ID, "")); err != nil {
				return err
			}
		}

		mgr := NewArchiveManager(o.store)
		if err := mgr.Archive(rec.ID); err != nil {
			return err
		}
		o.event(rec.ID, "", "", "archived", string(rec.Status))
		o.logf("  archived %s (%s)\n", rec.ID, rec.Status)
		appendAudit(report, "archive", rec.Status)
	}
	report.Archived = true

	if o.vcs != nil {
		var files []string
		for _, name := range artifact.Names {
			if _, ok := o.store.ReadArchived(rec.ID, name); ok {
				files = append(files, filepath.Join(o.store.ArchiveRoot(), rec.ID, name+".md"))
			}
		}
		msg := fmt.Sprintf("fixflow: %s %s", rec.ID, strings.ToLower(string(rec.Status)))
		hash, err := o.vcs.Commit(files, msg)
		if err != nil {
			// The issue is archived; a commit failure is surfaced but
			// does not undo the workflow.
			o.logf("  warning: commit failed: %v\n", err)
			o.event(rec.ID, "", "", "commit_failed", err.Error())
		} else if hash != "" {
			report.CommitHash = hash
			o.event(rec.ID, "", "", "committed", hash)
			o.logf("  committed %s\n", hash[:min(12, len(hash))])
		}
	}

	return nil
}

// invokeAgent resolves the phase's role, builds the prompt from the
// artifact trail, and runs the agent, wrapping failures with issue and
// phase context so the caller can re-attempt safely.
func (o *Orchestrator) invokeAgent(ctx context.Context, rec *issue.Record, ph *Phase, promptPhase, extra string) (*agent.Response, string, error) {
	name, runner, err := o.agents(ph.Role)
	if err != nil {
		return nil, "", fmt.Errorf("issue %s: %s phase: %w", rec.ID, ph.Name, err)
	}

	o.logf("  %s: running agent %s\n", ph.Name, name)

	resp, err := runner.Run(ctx, agent.Request{
		IssueID: rec.ID,
		Phase:   promptPhase,
		Prompt:  o.prompts.Build(rec.ID, promptPhase, extra),
		WorkDir: o.workDir,
	})
	if err != nil {
		return nil, name, fmt.Errorf("issue %s: %s phase: agent %s: %w", rec.ID, ph.Name, name, err)
	}
	if resp.Error != nil {
		return nil, name, fmt.Errorf("issue %s: %s phase: agent %s: %w", rec.ID, ph.Name, name, resp.Error)
	}

	o.event(rec.ID, ph.Name, name, "agent_output", preview(resp.Output))
	return resp, name, nil
}

func (o *Orchestrator) setStatus(rec *issue.Record, status issue.Status) error {
	problem, ok := o.store.Read(rec.ID, artifact.Problem)
	if !ok {
		return fmt.Errorf("issue %s: problem document vanished: %w", rec.ID, issue.ErrMalformed)
	}
	if err := o.store.Overwrite(rec.ID, artifact.Problem, issue.WithStatus(problem, status)); err != nil {
		return fmt.Errorf("issue %s: set status %s: %w", rec.ID, status, err)
	}
	rec.Status = status
	return nil
}

func (o *Orchestrator) completePhase(rec *issue.Record, phase, agentName string, status issue.Status, report *Report) {
	o.event(rec.ID, phase, agentName, "phase_done", string(status))
	o.logf("  %s: done, status %s\n", phase, status)
	appendAudit(report, phase, status)
}

func appendAudit(report *Report, phase string, status issue.Status) {
	report.Audit = append(report.Audit, AuditEntry{
		Phase:     phase,
		Timestamp: time.Now(),
		Status:    status,
	})
}

func preview(output string) string {
	if len(output) > 500 {
		return output[:500] + "... (truncated)"
	}
	return output
}
