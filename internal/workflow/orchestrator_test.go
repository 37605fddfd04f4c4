package workflow

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"fixflow/internal/agent"
	"fixflow/internal/artifact"
	"fixflow/internal/checker"
	"fixflow/internal/issue"
)

// --- Stubs ---

// stubAgent serves scripted outputs keyed by prompt phase. The last
// output for a phase repeats if the phase runs again.
type stubAgent struct {
	mu      sync.Mutex
	outputs map[string][]string
	calls   map[string]int
}

func newStubAgent() *stubAgent {
	return &stubAgent{
		outputs: map[string][]string{
			"validate":  {"Reproduced it.\n\nOUTCOME: CONFIRMED\nSTRUCTURAL-TEST: TestRepro\n"},
			"propose":   {"## Option A\n\nPatch the parser.\n\n## Option B\n\nRewrite the loader.\n"},
			"review":    {"Option A chosen: smaller blast radius.\n"},
			"implement": {"Patched internal/parser.go, updated two call sites.\n"},
			"fix":       {"Implementation was wrong, fixed.\n\nCONVERTED: TestRepro\n"},
			"document":  {"# Solution\n\nPatched the parser per option A.\n"},
		},
		calls: map[string]int{},
	}
}

func (s *stubAgent) Run(ctx context.Context, req agent.Request) (*agent.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.Phase]++

	outs := s.outputs[req.Phase]
	if len(outs) == 0 {
		return &agent.Response{Output: "(no scripted output)"}, nil
	}
	out := outs[0]
	if len(outs) > 1 {
		s.outputs[req.Phase] = outs[1:]
	}
	return &agent.Response{Output: out}, nil
}

func (s *stubAgent) Name() string { return "stub" }
func (s *stubAgent) Mode() string { return "cli" }

func (s *stubAgent) callCount(phase string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[phase]
}

// stubChecker passes lint and typecheck, and serves a scripted sequence
// of test results. The last result repeats.
type stubChecker struct {
	testResults []checker.Result
	idx         int
}

func (c *stubChecker) RunLint(ctx context.Context) (checker.Result, error) {
	return checker.Result{Passed: true}, nil
}

func (c *stubChecker) RunTypeCheck(ctx context.Context) (checker.Result, error) {
	return checker.Result{Passed: true}, nil
}

func (c *stubChecker) RunTests(ctx context.Context) (checker.Result, error) {
	if len(c.testResults) == 0 {
		return checker.Result{Passed: true}, nil
	}
	res := c.testResults[c.idx]
	if c.idx < len(c.testResults)-1 {
		c.idx++
	}
	return res, nil
}

// stubCommitter records commit calls.
type stubCommitter struct {
	mu       sync.Mutex
	messages []string
}

func (c *stubCommitter) Commit(files []string, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return "deadbeefcafe", nil
}

// --- Helpers ---

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()
	dir := t.TempDir()
	return artifact.New(filepath.Join(dir, "issues"), filepath.Join(dir, "archive"))
}

func newIssue(t *testing.T, st *artifact.Store, id string) {
	t.Helper()
	if err := st.Write(id, artifact.Problem, issue.NewProblem("A real bug", issue.KindBug, "it crashes")); err != nil {
		t.Fatalf("create issue: %v", err)
	}
}

func newOrchestrator(st *artifact.Store, ag *stubAgent, chk checker.Checker, vc Committer, maxLoops int) *Orchestrator {
	resolver := func(role string) (string, agent.Runner, error) {
		return ag.Name(), ag, nil
	}
	return New(st, nil, chk, resolver, vc, Options{
		MaxFixLoops: maxLoops,
		Out:         io.Discard,
	})
}

func archivedFiles(t *testing.T, st *artifact.Store, id string) []string {
	t.Helper()
	entries, err := os.ReadDir(st.ArchiveDir(id))
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// --- Happy path ---

func TestRun_HappyPathWithOneFixCycle(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	ag := newStubAgent()
	chk := &stubChecker{testResults: []checker.Result{
		{Passed: false, Report: "--- FAIL: TestRepro"},
		{Passed: true},
	}}
	vc := &stubCommitter{}
	orch := newOrchestrator(st, ag, chk, vc, 5)

	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if report.Final != issue.StatusResolved {
		t.Fatalf("expected RESOLVED, got %s", report.Final)
	}
	if !report.Archived {
		t.Fatal("expected issue archived")
	}
	if report.FixCycles != 1 {
		t.Fatalf("expected 1 fix cycle, got %d", report.FixCycles)
	}

	// Active root is empty, archive holds the full trail.
	if st.Exists("iss-1") {
		t.Fatal("issue still active after completion")
	}
	files := archivedFiles(t, st, "iss-1")
	if len(files) != len(artifact.Names) {
		t.Fatalf("expected all %d artifacts archived, got %v", len(artifact.Names), files)
	}

	// Each agent phase ran exactly once.
	for _, phase := range []string{"validate", "propose", "review", "implement", "document"} {
		if n := ag.callCount(phase); n != 1 {
			t.Fatalf("phase %s ran %d times", phase, n)
		}
	}
	if n := ag.callCount("fix"); n != 1 {
		t.Fatalf("fixer ran %d times", n)
	}

	// Testing report records the loop and the bookkeeping.
	testReport, _ := st.ReadArchived("iss-1", artifact.Testing)
	if !strings.Contains(testReport, "**Fix cycles**: 1") {
		t.Fatalf("fix cycle count missing: %q", testReport)
	}
	if !strings.Contains(testReport, "CONVERTED: TestRepro") {
		t.Fatalf("structural disposition missing: %q", testReport)
	}

	// One commit at the very end.
	if len(vc.messages) != 1 {
		t.Fatalf("expected 1 commit, got %v", vc.messages)
	}
	if report.CommitHash != "deadbeefcafe" {
		t.Fatalf("commit hash not reported: %q", report.CommitHash)
	}
}

func TestRun_StatusMovesForwardOnly(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	orch := newOrchestrator(st, newStubAgent(), &stubChecker{}, nil, 5)
	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rank := map[issue.Status]int{
		issue.StatusOpen: 0, issue.StatusConfirmed: 1, issue.StatusReviewed: 2,
		issue.StatusImplemented: 3, issue.StatusTested: 4, issue.StatusResolved: 5,
	}
	last := -1
	for _, entry := range report.Audit {
		r, ok := rank[entry.Status]
		if !ok {
			t.Fatalf("unexpected status in audit: %s", entry.Status)
		}
		if r < last {
			t.Fatalf("status moved backwards: %v", report.Audit)
		}
		last = r
	}
}

// --- Rejection short-circuit ---

func TestRun_RejectionShortCircuit(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	ag := newStubAgent()
	ag.outputs["validate"] = []string{"No crash on any input.\n\nOUTCOME: REJECTED - not reproducible\n"}
	vc := &stubCommitter{}
	orch := newOrchestrator(st, ag, &stubChecker{}, vc, 5)

	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if report.Final != issue.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", report.Final)
	}
	if !report.Archived {
		t.Fatal("expected rejected issue archived")
	}

	// Only validate ran; every later phase was skipped.
	for _, phase := range []string{"propose", "review", "implement", "fix", "document"} {
		if n := ag.callCount(phase); n != 0 {
			t.Fatalf("phase %s ran %d times after rejection", phase, n)
		}
	}

	// Exactly three artifacts archived: problem, validation, solution.
	files := archivedFiles(t, st, "iss-1")
	if len(files) != 3 {
		t.Fatalf("expected 3 archived artifacts, got %v", files)
	}

	solution, _ := st.ReadArchived("iss-1", artifact.Solution)
	if !strings.Contains(solution, "REJECTED") || !strings.Contains(solution, "not reproducible") {
		t.Fatalf("rejection record incomplete: %q", solution)
	}
}

func TestRun_ValidateWithoutOutcomeFails(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	ag := newStubAgent()
	ag.outputs["validate"] = []string{"I am not sure about this one."}
	orch := newOrchestrator(st, ag, &stubChecker{}, nil, 5)

	_, err := orch.Run(context.Background(), "iss-1")
	if err == nil {
		t.Fatal("expected error when agent declares no outcome")
	}

	// Nothing was written; a rerun starts validation from scratch.
	if _, ok := st.Read("iss-1", artifact.Validation); ok {
		t.Fatal("validation artifact written despite missing outcome")
	}
	rec, _ := issue.Load(st, "iss-1")
	if rec.Status != issue.StatusOpen {
		t.Fatalf("status moved without outcome: %s", rec.Status)
	}
}

// --- Test+fix exhaustion ---

func TestRun_TestFixExhausted(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	ag := newStubAgent()
	chk := &stubChecker{testResults: []checker.Result{
		{Passed: false, Report: "--- FAIL: TestRepro"},
	}}
	orch := newOrchestrator(st, ag, chk, nil, 2)

	_, err := orch.Run(context.Background(), "iss-1")
	if !errors.Is(err, ErrTestFixExhausted) {
		t.Fatalf("expected ErrTestFixExhausted, got %v", err)
	}

	// The fixer got exactly its budget, no more.
	if n := ag.callCount("fix"); n != 2 {
		t.Fatalf("fixer ran %d times with budget 2", n)
	}

	// No testing artifact, status parked at IMPLEMENTED, not archived.
	if _, ok := st.Read("iss-1", artifact.Testing); ok {
		t.Fatal("testing artifact written despite exhaustion")
	}
	rec, _ := issue.Load(st, "iss-1")
	if rec.Status != issue.StatusImplemented {
		t.Fatalf("expected IMPLEMENTED, got %s", rec.Status)
	}
	if st.Archived("iss-1") {
		t.Fatal("exhausted issue must not be archived")
	}
}

func TestRun_StructuralLeftoversConsumeFixCycles(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	ag := newStubAgent()
	// Checks pass immediately, but TestRepro is still provisional.
	ag.outputs["fix"] = []string{"Promoted the test.\n\nDELETED: TestRepro\n"}
	orch := newOrchestrator(st, ag, &stubChecker{}, nil, 5)

	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.FixCycles != 1 {
		t.Fatalf("expected 1 fix cycle for the structural leftover, got %d", report.FixCycles)
	}

	testReport, _ := st.ReadArchived("iss-1", artifact.Testing)
	if !strings.Contains(testReport, "DELETED: TestRepro") {
		t.Fatalf("disposition missing: %q", testReport)
	}
}

// --- Resume semantics ---

func TestRun_ResumeSkipsCompletedPhases(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	// Simulate a crash after validation was written but before the
	// status header was updated.
	st.Write("iss-1", artifact.Validation, "Looks real.\n\nOUTCOME: CONFIRMED\n")

	ag := newStubAgent()
	orch := newOrchestrator(st, ag, &stubChecker{}, nil, 5)

	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Final != issue.StatusResolved {
		t.Fatalf("expected RESOLVED, got %s", report.Final)
	}

	// The validator was never re-invoked; its artifact already existed.
	if n := ag.callCount("validate"); n != 0 {
		t.Fatalf("validate re-ran %d times on resume", n)
	}
	if n := ag.callCount("propose"); n != 1 {
		t.Fatalf("propose ran %d times", n)
	}
}

func TestRun_ResumeAfterRejectionCrash(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	// Crash window: validation recorded a rejection, nothing else happened.
	st.Write("iss-1", artifact.Validation, "OUTCOME: REJECTED - duplicate of iss-0\n")

	ag := newStubAgent()
	orch := newOrchestrator(st, ag, &stubChecker{}, nil, 5)

	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Final != issue.StatusRejected {
		t.Fatalf("expected REJECTED, got %s", report.Final)
	}
	if ag.callCount("validate") != 0 {
		t.Fatal("validator re-invoked despite recorded outcome")
	}
	if !st.Archived("iss-1") {
		t.Fatal("rejected issue not archived on resume")
	}
}

func TestRun_CompletedRunIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	ag := newStubAgent()
	orch := newOrchestrator(st, ag, &stubChecker{}, nil, 5)

	if _, err := orch.Run(context.Background(), "iss-1"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Second run: already archived, nothing to do, no agent calls.
	before := ag.callCount("validate") + ag.callCount("document")
	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !report.Archived {
		t.Fatal("expected archived report on rerun")
	}
	after := ag.callCount("validate") + ag.callCount("document")
	if before != after {
		t.Fatal("agents invoked on a completed issue")
	}
}

// --- Follow-up issues ---

func TestRun_FollowUpsFromRefactorings(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	ag := newStubAgent()
	chk := &stubChecker{testResults: []checker.Result{
		{Passed: false, Report: "--- FAIL: TestRepro"},
		{Passed: true},
	}}
	ag.outputs["fix"] = []string{`Fixed.

CONVERTED: TestRepro

REFACTORING OPPORTUNITIES:
1. Extract parser helpers - duplicated logic (priority: high)
2. Tidy imports - cosmetic (priority: low)
`}
	orch := newOrchestrator(st, ag, chk, nil, 5)

	report, err := orch.Run(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Only the high-priority entry spawns a follow-up.
	if len(report.FollowUps) != 1 {
		t.Fatalf("expected 1 follow-up, got %v", report.FollowUps)
	}
	id := report.FollowUps[0]
	if !strings.HasPrefix(id, "refactor-") {
		t.Fatalf("unexpected follow-up id: %s", id)
	}

	rec, err := issue.Load(st, id)
	if err != nil {
		t.Fatalf("follow-up not loadable: %v", err)
	}
	if rec.Status != issue.StatusOpen || rec.Kind != issue.KindFeature {
		t.Fatalf("follow-up has %s/%s", rec.Status, rec.Kind)
	}

	problem, _ := st.Read(id, artifact.Problem)
	if !strings.Contains(problem, "iss-1") {
		t.Fatalf("follow-up lacks back-reference: %q", problem)
	}

	// The solution document lists the follow-up.
	solution, _ := st.ReadArchived("iss-1", artifact.Solution)
	if !strings.Contains(solution, id) {
		t.Fatalf("solution does not mention follow-up: %q", solution)
	}
}

// --- Agent failure ---

func TestRun_AgentErrorLeavesStateUntouched(t *testing.T) {
	st := newTestStore(t)
	newIssue(t, st, "iss-1")

	resolver := func(role string) (string, agent.Runner, error) {
		return "", nil, errors.New("no agent for role")
	}
	orch := New(st, nil, &stubChecker{}, resolver, nil, Options{Out: io.Discard})

	_, err := orch.Run(context.Background(), "iss-1")
	if err == nil {
		t.Fatal("expected agent resolution error")
	}

	rec, _ := issue.Load(st, "iss-1")
	if rec.Status != issue.StatusOpen {
		t.Fatalf("status changed on agent failure: %s", rec.Status)
	}
	if rec.HasArtifact(artifact.Validation) {
		t.Fatal("artifact written on agent failure")
	}
}

// --- nextPhase ---

func TestNextPhase_ConfirmedBranchesOnProposals(t *testing.T) {
	rec := &issue.Record{ID: "iss-1", Status: issue.StatusConfirmed, Artifacts: map[string]bool{}}

	ph, err := nextPhase(rec)
	if err != nil || ph.Name != PhasePropose {
		t.Fatalf("expected propose, got %v, %v", ph, err)
	}

	rec.Artifacts[artifact.Proposals] = true
	ph, err = nextPhase(rec)
	if err != nil || ph.Name != PhaseReview {
		t.Fatalf("expected review, got %v, %v", ph, err)
	}
}

func TestNextPhase_TerminalReturnsNil(t *testing.T) {
	for _, s := range []issue.Status{issue.StatusResolved, issue.StatusRejected} {
		rec := &issue.Record{ID: "iss-1", Status: s, Artifacts: map[string]bool{}}
		ph, err := nextPhase(rec)
		if err != nil || ph != nil {
			t.Fatalf("expected nil phase for %s, got %v, %v", s, ph, err)
		}
	}
}

func TestNextPhase_UnknownStatus(t *testing.T) {
	rec := &issue.Record{ID: "iss-1", Status: "LIMBO", Artifacts: map[string]bool{}}
	_, err := nextPhase(rec)
	if !errors.Is(err, issue.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
