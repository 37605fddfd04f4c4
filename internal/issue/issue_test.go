package issue

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"fixflow/internal/artifact"
)

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()
	dir := t.TempDir()
	return artifact.New(filepath.Join(dir, "issues"), filepath.Join(dir, "archive"))
}

// --- ParseHeader tests ---

func TestParseHeader_Bold(t *testing.T) {
	status, kind, err := ParseHeader("# Title\n\n**Status**: OPEN\n**Type**: BUG\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusOpen || kind != KindBug {
		t.Fatalf("got %s/%s", status, kind)
	}
}

func TestParseHeader_Plain(t *testing.T) {
	status, kind, err := ParseHeader("Status: resolved\nType: performance\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusResolved || kind != KindPerformance {
		t.Fatalf("got %s/%s", status, kind)
	}
}

func TestParseHeader_Missing(t *testing.T) {
	_, _, err := ParseHeader("# Just a title\n\nSome prose.\n")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseHeader_UnknownStatus(t *testing.T) {
	_, _, err := ParseHeader("**Status**: PENDING\n**Type**: BUG\n")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseHeader_UnknownKind(t *testing.T) {
	_, _, err := ParseHeader("**Status**: OPEN\n**Type**: CHORE\n")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

// --- WithStatus tests ---

func TestWithStatus_RewritesHeaderOnly(t *testing.T) {
	doc := "# Title\n\n**Status**: OPEN\n**Type**: BUG\n\nThe word Status: appears in prose below the header.\n"
	got := WithStatus(doc, StatusConfirmed)

	if !strings.Contains(got, "**Status**: CONFIRMED") {
		t.Fatalf("status not rewritten: %q", got)
	}
	if !strings.Contains(got, "The word Status: appears in prose") {
		t.Fatalf("body disturbed: %q", got)
	}
	// Only the first header line changes.
	if strings.Count(got, "CONFIRMED") != 1 {
		t.Fatalf("expected exactly one CONFIRMED, got %q", got)
	}
}

func TestWithStatus_RoundTripsThroughParse(t *testing.T) {
	doc := NewProblem("Crash on empty input", KindBug, "details")
	updated := WithStatus(doc, StatusTested)

	status, kind, err := ParseHeader(updated)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if status != StatusTested || kind != KindBug {
		t.Fatalf("got %s/%s", status, kind)
	}
}

// --- Terminal tests ---

func TestTerminal(t *testing.T) {
	if !StatusResolved.Terminal() || !StatusRejected.Terminal() {
		t.Fatal("RESOLVED and REJECTED must be terminal")
	}
	for _, s := range []Status{StatusOpen, StatusConfirmed, StatusReviewed, StatusImplemented, StatusTested} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}

// --- Load tests ---

func TestLoad(t *testing.T) {
	st := newTestStore(t)
	st.Write("iss-1", artifact.Problem, NewProblem("A bug", KindBug, "body"))
	st.Write("iss-1", artifact.Validation, "confirmed")

	rec, err := Load(st, "iss-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.Status != StatusOpen || rec.Kind != KindBug {
		t.Fatalf("got %s/%s", rec.Status, rec.Kind)
	}
	if !rec.HasArtifact(artifact.Validation) {
		t.Fatal("validation artifact not reflected in record")
	}
	if rec.HasArtifact(artifact.Solution) {
		t.Fatal("phantom solution artifact")
	}
}

func TestLoad_NoProblem(t *testing.T) {
	st := newTestStore(t)
	_, err := Load(st, "ghost")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

// --- RequireArtifacts tests ---

func TestRequireArtifacts_ListsMissing(t *testing.T) {
	rec := &Record{
		ID:        "iss-1",
		Artifacts: map[string]bool{artifact.Problem: true},
	}

	if err := rec.RequireArtifacts(artifact.Problem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := rec.RequireArtifacts(artifact.Validation, artifact.Review)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), artifact.Validation) || !strings.Contains(err.Error(), artifact.Review) {
		t.Fatalf("error should name every missing artifact: %v", err)
	}
}
