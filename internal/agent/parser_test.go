package agent

import (
	"testing"
)

// --- ParseOutcome tests ---

func TestParseOutcome_Confirmed(t *testing.T) {
	output := "Reproduced the crash.\n\nOUTCOME: CONFIRMED\nSTRUCTURAL-TEST: pkg/foo_test.go:TestCrash\n"
	tag, reason := ParseOutcome(output)
	if tag != OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %q", tag)
	}
	if reason != "" {
		t.Fatalf("expected empty reason, got %q", reason)
	}
}

func TestParseOutcome_RejectedWithReason(t *testing.T) {
	output := "Tried three inputs, no crash.\n\nOUTCOME: REJECTED - not reproducible on main\n"
	tag, reason := ParseOutcome(output)
	if tag != OutcomeRejected {
		t.Fatalf("expected rejected, got %q", tag)
	}
	if reason != "not reproducible on main" {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestParseOutcome_CaseInsensitive(t *testing.T) {
	tag, _ := ParseOutcome("outcome: confirmed")
	if tag != OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %q", tag)
	}
}

func TestParseOutcome_Missing(t *testing.T) {
	tag, _ := ParseOutcome("I looked at the issue and it seems plausible.")
	if tag != "" {
		t.Fatalf("expected no outcome, got %q", tag)
	}
}

func TestParseOutcome_UnknownVerdictIgnored(t *testing.T) {
	tag, _ := ParseOutcome("OUTCOME: MAYBE\n")
	if tag != "" {
		t.Fatalf("expected no outcome for unknown verdict, got %q", tag)
	}
}

// --- ParseStructuralTests / ParseDispositions tests ---

func TestParseStructuralTests(t *testing.T) {
	output := `Validation complete.

OUTCOME: CONFIRMED
STRUCTURAL-TEST: internal/foo/bar_test.go:TestOffByOne
STRUCTURAL-TEST: internal/foo/baz_test.go:TestEmptyInput
STRUCTURAL-TEST:
`
	tests := ParseStructuralTests(output)
	if len(tests) != 2 {
		t.Fatalf("expected 2 tests (empty marker skipped), got %v", tests)
	}
	if tests[0] != "internal/foo/bar_test.go:TestOffByOne" {
		t.Fatalf("unexpected first test: %q", tests[0])
	}
}

func TestParseDispositions(t *testing.T) {
	output := `Fixed the nil check.

CONVERTED: TestOffByOne (now a permanent behavioral test)
DELETED: TestEmptyInput (no longer needed)
`
	converted, deleted := ParseDispositions(output)
	if len(converted) != 1 || len(deleted) != 1 {
		t.Fatalf("got converted=%v deleted=%v", converted, deleted)
	}
}

func TestParseDispositions_None(t *testing.T) {
	converted, deleted := ParseDispositions("Just fixed the code.")
	if len(converted) != 0 || len(deleted) != 0 {
		t.Fatalf("expected none, got %v / %v", converted, deleted)
	}
}

// --- ParseRefactorings tests ---

func TestParseRefactorings_NumberedAndBulleted(t *testing.T) {
	output := `All checks green.

REFACTORING OPPORTUNITIES:
1. Extract parser helpers - duplicated in three files (priority: high)
2. Split the config loader - 400 lines (priority: medium)
- Rename internal fields - misleading names (priority: low)
`
	refs := ParseRefactorings(output)
	if len(refs) != 3 {
		t.Fatalf("expected 3 refactorings, got %d: %v", len(refs), refs)
	}
	if refs[0].Title != "Extract parser helpers" || refs[0].Priority != "high" {
		t.Fatalf("unexpected first entry: %+v", refs[0])
	}
	if refs[0].Note != "duplicated in three files" {
		t.Fatalf("note not extracted: %+v", refs[0])
	}
	if refs[2].Priority != "low" {
		t.Fatalf("unexpected third entry: %+v", refs[2])
	}
}

func TestParseRefactorings_DefaultPriorityLow(t *testing.T) {
	output := "REFACTORING OPPORTUNITIES:\n1. Tidy up imports\n"
	refs := ParseRefactorings(output)
	if len(refs) != 1 || refs[0].Priority != "low" {
		t.Fatalf("expected one low-priority entry, got %v", refs)
	}
}

func TestParseRefactorings_SectionEndsAtProse(t *testing.T) {
	output := `REFACTORING OPPORTUNITIES:
1. Real entry (priority: high)

That concludes the report.
2. Not an entry, section already closed
`
	refs := ParseRefactorings(output)
	if len(refs) != 1 {
		t.Fatalf("expected section to end at prose, got %v", refs)
	}
}

func TestParseRefactorings_NoSection(t *testing.T) {
	if refs := ParseRefactorings("Everything is fine."); len(refs) != 0 {
		t.Fatalf("expected none, got %v", refs)
	}
}
