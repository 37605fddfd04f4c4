package agent

import (
	"path/filepath"
	"strings"
	"testing"

	"fixflow/internal/artifact"
)

func newPromptStore(t *testing.T) *artifact.Store {
	t.Helper()
	dir := t.TempDir()
	return artifact.New(filepath.Join(dir, "issues"), filepath.Join(dir, "archive"))
}

func TestBuild_IncludesArtifactTrail(t *testing.T) {
	st := newPromptStore(t)
	st.Write("iss-1", artifact.Problem, "the problem text")
	st.Write("iss-1", artifact.Validation, "the validation text")

	b := NewPromptBuilder(st)
	prompt := b.Build("iss-1", "propose", "")

	if !strings.Contains(prompt, "the problem text") || !strings.Contains(prompt, "the validation text") {
		t.Fatalf("artifact content missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Solution Architect") {
		t.Fatalf("role header missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "iss-1") {
		t.Fatalf("issue id missing:\n%s", prompt)
	}
}

func TestBuild_SkipsAbsentArtifacts(t *testing.T) {
	st := newPromptStore(t)
	st.Write("iss-1", artifact.Problem, "only the problem")

	b := NewPromptBuilder(st)
	prompt := b.Build("iss-1", "propose", "")

	if strings.Contains(prompt, "validation.md") {
		t.Fatalf("absent artifacts must be skipped, not referenced:\n%s", prompt)
	}
}

func TestBuild_ExtraSection(t *testing.T) {
	st := newPromptStore(t)
	st.Write("iss-1", artifact.Problem, "p")
	st.Write("iss-1", artifact.Implementation, "i")

	b := NewPromptBuilder(st)
	prompt := b.Build("iss-1", "fix", "## Failing check: tests\n\n```\n--- FAIL: TestX\n```")

	if !strings.Contains(prompt, "--- FAIL: TestX") {
		t.Fatalf("extra material missing:\n%s", prompt)
	}
	// The marker protocol instructions close the prompt.
	if !strings.Contains(prompt, "CONVERTED:") {
		t.Fatalf("fix-phase instructions missing:\n%s", prompt)
	}
}

func TestBuild_ValidateInstructionsCarryMarkers(t *testing.T) {
	st := newPromptStore(t)
	st.Write("iss-1", artifact.Problem, "p")

	prompt := NewPromptBuilder(st).Build("iss-1", "validate", "")
	for _, marker := range []string{"OUTCOME: CONFIRMED", "OUTCOME: REJECTED", "STRUCTURAL-TEST:"} {
		if !strings.Contains(prompt, marker) {
			t.Fatalf("marker %q missing from validate instructions:\n%s", marker, prompt)
		}
	}
}
