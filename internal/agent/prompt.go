package agent

import (
	"fmt"
	"strings"

	"fixflow/internal/artifact"
)

// PromptBuilder composes the full prompt for a phase agent from the
// issue's artifact trail. Think of it as assembling the case file the
// agent reads before starting work: the problem report plus every
// document earlier phases produced.
type PromptBuilder struct {
	store *artifact.Store
}

// NewPromptBuilder creates a prompt builder over the artifact store.
func NewPromptBuilder(st *artifact.Store) *PromptBuilder {
	return &PromptBuilder{store: st}
}

// contextArtifacts maps each phase to the artifacts it reads.
var contextArtifacts = map[string][]string{
	"validate":  {artifact.Problem},
	"propose":   {artifact.Problem, artifact.Validation},
	"review":    {artifact.Problem, artifact.Validation, artifact.Proposals},
	"implement": {artifact.Problem, artifact.Validation, artifact.Review},
	"fix":       {artifact.Problem, artifact.Validation, artifact.Implementation},
	"document":  {artifact.Problem, artifact.Validation, artifact.Review, artifact.Implementation, artifact.Testing},
}

// Build creates the prompt for a phase. The extra argument carries
// phase-specific material, such as the failing check report for the fix
// phase; pass "" when there is none.
func (b *PromptBuilder) Build(issueID, phase, extra string) string {
	var parts []string

	parts = append(parts, roleHeader(phase))
	parts = append(parts, fmt.Sprintf("## Issue: %s", issueID))

	for _, name := range contextArtifacts[phase] {
		content, ok := b.store.Read(issueID, name)
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("## Document: %s.md\n\n%s", name, strings.TrimSpace(content)))
	}

	if extra != "" {
		parts = append(parts, extra)
	}

	parts = append(parts, phaseInstructions(phase))

	return strings.Join(parts, "\n\n")
}

func roleHeader(phase string) string {
	switch phase {
	case "validate":
		return "# You are a Problem Validator\nYour job is to reproduce the reported problem and judge whether it is real. Write validation tests that prove the defect or missing capability."
	case "propose":
		return "# You are a Solution Architect\nYour job is to propose two or three candidate solutions for the confirmed problem, with trade-offs."
	case "review":
		return "# You are a Solution Reviewer\nYour job is to evaluate the proposed solutions and pick one, explaining why. Focus on correctness and maintenance cost, not style."
	case "implement":
		return "# You are a Software Developer\nYour job is to implement the chosen solution. Write clean, tested code. If something is unclear, say so explicitly."
	case "fix":
		return "# You are a Software Developer\nThe checks below failed after your implementation. Decide whether the test or the implementation is wrong, and fix the wrong one."
	case "document":
		return "# You are a Technical Writer\nYour job is to summarize how this issue was resolved, for the permanent record."
	default:
		return fmt.Sprintf("# You are working on the %s phase", phase)
	}
}

func phaseInstructions(phase string) string {
	switch phase {
	case "validate":
		return `## Response Format
Write the validation report, then end with the outcome on its own line:

OUTCOME: CONFIRMED
or
OUTCOME: REJECTED - [reason: not a bug / not reproducible]

For every provisional test you created to prove the problem, add a line:
STRUCTURAL-TEST: [path or test name]`

	case "propose":
		return `## Response Format
Present each candidate solution under its own heading with the approach,
affected components, and trade-offs. Do not pick a winner — that is the
reviewer's job.`

	case "review":
		return `## Response Format
State the chosen proposal and the reasons. List any conditions the
implementation must satisfy.`

	case "implement":
		return `## Instructions
- Implement the solution the review selected, nothing else
- Make the structural validation tests pass
- Summarize every file you changed and why`

	case "fix":
		return `## Response Format
Explain what was wrong and what you changed. For structural validation
tests you dealt with, add one line each:

CONVERTED: [test] (now a permanent behavioral test)
DELETED: [test] (no longer needed)`

	case "document":
		return `## Response Format
Write the solution summary. If the testing report suggested follow-up
work, restate it under:

REFACTORING OPPORTUNITIES:
1. [title] - [note] (priority: high/medium/low)`

	default:
		return ""
	}
}
