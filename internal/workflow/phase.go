package workflow

import (
	"fmt"

	"fixflow/internal/artifact"
	"fixflow/internal/issue"
)

// Phase names, in workflow order.
const (
	PhaseValidate  = "validate"
	PhasePropose   = "propose"
	PhaseReview    = "review"
	PhaseImplement = "implement"
	PhaseTestFix   = "testfix"
	PhaseDocument  = "document"
)

// Phase describes one step of the workflow: the agent role that does
// the reasoning, the artifacts that must exist on entry, the artifact
// it produces, and the status a success moves the issue to.
type Phase struct {
	Name     string
	Role     string   // agent role from config
	Requires []string // artifact preconditions
	Produces string   // artifact written on success
	Next     issue.Status
}

var phaseTable = map[string]Phase{
	PhaseValidate: {
		Name:     PhaseValidate,
		Role:     "validator",
		Requires: []string{artifact.Problem},
		Produces: artifact.Validation,
		Next:     issue.StatusConfirmed,
	},
	PhasePropose: {
		Name:     PhasePropose,
		Role:     "architect",
		Requires: []string{artifact.Validation},
		Produces: artifact.Proposals,
		Next:     issue.StatusConfirmed, // proposals recorded; status unchanged
	},
	PhaseReview: {
		Name:     PhaseReview,
		Role:     "reviewer",
		Requires: []string{artifact.Proposals},
		Produces: artifact.Review,
		Next:     issue.StatusReviewed,
	},
	PhaseImplement: {
		Name:     PhaseImplement,
		Role:     "coder",
		Requires: []string{artifact.Review},
		Produces: artifact.Implementation,
		Next:     issue.StatusImplemented,
	},
	PhaseTestFix: {
		Name:     PhaseTestFix,
		Role:     "fixer",
		Requires: []string{artifact.Implementation},
		Produces: artifact.Testing,
		Next:     issue.StatusTested,
	},
	PhaseDocument: {
		Name:     PhaseDocument,
		Role:     "writer",
		Requires: []string{artifact.Testing},
		Produces: artifact.Solution,
		Next:     issue.StatusResolved,
	},
}

// nextPhase picks the phase to execute for the issue's current state.
// Returns nil when the issue is terminal and nothing remains but
// archival. State is derived from status plus which artifacts exist,
// which is what makes an interrupted run resumable: the first phase
// whose artifact is missing runs next.
func nextPhase(rec *issue.Record) (*Phase, error) {
	pick := func(name string) (*Phase, error) {
		p := phaseTable[name]
		return &p, nil
	}

	switch rec.Status {
	case issue.StatusOpen:
		return pick(PhaseValidate)
	case issue.StatusConfirmed:
		if !rec.HasArtifact(artifact.Proposals) {
			return pick(PhasePropose)
		}
		return pick(PhaseReview)
	case issue.StatusReviewed:
		return pick(PhaseImplement)
	case issue.StatusImplemented:
		return pick(PhaseTestFix)
	case issue.StatusTested:
		return pick(PhaseDocument)
	case issue.StatusRejected, issue.StatusResolved:
		return nil, nil
	default:
		return nil, fmt.Errorf("issue %s: no phase for status %s: %w", rec.ID, rec.Status, issue.ErrMalformed)
	}
}
