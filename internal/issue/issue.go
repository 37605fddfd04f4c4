// Package issue defines the issue record: its status, kind, and the set
// of artifacts present on disk. State is reconstructed entirely from the
// issue directory, which is what makes interrupted runs resumable.
package issue

import (
	"errors"
	"fmt"
	"strings"

	"fixflow/internal/artifact"
)

// Status is the issue's position in the workflow. It only moves forward,
// except for the OPEN -> REJECTED short-circuit.
type Status string

const (
	StatusOpen        Status = "OPEN"
	StatusConfirmed   Status = "CONFIRMED"
	StatusRejected    Status = "REJECTED"
	StatusReviewed    Status = "REVIEWED"
	StatusImplemented Status = "IMPLEMENTED"
	StatusTested      Status = "TESTED"
	StatusResolved    Status = "RESOLVED"
)

// Kind classifies the issue at creation time and never changes.
type Kind string

const (
	KindBug         Kind = "BUG"
	KindFeature     Kind = "FEATURE"
	KindPerformance Kind = "PERFORMANCE"
)

var (
	// ErrMalformed means the problem document's status/type header is
	// missing or unrecognized. Fatal; nothing is changed.
	ErrMalformed = errors.New("malformed issue")

	// ErrPreconditionFailed means a phase was entered without the
	// artifacts or status it requires.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// ValidStatus reports whether s is a known workflow status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusConfirmed, StatusRejected, StatusReviewed,
		StatusImplemented, StatusTested, StatusResolved:
		return true
	}
	return false
}

// ValidKind reports whether k is a known issue kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindBug, KindFeature, KindPerformance:
		return true
	}
	return false
}

// Terminal reports whether the status ends the workflow.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Record is the in-memory view of one issue.
type Record struct {
	ID        string
	Status    Status
	Kind      Kind
	Artifacts map[string]bool
}

// Load reconstructs a record from the store: status and kind come from
// the problem header, the artifact set from which files exist.
func Load(st *artifact.Store, issueID string) (*Record, error) {
	problem, ok := st.Read(issueID, artifact.Problem)
	if !ok {
		return nil, fmt.Errorf("issue %s: no problem document: %w", issueID, ErrMalformed)
	}

	status, kind, err := ParseHeader(problem)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", issueID, err)
	}

	return &Record{
		ID:        issueID,
		Status:    status,
		Kind:      kind,
		Artifacts: st.Artifacts(issueID),
	}, nil
}

// HasArtifact reports whether the named artifact exists for this issue.
func (r *Record) HasArtifact(name string) bool {
	return r.Artifacts[name]
}

// RequireArtifacts gates phase entry: it fails with ErrPreconditionFailed
// listing every missing artifact.
func (r *Record) RequireArtifacts(names ...string) error {
	var missing []string
	for _, name := range names {
		if !r.Artifacts[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("issue %s: missing %s: %w",
			r.ID, strings.Join(missing, ", "), ErrPreconditionFailed)
	}
	return nil
}

// ParseHeader extracts the status and type lines from a problem document.
// Expected near the top of the file:
//
//	**Status**: OPEN
//	**Type**: BUG
func ParseHeader(content string) (Status, Kind, error) {
	var status Status
	var kind Kind

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if v, ok := headerValue(trimmed, "Status"); ok {
			status = Status(v)
		}
		if v, ok := headerValue(trimmed, "Type"); ok {
			kind = Kind(v)
		}
	}

	if status == "" || kind == "" {
		return "", "", fmt.Errorf("status/type header missing: %w", ErrMalformed)
	}
	if !ValidStatus(status) {
		return "", "", fmt.Errorf("unknown status %q: %w", status, ErrMalformed)
	}
	if !ValidKind(kind) {
		return "", "", fmt.Errorf("unknown type %q: %w", kind, ErrMalformed)
	}
	return status, kind, nil
}

// headerValue matches both "**Status**: X" and the plainer "Status: X".
func headerValue(line, field string) (string, bool) {
	for _, prefix := range []string{"**" + field + "**:", field + ":"} {
		if strings.HasPrefix(line, prefix) {
			return strings.ToUpper(strings.TrimSpace(line[len(prefix):])), true
		}
	}
	return "", false
}

// WithStatus rewrites the status header line in a problem document,
// leaving the rest of the content untouched.
func WithStatus(content string, status Status) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if _, ok := headerValue(trimmed, "Status"); ok {
			lines[i] = "**Status**: " + string(status)
			break
		}
	}
	return strings.Join(lines, "\n")
}

// NewProblem composes a fresh problem document for an issue.
func NewProblem(title string, kind Kind, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Status**: %s\n", StatusOpen)
	fmt.Fprintf(&b, "**Type**: %s\n", kind)
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
