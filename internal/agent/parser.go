package agent

import (
	"regexp"
	"strings"
)

// Outcome tags communicated by the validate phase.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeRejected  = "rejected"
)

// Refactoring is a refactoring opportunity extracted from a testing
// report. HIGH and MEDIUM entries become follow-up issues.
type Refactoring struct {
	Title    string
	Note     string
	Priority string // high, medium, low
}

// ParseOutcome extracts the phase outcome tag from agent output.
// Expected format, on its own line:
//
//	OUTCOME: CONFIRMED
//	OUTCOME: REJECTED — not reproducible on main
//
// Returns the normalized tag ("confirmed"/"rejected") and any trailing
// reason text. An empty tag means the agent declared no outcome.
func ParseOutcome(output string) (tag, reason string) {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if !strings.HasPrefix(upper, "OUTCOME:") {
			continue
		}
		rest := strings.TrimSpace(trimmed[8:])
		restUpper := strings.ToUpper(rest)
		switch {
		case strings.HasPrefix(restUpper, "CONFIRMED"):
			return OutcomeConfirmed, strings.TrimLeft(rest[len("CONFIRMED"):], " -—:")
		case strings.HasPrefix(restUpper, "REJECTED"):
			return OutcomeRejected, strings.TrimLeft(rest[len("REJECTED"):], " -—:")
		}
	}
	return "", ""
}

// ParseStructuralTests extracts the provisional validation tests an
// agent registered. Expected format, one per line:
//
//	STRUCTURAL-TEST: internal/foo/bar_test.go:TestOffByOne
func ParseStructuralTests(output string) []string {
	return markerLines(output, "STRUCTURAL-TEST:")
}

// ParseDispositions extracts structural-test bookkeeping from fix-phase
// output: CONVERTED: lines for tests promoted to the permanent suite,
// DELETED: lines for tests removed.
func ParseDispositions(output string) (converted, deleted []string) {
	return markerLines(output, "CONVERTED:"), markerLines(output, "DELETED:")
}

func markerLines(output, marker string) []string {
	var values []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(trimmed), marker) {
			if v := strings.TrimSpace(trimmed[len(marker):]); v != "" {
				values = append(values, v)
			}
		}
	}
	return values
}

// ParseRefactorings extracts refactoring opportunities from a testing
// report. Expected format:
//
//	REFACTORING OPPORTUNITIES:
//	1. Extract parser helpers - duplicated in three files (priority: high)
//	- Rename config fields - misleading names (priority: low)
//
// Entries without a priority default to low so they never spawn
// follow-up issues by accident.
func ParseRefactorings(output string) []Refactoring {
	var refs []Refactoring

	itemRe := regexp.MustCompile(`^(?:\d+[\.\)]\s*|[-*]\s+)(.+)`)
	priorityRe := regexp.MustCompile(`\(priority:\s*(high|medium|low)\)`)

	inSection := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(strings.ToUpper(trimmed), "REFACTORING OPPORTUNITIES:") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if trimmed == "" {
			continue
		}

		match := itemRe.FindStringSubmatch(trimmed)
		if match == nil {
			// Non-list line ends the section.
			break
		}

		content := match[1]

		priority := "low"
		if priMatch := priorityRe.FindStringSubmatch(content); priMatch != nil {
			priority = priMatch[1]
			content = strings.TrimSpace(priorityRe.ReplaceAllString(content, ""))
		}

		title := content
		note := ""
		if idx := strings.Index(content, " - "); idx > 0 {
			title = strings.TrimSpace(content[:idx])
			note = strings.TrimSpace(content[idx+3:])
		}

		title = strings.TrimSpace(strings.Trim(title, "[]**`"))
		if title != "" {
			refs = append(refs, Refactoring{Title: title, Note: note, Priority: priority})
		}
	}

	return refs
}
