package store

import "time"

// RunStatus tracks the lifecycle of one orchestrator run over one issue.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunExhausted   RunStatus = "exhausted" // test+fix retry bound hit
	RunInterrupted RunStatus = "interrupted"
)

// Run records one `fixflow run` execution against an issue, so an
// exhausted test+fix loop is visible to the next invocation and crash
// recovery can spot interrupted work.
type Run struct {
	ID          int64     `json:"id"`
	IssueID     string    `json:"issue_id"`
	Status      RunStatus `json:"status"`
	MaxFixLoops int       `json:"max_fix_loops"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
}

// Event is one journal entry: a phase transition, an agent output
// preview, or a check report. Together they form the observable history
// behind `fixflow log`.
type Event struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Phase     string    `json:"phase,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Type      string    `json:"event_type"` // phase_done, status, agent_output, check_failed, fix_cycle, rejected, archived, followup, exhausted
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
