// Package store persists the workflow journal in SQLite: one row per
// orchestrator run, one row per event. Artifacts themselves live on the
// filesystem; the journal only records what happened and when.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides access to the fixflow journal database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		issue_id       TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'running',
		max_fix_loops  INTEGER NOT NULL DEFAULT 10,
		started_at     DATETIME NOT NULL,
		ended_at       DATETIME
	);

	CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		issue_id    TEXT NOT NULL,
		phase       TEXT DEFAULT '',
		agent       TEXT DEFAULT '',
		event_type  TEXT NOT NULL,
		content     TEXT DEFAULT '',
		timestamp   DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_issue ON events(issue_id);
	CREATE INDEX IF NOT EXISTS idx_runs_issue ON runs(issue_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartRun records the beginning of an orchestrator run on an issue.
func (s *Store) StartRun(issueID string, maxFixLoops int) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (issue_id, status, max_fix_loops, started_at) VALUES (?, ?, ?, ?)`,
		issueID, RunRunning, maxFixLoops, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return res.LastInsertId()
}

// EndRun marks a run as finished with the given status.
func (s *Store) EndRun(runID int64, status RunStatus) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, ended_at = ? WHERE id = ?`,
		status, time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	return nil
}

// LastRunStatus returns the status of the most recent run for an issue,
// or "" if the issue has never been run.
func (s *Store) LastRunStatus(issueID string) (RunStatus, error) {
	var status RunStatus
	err := s.db.QueryRow(
		`SELECT status FROM runs WHERE issue_id = ? ORDER BY id DESC LIMIT 1`,
		issueID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last run status: %w", err)
	}
	return status, nil
}

// LastEndedRunStatus returns the status of the most recent finished run
// for an issue, skipping runs still in flight. "" if none has finished.
func (s *Store) LastEndedRunStatus(issueID string) (RunStatus, error) {
	var status RunStatus
	err := s.db.QueryRow(
		`SELECT status FROM runs WHERE issue_id = ? AND status != ? ORDER BY id DESC LIMIT 1`,
		issueID, RunRunning,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last ended run status: %w", err)
	}
	return status, nil
}

// ListInterruptedRuns returns runs still marked running — usually the
// trace of a crash or Ctrl+C.
func (s *Store) ListInterruptedRuns() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, issue_id, status, max_fix_loops, started_at FROM runs WHERE status = ? ORDER BY id`,
		RunRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("list interrupted runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.IssueID, &r.Status, &r.MaxFixLoops, &r.StartedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AddEvent appends a journal entry for an issue.
func (s *Store) AddEvent(issueID, phase, agent, eventType, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO events (issue_id, phase, agent, event_type, content, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		issueID, phase, agent, eventType, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// GetEvents returns all journal entries for an issue, oldest first.
func (s *Store) GetEvents(issueID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, issue_id, phase, agent, event_type, content, timestamp FROM events WHERE issue_id = ? ORDER BY id`,
		issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.IssueID, &e.Phase, &e.Agent, &e.Type, &e.Content, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
