package workflow

import (
	"errors"
	"fmt"

	"fixflow/internal/artifact"
	"fixflow/internal/issue"
)

// ArchiveManager moves terminal issues out of the active root. The move
// is a single directory rename, so an issue is always wholly active or
// wholly archived, never split between the two.
type ArchiveManager struct {
	store *artifact.Store
}

// NewArchiveManager creates an archive manager over the artifact store.
func NewArchiveManager(st *artifact.Store) *ArchiveManager {
	return &ArchiveManager{store: st}
}

// Archive moves an issue's directory into the archive root. The issue
// must be at a terminal status (RESOLVED or REJECTED). Archiving an
// already-archived issue is a no-op; an archive entry that exists while
// the active directory still does is corruption and is reported as such.
func (m *ArchiveManager) Archive(issueID string) error {
	if !m.store.Exists(issueID) {
		if m.store.Archived(issueID) {
			return nil
		}
		return fmt.Errorf("issue %s: %w", issueID, artifact.ErrNotFound)
	}

	rec, err := issue.Load(m.store, issueID)
	if err != nil {
		return err
	}
	if !rec.Status.Terminal() {
		return fmt.Errorf("issue %s: cannot archive at status %s: %w",
			issueID, rec.Status, issue.ErrPreconditionFailed)
	}

	err = m.store.Move(issueID, m.store.ActiveRoot(), m.store.ArchiveRoot())
	if err != nil && errors.Is(err, artifact.ErrAlreadyExists) {
		return fmt.Errorf("issue %s exists in both active and archive roots, refusing to clobber: %w",
			issueID, err)
	}
	return err
}

// Unarchive moves an archived issue back into the active root. Used to
// reopen resolved work; the status header is left as-is so the caller
// decides what reopening means.
func (m *ArchiveManager) Unarchive(issueID string) error {
	if !m.store.Archived(issueID) {
		return fmt.Errorf("issue %s: %w", issueID, artifact.ErrNotFound)
	}
	return m.store.Move(issueID, m.store.ArchiveRoot(), m.store.ActiveRoot())
}
