package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock holds an exclusive flock on an issue so two fixflow processes
// never drive the same issue at once.
type Lock struct {
	file *os.File
}

// LockIssue acquires the per-issue lock. Lock files live under
// <active>/.locks/ rather than inside the issue directory, so archiving
// moves only the artifact files. The call blocks until the lock is free,
// matching the strictly-sequential-per-issue execution model.
func (s *Store) LockIssue(issueID string) (*Lock, error) {
	lockDir := filepath.Join(s.active, ".locks")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("lock %s: %w", issueID, err)
	}

	path := filepath.Join(lockDir, issueID+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", issueID, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", issueID, err)
	}

	return &Lock{file: f}, nil
}

// Release drops the flock. The lock file stays behind for reuse:
// unlinking it would let a waiter blocked in flock acquire the orphaned
// inode while a later LockIssue creates a fresh file at the same path,
// giving two holders at once.
func (l *Lock) Release() {
	l.file.Close()
}
