// Package artifact implements the filesystem store for issue artifacts.
// Each issue owns a directory of markdown documents; every workflow phase
// writes exactly one of them. Writes are create-only so the audit trail
// can never be silently rewritten.
package artifact

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Artifact names, in phase order. Each maps to "<name>.md" inside the
// issue directory.
const (
	Problem        = "problem"
	Validation     = "validation"
	Proposals      = "proposals"
	Review         = "review"
	Implementation = "implementation"
	Testing        = "testing"
	Solution       = "solution"
)

// Names lists all artifact names in the order phases produce them.
var Names = []string{Problem, Validation, Proposals, Review, Implementation, Testing, Solution}

var (
	// ErrAlreadyExists is returned when a write would overwrite an
	// existing artifact, or a move would clobber an archive entry.
	ErrAlreadyExists = errors.New("artifact already exists")

	// ErrNotFound is returned when a move source is absent.
	ErrNotFound = errors.New("not found")
)

// Store reads and writes artifacts under an active root and an archive
// root. It tracks existence, not content semantics.
type Store struct {
	active  string
	archive string
}

// New creates a store over the given active and archive roots.
func New(activeRoot, archiveRoot string) *Store {
	return &Store{active: activeRoot, archive: archiveRoot}
}

// ActiveRoot returns the directory holding in-flight issues.
func (s *Store) ActiveRoot() string { return s.active }

// ArchiveRoot returns the directory holding archived issues.
func (s *Store) ArchiveRoot() string { return s.archive }

// IssueDir returns the active directory for an issue.
func (s *Store) IssueDir(issueID string) string {
	return filepath.Join(s.active, issueID)
}

// ArchiveDir returns the archived directory for an issue.
func (s *Store) ArchiveDir(issueID string) string {
	return filepath.Join(s.archive, issueID)
}

func artifactFile(root, issueID, name string) string {
	return filepath.Join(root, issueID, name+".md")
}

// Read returns an artifact's content from the active root. Absence is a
// valid query result, not an error.
func (s *Store) Read(issueID, name string) (string, bool) {
	return readFile(artifactFile(s.active, issueID, name))
}

// ReadArchived is Read against the archive root.
func (s *Store) ReadArchived(issueID, name string) (string, bool) {
	return readFile(artifactFile(s.archive, issueID, name))
}

func readFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Write creates an artifact. It fails with ErrAlreadyExists if the
// artifact is already present — phases never overwrite each other's
// output. Only the problem status header may be edited, via Overwrite.
func (s *Store) Write(issueID, name, content string) error {
	dir := s.IssueDir(issueID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create issue dir: %w", err)
	}

	path := artifactFile(s.active, issueID, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s/%s: %w", issueID, name, ErrAlreadyExists)
		}
		return fmt.Errorf("write %s/%s: %w", issueID, name, err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s/%s: %w", issueID, name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s/%s: %w", issueID, name, err)
	}
	return nil
}

// Overwrite replaces an existing artifact's content atomically. The only
// permitted target is the problem document, whose status header the
// terminal phases edit in place.
func (s *Store) Overwrite(issueID, name, content string) error {
	if name != Problem {
		return fmt.Errorf("artifact %q is immutable: %w", name, ErrAlreadyExists)
	}

	path := artifactFile(s.active, issueID, name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s/%s: %w", issueID, name, ErrNotFound)
	}

	// Write-then-rename so a crash never leaves a half-written problem file.
	suffix := make([]byte, 4)
	rand.Read(suffix)
	tmp := path + ".tmp." + hex.EncodeToString(suffix)
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s/%s: %w", issueID, name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s/%s: %w", issueID, name, err)
	}
	return nil
}

// Move relocates an issue's whole directory between roots in one rename.
// Exactly one root holds the issue afterwards: ErrNotFound if the source
// is absent, ErrAlreadyExists if the destination is taken.
func (s *Store) Move(issueID, fromRoot, toRoot string) error {
	src := filepath.Join(fromRoot, issueID)
	dst := filepath.Join(toRoot, issueID)

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("move %s: %w", issueID, ErrNotFound)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("move %s: destination: %w", issueID, ErrAlreadyExists)
	}
	if err := os.MkdirAll(toRoot, 0755); err != nil {
		return fmt.Errorf("move %s: %w", issueID, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", issueID, err)
	}
	return nil
}

// Artifacts reports which named artifacts exist for an issue in the
// active root.
func (s *Store) Artifacts(issueID string) map[string]bool {
	present := make(map[string]bool, len(Names))
	for _, name := range Names {
		if _, err := os.Stat(artifactFile(s.active, issueID, name)); err == nil {
			present[name] = true
		}
	}
	return present
}

// Exists reports whether the issue directory is present in the active root.
func (s *Store) Exists(issueID string) bool {
	info, err := os.Stat(s.IssueDir(issueID))
	return err == nil && info.IsDir()
}

// Archived reports whether the issue directory is present in the archive root.
func (s *Store) Archived(issueID string) bool {
	info, err := os.Stat(s.ArchiveDir(issueID))
	return err == nil && info.IsDir()
}

// ListActive returns the ids of all issues in the active root, sorted.
func (s *Store) ListActive() ([]string, error) {
	return listDirs(s.active)
}

// ListArchived returns the ids of all archived issues, sorted.
func (s *Store) ListArchived() ([]string, error) {
	return listDirs(s.archive)
}

func listDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}
