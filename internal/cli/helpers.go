package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"fixflow/internal/artifact"
	"fixflow/internal/config"
	"fixflow/internal/store"
)

const fixflowDirName = ".fixflow"

// fixflowPath returns the path to a file inside .fixflow/.
func fixflowPath(parts ...string) string {
	elems := append([]string{fixflowDirName}, parts...)
	return filepath.Join(elems...)
}

// mustConfig loads the workspace config, failing if fixflow is not
// initialized here.
func mustConfig() (*config.Config, error) {
	cfgPath := fixflowPath("config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("fixflow not initialized. Run: fixflow init")
	}
	return config.Load(cfgPath)
}

// mustJournal opens the journal database, failing if fixflow is not
// initialized here.
func mustJournal() (*store.Store, error) {
	dbPath := fixflowPath("fixflow.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("fixflow not initialized. Run: fixflow init")
	}
	return openJournal(dbPath)
}

// openJournal opens or creates the SQLite journal at the given path.
func openJournal(dbPath string) (*store.Store, error) {
	return store.New(dbPath)
}

// artifactStore builds the filesystem store from the configured issue
// and archive roots.
func artifactStore(cfg *config.Config) *artifact.Store {
	return artifact.New(cfg.Workflow.Issues(), cfg.Workflow.Archive())
}
