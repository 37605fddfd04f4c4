package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fixflow/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize fixflow in the current directory",
	Long:  "Creates a .fixflow/ directory with default config and database,\nplus the issues/ and archive/ roots.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check if already initialized.
	if _, err := os.Stat(fixflowDirName); err == nil {
		return fmt.Errorf("fixflow already initialized in this directory (.fixflow/ exists)")
	}

	if err := os.MkdirAll(fixflowDirName, 0755); err != nil {
		return fmt.Errorf("create .fixflow: %w", err)
	}

	// Write default config.
	cfg := config.DefaultConfig()
	if err := config.Save(fixflowPath("config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Create issue roots.
	for _, dir := range []string{cfg.Workflow.Issues(), cfg.Workflow.Archive()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// Create database by opening the journal (migration runs automatically).
	j, err := openJournal(fixflowPath("fixflow.db"))
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	j.Close()

	fmt.Println("Initialized fixflow in .fixflow/")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit .fixflow/config.yaml to add your agents")
	fmt.Printf("  2. Run: fixflow new my-issue \"short title\" --kind bug\n")
	fmt.Printf("  3. Run: fixflow run my-issue\n")

	return nil
}
