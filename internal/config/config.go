package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a fixflow workspace.
type Config struct {
	Version  int              `yaml:"version"`
	Agents   map[string]Agent `yaml:"agents"`
	Checker  Checker          `yaml:"checker"`
	Workflow Workflow         `yaml:"workflow"`
}

// Agent describes a single AI agent and how to connect to it.
type Agent struct {
	Role       string   `yaml:"role"`                  // validator, architect, reviewer, coder, fixer, writer, default
	Mode       string   `yaml:"mode"`                  // "cli" or "api"
	Cmd        string   `yaml:"cmd,omitempty"`         // CLI command to spawn
	Args       []string `yaml:"args,omitempty"`        // CLI arguments
	Provider   string   `yaml:"provider,omitempty"`    // API provider: openai, anthropic, google
	Model      string   `yaml:"model,omitempty"`       // Model name for API mode
	APIKeyEnv  string   `yaml:"api_key_env,omitempty"` // Env var name containing API key
	TimeoutSec int      `yaml:"timeout_sec,omitempty"` // Timeout in seconds (0 = default 300)
	AutoAccept bool     `yaml:"auto_accept,omitempty"` // Auto-accept all agent actions (skip permissions)
}

// Checker holds the commands that gate the test+fix loop. Each is run
// through the shell in the repo working directory; non-zero exit fails
// the check. Empty commands are skipped.
type Checker struct {
	Lint       string `yaml:"lint,omitempty"`
	Typecheck  string `yaml:"typecheck,omitempty"`
	Tests      string `yaml:"tests,omitempty"`
	TimeoutSec int    `yaml:"timeout_sec,omitempty"` // Per-command timeout (0 = default 600)
}

// Workflow tunes the orchestrator.
type Workflow struct {
	MaxFixLoops int    `yaml:"max_fix_loops,omitempty"` // Test+fix retry bound (0 = default 10)
	IssuesDir   string `yaml:"issues_dir,omitempty"`    // Active issue root (default "issues")
	ArchiveDir  string `yaml:"archive_dir,omitempty"`   // Archive root (default "archive")
}

// EffectiveArgs returns the final args for a CLI agent, injecting
// non-interactive and auto-accept flags for known CLI tools.
//
// Known tools and their flags:
//   - claude: --print --dangerously-skip-permissions
//   - gemini: --yolo
//   - codex:  --full-auto (if supported)
//
// Auto-accept flags only apply when auto_accept: true in the config.
// Users can always add these flags manually in args if they prefer.
func (a Agent) EffectiveArgs() []string {
	if a.Mode != "cli" {
		return a.Args
	}

	args := make([]string, len(a.Args))
	copy(args, a.Args)

	switch a.Cmd {
	case "claude":
		if !containsAny(args, "-p", "--print") {
			args = appendFront(args, "--print")
		}
		if a.AutoAccept && !containsAny(args, "--dangerously-skip-permissions", "--permission-mode") {
			args = appendFront(args, "--dangerously-skip-permissions")
		}
	case "gemini":
		if a.AutoAccept && !containsAny(args, "-y", "--yolo") {
			args = appendFront(args, "--yolo")
		}
	case "codex":
		if a.AutoAccept && !containsAny(args, "--full-auto", "--approval-mode") {
			args = appendFront(args, "--full-auto")
		}
	}

	return args
}

// DefaultTimeout returns the effective timeout for the agent.
func (a Agent) DefaultTimeout() int {
	if a.TimeoutSec > 0 {
		return a.TimeoutSec
	}
	return 300
}

// DefaultTimeout returns the effective per-command checker timeout.
func (c Checker) DefaultTimeout() int {
	if c.TimeoutSec > 0 {
		return c.TimeoutSec
	}
	return 600
}

// MaxLoops returns the effective test+fix retry bound.
func (w Workflow) MaxLoops() int {
	if w.MaxFixLoops > 0 {
		return w.MaxFixLoops
	}
	return 10
}

// Issues returns the effective active issue root.
func (w Workflow) Issues() string {
	if w.IssuesDir != "" {
		return w.IssuesDir
	}
	return "issues"
}

// Archive returns the effective archive root.
func (w Workflow) Archive() string {
	if w.ArchiveDir != "" {
		return w.ArchiveDir
	}
	return "archive"
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a starter config with no agents configured.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Agents:  map[string]Agent{},
		Checker: Checker{
			Tests: "go test ./...",
		},
	}
}

func (c *Config) validate() error {
	for name, agent := range c.Agents {
		if agent.Mode == "" {
			return fmt.Errorf("agent %q: mode is required (cli or api)", name)
		}
		if agent.Mode != "cli" && agent.Mode != "api" {
			return fmt.Errorf("agent %q: mode must be 'cli' or 'api', got %q", name, agent.Mode)
		}
		if agent.Mode == "cli" && agent.Cmd == "" {
			return fmt.Errorf("agent %q: cmd is required for cli mode", name)
		}
		if agent.Mode == "api" && agent.Provider == "" {
			return fmt.Errorf("agent %q: provider is required for api mode", name)
		}
		if agent.Role == "" {
			return fmt.Errorf("agent %q: role is required", name)
		}
	}
	return nil
}

// FindByRole returns the agent with the given role, falling back to an
// agent with role "default" if none matches. Names are scanned in sorted
// order so two agents sharing a role resolve the same way every run.
func (c *Config) FindByRole(role string) (string, Agent, bool) {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if c.Agents[name].Role == role {
			return name, c.Agents[name], true
		}
	}
	for _, name := range names {
		if c.Agents[name].Role == "default" {
			return name, c.Agents[name], true
		}
	}
	return "", Agent{}, false
}

// containsAny checks if any of the targets exist in the slice.
func containsAny(slice []string, targets ...string) bool {
	for _, s := range slice {
		for _, t := range targets {
			if s == t {
				return true
			}
		}
	}
	return false
}

// appendFront inserts a value at the beginning of a slice.
func appendFront(slice []string, val string) []string {
	return append([]string{val}, slice...)
}
