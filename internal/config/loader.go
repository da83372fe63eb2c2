package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*PlannerConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Project config has the highest precedence
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.planner/config.json
// Project: .planner/config.json (relative to cwd)
func LoadDefault() (*PlannerConfig, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, ProjectPath())
}

// GlobalPath returns ~/.planner/config.json.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".planner", "config.json"), nil
}

// ProjectPath returns .planner/config.json relative to the working directory.
func ProjectPath() string {
	return filepath.Join(".planner", "config.json")
}

// Validate checks that every agent points at a known provider and that the
// execution limits are usable.
func (c *PlannerConfig) Validate() error {
	for name, agent := range c.Agents {
		if _, ok := c.Providers[agent.Provider]; !ok {
			return fmt.Errorf("agent %q references unknown provider %q", name, agent.Provider)
		}
	}
	for _, role := range []string{AgentPlanner, AgentCoder, AgentReviewer} {
		if _, ok := c.Agents[role]; !ok {
			return fmt.Errorf("agent %q is not configured", role)
		}
	}
	if c.Execution.MaxAttempts < 1 {
		return fmt.Errorf("execution.max_attempts must be at least 1, got %d", c.Execution.MaxAttempts)
	}
	if c.Execution.ReviewThreshold < 0 || c.Execution.ReviewThreshold > 100 {
		return fmt.Errorf("execution.review_threshold must be within 0-100, got %d", c.Execution.ReviewThreshold)
	}
	return nil
}

// partialConfig mirrors PlannerConfig with pointer sections so a file that
// omits a section leaves the base untouched.
type partialConfig struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    map[string]AgentConfig    `json:"agents"`
	Execution *struct {
		MaxAttempts           *int    `json:"max_attempts"`
		AcceptOnReviewFailure *bool   `json:"accept_on_review_failure"`
		OutputDir             *string `json:"output_dir"`
		ReviewThreshold       *int    `json:"review_threshold"`
	} `json:"execution"`
	Codebase *struct {
		MaxFiles     *int     `json:"max_files"`
		MaxFileBytes *int     `json:"max_file_bytes"`
		Include      []string `json:"include"`
		Exclude      []string `json:"exclude"`
	} `json:"codebase"`
	Storage *struct {
		DatabasePath *string `json:"database_path"`
	} `json:"storage"`
	Log *struct {
		Level  *string `json:"level"`
		Format *string `json:"format"`
	} `json:"log"`
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *PlannerConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded partialConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}
	for key, agent := range loaded.Agents {
		base.Agents[key] = agent
	}

	if e := loaded.Execution; e != nil {
		setIf(&base.Execution.MaxAttempts, e.MaxAttempts)
		setIf(&base.Execution.AcceptOnReviewFailure, e.AcceptOnReviewFailure)
		setIf(&base.Execution.OutputDir, e.OutputDir)
		setIf(&base.Execution.ReviewThreshold, e.ReviewThreshold)
	}
	if c := loaded.Codebase; c != nil {
		setIf(&base.Codebase.MaxFiles, c.MaxFiles)
		setIf(&base.Codebase.MaxFileBytes, c.MaxFileBytes)
		if c.Include != nil {
			base.Codebase.Include = c.Include
		}
		if c.Exclude != nil {
			base.Codebase.Exclude = c.Exclude
		}
	}
	if s := loaded.Storage; s != nil {
		setIf(&base.Storage.DatabasePath, s.DatabasePath)
	}
	if l := loaded.Log; l != nil {
		setIf(&base.Log.Level, l.Level)
		setIf(&base.Log.Format, l.Format)
	}

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
