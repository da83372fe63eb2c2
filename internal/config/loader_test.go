package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name            string
		globalConfig    string
		projectConfig   string
		expectProviders int
		expectAgents    int
		checkAgent      string
		expectProvider  string
		expectModel     string
		expectAttempts  int
	}{
		{
			name:            "No config files - returns defaults",
			expectProviders: 3,
			expectAgents:    3,
			expectAttempts:  3,
		},
		{
			name:            "Global only - adds new agent",
			globalConfig:    `{"agents": {"css-specialist": {"provider": "goose", "system_prompt": "CSS"}}}`,
			expectProviders: 3,
			expectAgents:    4,
			checkAgent:      "css-specialist",
			expectProvider:  "goose",
			expectAttempts:  3,
		},
		{
			name:            "Project only - overrides agent provider",
			projectConfig:   `{"agents": {"coder": {"provider": "codex"}}}`,
			expectProviders: 3,
			expectAgents:    3,
			checkAgent:      "coder",
			expectProvider:  "codex",
			expectAttempts:  3,
		},
		{
			name:            "Project overrides global - project wins",
			globalConfig:    `{"agents": {"coder": {"provider": "claude", "model": "model-x"}}, "execution": {"max_attempts": 5}}`,
			projectConfig:   `{"agents": {"coder": {"provider": "codex", "model": "model-y"}}}`,
			expectProviders: 3,
			expectAgents:    3,
			checkAgent:      "coder",
			expectProvider:  "codex",
			expectModel:     "model-y",
			expectAttempts:  5,
		},
		{
			name:            "New provider usable by agent",
			projectConfig:   `{"providers": {"local": {"command": "/opt/bin/claude", "type": "claude"}}, "agents": {"planner": {"provider": "local"}}}`,
			expectProviders: 4,
			expectAgents:    3,
			checkAgent:      "planner",
			expectProvider:  "local",
			expectAttempts:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != "" {
				globalPath = writeConfig(t, tmpDir, "global.json", tt.globalConfig)
			}
			projectPath := ""
			if tt.projectConfig != "" {
				projectPath = writeConfig(t, tmpDir, "project.json", tt.projectConfig)
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Providers); got != tt.expectProviders {
				t.Errorf("providers count = %d, want %d", got, tt.expectProviders)
			}
			if got := len(cfg.Agents); got != tt.expectAgents {
				t.Errorf("agents count = %d, want %d", got, tt.expectAgents)
			}
			if cfg.Execution.MaxAttempts != tt.expectAttempts {
				t.Errorf("max_attempts = %d, want %d", cfg.Execution.MaxAttempts, tt.expectAttempts)
			}

			if tt.checkAgent != "" {
				agent, exists := cfg.Agents[tt.checkAgent]
				if !exists {
					t.Fatalf("expected agent %q not found", tt.checkAgent)
				}
				if agent.Provider != tt.expectProvider {
					t.Errorf("agent %q provider = %q, want %q", tt.checkAgent, agent.Provider, tt.expectProvider)
				}
				if tt.expectModel != "" && agent.Model != tt.expectModel {
					t.Errorf("agent %q model = %q, want %q", tt.checkAgent, agent.Model, tt.expectModel)
				}
			}
		})
	}
}

func TestLoad_PartialSectionsKeepDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfig(t, tmpDir, "project.json", `{
		"execution": {"accept_on_review_failure": true, "output_dir": "out"},
		"codebase": {"include": ["**/*.go"]},
		"log": {"level": "debug"}
	}`)

	cfg, err := Load("", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if !cfg.Execution.AcceptOnReviewFailure || cfg.Execution.OutputDir != "out" {
		t.Errorf("execution overrides not applied: %+v", cfg.Execution)
	}
	if cfg.Execution.MaxAttempts != defaults.Execution.MaxAttempts {
		t.Errorf("max_attempts = %d, want default %d", cfg.Execution.MaxAttempts, defaults.Execution.MaxAttempts)
	}
	if cfg.Execution.ReviewThreshold != defaults.Execution.ReviewThreshold {
		t.Errorf("review_threshold = %d, want default %d", cfg.Execution.ReviewThreshold, defaults.Execution.ReviewThreshold)
	}
	if len(cfg.Codebase.Include) != 1 || cfg.Codebase.Include[0] != "**/*.go" {
		t.Errorf("include = %v", cfg.Codebase.Include)
	}
	if len(cfg.Codebase.Exclude) != len(defaults.Codebase.Exclude) {
		t.Errorf("exclude should keep defaults, got %v", cfg.Codebase.Exclude)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != defaults.Log.Format {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Storage.DatabasePath != defaults.Storage.DatabasePath {
		t.Errorf("database_path = %q", cfg.Storage.DatabasePath)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()
	globalPath := writeConfig(t, tmpDir, "global.json", "{invalid json")

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
	if !strings.Contains(err.Error(), "global.json") {
		t.Errorf("error should mention the file: %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown provider", `{"agents": {"coder": {"provider": "nope"}}}`, "unknown provider"},
		{"zero attempts", `{"execution": {"max_attempts": 0}}`, "max_attempts"},
		{"threshold too high", `{"execution": {"review_threshold": 101}}`, "review_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "project.json", tt.body)
			_, err := Load("", path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}

	if len(cfg.Providers) != 3 {
		t.Errorf("providers count = %d, want 3", len(cfg.Providers))
	}
	for _, role := range []string{AgentPlanner, AgentCoder, AgentReviewer} {
		if _, ok := cfg.Agents[role]; !ok {
			t.Errorf("default agent %q missing", role)
		}
	}
}
