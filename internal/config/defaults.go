package config

// DefaultConfig returns the default configuration with built-in providers and agents.
func DefaultConfig() *PlannerConfig {
	return &PlannerConfig{
		Providers: map[string]ProviderConfig{
			"claude": {
				Command: "claude",
				Type:    "claude",
			},
			"codex": {
				Command: "codex",
				Type:    "codex",
			},
			"goose": {
				Command: "goose",
				Type:    "goose",
			},
		},
		Agents: map[string]AgentConfig{
			AgentPlanner: {
				Provider:     "claude",
				SystemPrompt: "You break software requirements into small, ordered implementation tasks.",
			},
			AgentCoder: {
				Provider:     "claude",
				SystemPrompt: "You implement features and write production code.",
			},
			AgentReviewer: {
				Provider:     "claude",
				SystemPrompt: "You review code for correctness, style, and best practices.",
			},
		},
		Execution: ExecutionConfig{
			MaxAttempts:     3,
			ReviewThreshold: 70,
		},
		Codebase: CodebaseConfig{
			MaxFiles:     50,
			MaxFileBytes: 4096,
			Exclude:      []string{".git/**", "node_modules/**", "vendor/**", ".planner/**"},
		},
		Storage: StorageConfig{
			DatabasePath: ".planner/planner.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
