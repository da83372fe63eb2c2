package config

// ProviderConfig defines a transport layer (CLI command, args, base settings).
// Providers are separate from agents -- multiple agents can share one provider.
type ProviderConfig struct {
	Command string   `json:"command"`        // CLI binary name (e.g., "claude", "codex", "goose")
	Args    []string `json:"args,omitempty"` // Default args prepended to every invocation
	Type    string   `json:"type"`           // Backend type matching backend.Config.Type
}

// AgentConfig defines a role that uses a specific provider and model.
type AgentConfig struct {
	Provider     string `json:"provider"`                // Key into Providers map
	Model        string `json:"model,omitempty"`         // Model override
	SystemPrompt string `json:"system_prompt,omitempty"` // Role-specific system prompt
}

// ExecutionConfig controls how an approved plan is carried out.
type ExecutionConfig struct {
	MaxAttempts           int    `json:"max_attempts"`
	AcceptOnReviewFailure bool   `json:"accept_on_review_failure"`
	OutputDir             string `json:"output_dir,omitempty"` // Empty disables writing task code to disk
	ReviewThreshold       int    `json:"review_threshold"`     // Minimum score (0-100) for an approval to count
}

// CodebaseConfig bounds the summary sent along with a planning request.
type CodebaseConfig struct {
	MaxFiles     int      `json:"max_files"`
	MaxFileBytes int      `json:"max_file_bytes"`
	Include      []string `json:"include,omitempty"` // Glob patterns; empty means every file
	Exclude      []string `json:"exclude,omitempty"`
}

// StorageConfig locates the plan database.
type StorageConfig struct {
	DatabasePath string `json:"database_path"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or text
}

// Agent role names.
const (
	AgentPlanner  = "planner"
	AgentCoder    = "coder"
	AgentReviewer = "reviewer"
)

// PlannerConfig is the top-level configuration.
type PlannerConfig struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    map[string]AgentConfig    `json:"agents"`
	Execution ExecutionConfig           `json:"execution"`
	Codebase  CodebaseConfig            `json:"codebase"`
	Storage   StorageConfig             `json:"storage"`
	Log       LogConfig                 `json:"log"`
}
