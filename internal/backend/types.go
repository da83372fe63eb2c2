package backend

import "time"

// Message represents a message sent to the backend.
type Message struct {
	Content string
	Role    string // "user" or "system"
}

// Response represents a response from the backend.
type Response struct {
	Content   string
	SessionID string
	Error     string
}

// Config defines the configuration for a backend.
type Config struct {
	Type         string   // "claude", "codex", or "goose"
	Command      string   // Binary to run; defaults to the dialect's CLI name
	Args         []string // Extra arguments placed before the dialect's own
	WorkDir      string
	SessionID    string
	Model        string
	Provider     string // For Goose local LLMs (e.g., "ollama", "lmstudio", "llama.cpp")
	SystemPrompt string
	Timeout      time.Duration // Per-call limit; zero means no limit
}
