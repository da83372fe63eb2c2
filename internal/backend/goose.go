package backend

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// gooseDialect drives the Goose CLI. Goose supports local LLM providers
// (Ollama, LM Studio, llama.cpp) via --provider and --model flags.
type gooseDialect struct{}

// gooseResponse is the part of Goose's JSON output we read.
type gooseResponse struct {
	Content string `json:"content"`
}

// NewGooseAdapter creates a new Goose adapter.
// If cfg.SessionID is empty, a session name of the form "planner-{hex}" is generated.
func NewGooseAdapter(cfg Config, procMgr *ProcessManager) (*CLIAdapter, error) {
	sessionName := cfg.SessionID
	if sessionName == "" {
		sessionName = "planner-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return newCLIAdapter(gooseDialect{}, cfg, sessionName, false, procMgr)
}

func (gooseDialect) name() string { return "goose" }

// buildArgs uses --name to start a session and --resume to continue it.
func (gooseDialect) buildArgs(s session, msg Message) []string {
	args := []string{"run", "--text", msg.Content, "--output-format", "json"}

	if !s.Started {
		args = append(args, "--name", s.ID)
	} else {
		args = append(args, "--resume")
	}

	if s.Provider != "" {
		args = append(args, "--provider", s.Provider)
	}
	if s.Model != "" {
		args = append(args, "--model", s.Model)
	}
	if s.SystemPrompt != "" {
		args = append(args, "--system", s.SystemPrompt)
	}

	return args
}

// parse never fails: output that is not JSON is returned as plain text,
// since older Goose builds ignore --output-format.
func (gooseDialect) parse(stdout, stderr []byte) (Response, error) {
	if content, ok := parseGooseJSON(stdout); ok {
		return Response{Content: content}, nil
	}

	content := string(stdout)
	if len(stderr) > 0 {
		content += "\n[stderr]: " + string(stderr)
	}
	return Response{Content: content}, nil
}

// parseGooseJSON tries a single JSON object first, then newline-delimited JSON.
func parseGooseJSON(data []byte) (string, bool) {
	var single gooseResponse
	if err := json.Unmarshal(data, &single); err == nil {
		return single.Content, true
	}

	var contents []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var lineResp gooseResponse
		if err := json.Unmarshal([]byte(line), &lineResp); err == nil && lineResp.Content != "" {
			contents = append(contents, lineResp.Content)
		}
	}

	if len(contents) > 0 {
		return strings.Join(contents, "\n"), true
	}
	return "", false
}
