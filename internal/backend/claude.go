package backend

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type claudeDialect struct{}

// claudeResponse represents the JSON structure returned by Claude Code CLI.
// "result" is either the reply text or an object with a content array:
// {"session_id": "uuid", "result": {"content": [{"type": "text", "text": "response"}]}}
type claudeResponse struct {
	SessionID string          `json:"session_id"`
	IsError   bool            `json:"is_error"`
	Result    json.RawMessage `json:"result"`
}

type claudeContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaudeAdapter creates a new Claude Code backend adapter.
// If cfg.SessionID is empty, a new UUID will be generated.
// The ProcessManager is optional - if nil, subprocesses won't be tracked.
func NewClaudeAdapter(cfg Config, procMgr *ProcessManager) (*CLIAdapter, error) {
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return newCLIAdapter(claudeDialect{}, cfg, sessionID, false, procMgr)
}

func (claudeDialect) name() string { return "claude" }

// buildArgs uses --session-id on the first call and --resume afterwards.
func (claudeDialect) buildArgs(s session, msg Message) []string {
	args := []string{"-p", msg.Content, "--output-format", "json"}

	if s.Started {
		args = append(args, "--resume", s.ID)
	} else {
		args = append(args, "--session-id", s.ID)
	}

	if s.Model != "" {
		args = append(args, "--model", s.Model)
	}
	if s.SystemPrompt != "" {
		args = append(args, "--system-prompt", s.SystemPrompt)
	}

	return args
}

func (claudeDialect) parse(stdout, _ []byte) (Response, error) {
	var cr claudeResponse
	if err := json.Unmarshal(stdout, &cr); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var content string
	if len(cr.Result) > 0 {
		if err := json.Unmarshal(cr.Result, &content); err != nil {
			var structured claudeContent
			if err := json.Unmarshal(cr.Result, &structured); err != nil {
				return Response{}, fmt.Errorf("unexpected result shape: %w", err)
			}
			for _, item := range structured.Content {
				if item.Type == "text" {
					content += item.Text
				}
			}
		}
	}

	if cr.IsError {
		return Response{}, fmt.Errorf("claude reported an error: %s", content)
	}

	return Response{
		Content:   content,
		SessionID: cr.SessionID,
	}, nil
}
