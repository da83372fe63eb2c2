package backend

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// codexDialect drives the `codex` CLI, which reports progress as
// newline-delimited JSON events.
type codexDialect struct{}

// codexEvent is the base event type for all Codex events.
type codexEvent struct {
	Type string `json:"type"`
}

// codexThreadStarted represents the ThreadStarted event.
type codexThreadStarted struct {
	ThreadID string `json:"thread_id"`
}

// codexTurnCompleted represents the TurnCompleted event.
type codexTurnCompleted struct {
	Content string `json:"content"`
}

// NewCodexAdapter creates a new Codex backend adapter.
// If cfg.SessionID is provided, it will be used as the initial thread ID for resuming sessions.
func NewCodexAdapter(cfg Config, procMgr *ProcessManager) (*CLIAdapter, error) {
	return newCLIAdapter(codexDialect{}, cfg, cfg.SessionID, cfg.SessionID != "", procMgr)
}

func (codexDialect) name() string { return "codex" }

// buildArgs constructs the command arguments for codex CLI.
// First message: ["exec", prompt, "--json"]
// Resume: ["resume", threadID, prompt, "--json"]
func (codexDialect) buildArgs(s session, msg Message) []string {
	var args []string
	if !s.Started || s.ID == "" {
		args = []string{"exec", msg.Content, "--json"}
	} else {
		args = []string{"resume", s.ID, msg.Content, "--json"}
	}

	if s.Model != "" {
		args = append(args, "--model", s.Model)
	}

	return args
}

func (codexDialect) parse(stdout, _ []byte) (Response, error) {
	threadID, content, err := parseCodexEvents(stdout)
	if err != nil {
		return Response{}, err
	}
	return Response{Content: content, SessionID: threadID}, nil
}

// parseCodexEvents parses newline-delimited JSON events from Codex CLI output.
// It extracts the thread_id from ThreadStarted events and content from TurnCompleted events.
func parseCodexEvents(data []byte) (threadID string, content string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var evt codexEvent
		if parseErr := json.Unmarshal([]byte(line), &evt); parseErr != nil {
			return "", "", fmt.Errorf("failed to parse event type: %w", parseErr)
		}

		switch evt.Type {
		case "ThreadStarted":
			var started codexThreadStarted
			if parseErr := json.Unmarshal([]byte(line), &started); parseErr != nil {
				return "", "", fmt.Errorf("failed to parse ThreadStarted event: %w", parseErr)
			}
			threadID = started.ThreadID

		case "TurnCompleted":
			var completed codexTurnCompleted
			if parseErr := json.Unmarshal([]byte(line), &completed); parseErr != nil {
				return "", "", fmt.Errorf("failed to parse TurnCompleted event: %w", parseErr)
			}
			content = completed.Content
		}
	}

	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("error reading events: %w", err)
	}

	return threadID, content, nil
}
