package backend

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// session is the per-adapter conversation state handed to a dialect.
type session struct {
	ID           string
	Started      bool
	Model        string
	Provider     string
	SystemPrompt string
}

// dialect describes how one CLI is invoked and how its output is read.
type dialect interface {
	name() string
	buildArgs(s session, msg Message) []string
	parse(stdout, stderr []byte) (Response, error)
}

// CLIAdapter runs one subprocess per message and keeps the session id the
// CLI hands back so follow-up messages resume the same conversation.
type CLIAdapter struct {
	mu      sync.Mutex
	dialect dialect
	command string
	args    []string
	workDir string
	cfg     Config
	session session
	procMgr *ProcessManager
}

// newCLIAdapter builds an adapter for d. resumed marks sessionID as an
// existing conversation rather than one the first call should create.
func newCLIAdapter(d dialect, cfg Config, sessionID string, resumed bool, procMgr *ProcessManager) (*CLIAdapter, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	command := cfg.Command
	if command == "" {
		command = d.name()
	}

	return &CLIAdapter{
		dialect: d,
		command: command,
		args:    append([]string(nil), cfg.Args...),
		workDir: workDir,
		cfg:     cfg,
		session: session{
			ID:           sessionID,
			Started:      resumed,
			Model:        cfg.Model,
			Provider:     cfg.Provider,
			SystemPrompt: cfg.SystemPrompt,
		},
		procMgr: procMgr,
	}, nil
}

// Send runs the CLI once for msg. Calls on one adapter are serialized so the
// session state stays consistent.
func (a *CLIAdapter) Send(ctx context.Context, msg Message) (Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), a.args...), a.dialect.buildArgs(a.session, msg)...)
	cmd := newCommand(ctx, a.command, args...)
	cmd.Dir = a.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, a.procMgr)
	if err != nil {
		return Response{
			Error:     fmt.Sprintf("%s command failed: %v", a.dialect.name(), err),
			SessionID: a.session.ID,
		}, err
	}

	resp, err := a.dialect.parse(stdout, stderr)
	if err != nil {
		return Response{
			Error:     fmt.Sprintf("failed to parse %s response: %v (stderr: %s)", a.dialect.name(), err, string(stderr)),
			SessionID: a.session.ID,
		}, err
	}

	if resp.SessionID != "" {
		a.session.ID = resp.SessionID
	}
	resp.SessionID = a.session.ID
	a.session.Started = true

	return resp, nil
}

// Close is a no-op: each Send is its own subprocess.
func (a *CLIAdapter) Close() error {
	return nil
}

// SessionID returns the current session identifier.
func (a *CLIAdapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.ID
}

// Type returns the dialect name.
func (a *CLIAdapter) Type() string {
	return a.dialect.name()
}
