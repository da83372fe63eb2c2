package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aristath/planner/internal/backend"
	"github.com/aristath/planner/internal/config"
	"github.com/aristath/planner/internal/logging"
	"github.com/aristath/planner/internal/orchestrator"
	"github.com/aristath/planner/internal/persistence"
	"github.com/aristath/planner/internal/planner"
	"github.com/aristath/planner/internal/tui"
)

// app carries what every command needs. Fields left nil are built from the
// configuration in setup; tests preset them.
type app struct {
	pm  *backend.ProcessManager
	out io.Writer

	globalPath  string
	projectPath string
	dbPath      string
	logLevel    string

	cfg      *config.PlannerConfig
	logger   *logging.Logger
	store    persistence.Store
	prompter tui.Prompter
	breakers *orchestrator.CircuitBreakerRegistry

	// generators overrides the configured agents, keyed by role
	generators map[string]planner.Generator
	closers    []io.Closer
	ownsStore  bool
}

func newApp(pm *backend.ProcessManager, out io.Writer) *app {
	return &app{pm: pm, out: out}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "planner",
		Short: "Turn requirements into dependency-ordered implementation plans",
		Long: `planner asks a language model to break a requirement into tasks, lets you
review and edit the resulting plan, and then drives a coder and a reviewer agent
through the tasks in dependency order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.projectPath, "config", config.ProjectPath(), "project config file")
	flags.StringVar(&a.dbPath, "db", "", "plan database (default from config)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		a.newCmd(),
		a.listCmd(),
		a.showCmd(),
		a.editCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.handoffCmd(),
		a.runCmd(),
		a.historyCmd(),
		a.deleteCmd(),
	)
	return root
}

// execute runs the command line in args and releases whatever the command
// opened, even when it failed.
func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.out)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown())
}

// setup loads the configuration and opens the store.
func (a *app) setup(cmd *cobra.Command) error {
	if a.cfg == nil {
		if a.globalPath == "" {
			path, err := config.GlobalPath()
			if err != nil {
				return err
			}
			a.globalPath = path
		}
		cfg, err := config.Load(a.globalPath, a.projectPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a.cfg = cfg
	}
	if a.dbPath != "" {
		a.cfg.Storage.DatabasePath = a.dbPath
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}

	if a.logger == nil {
		a.logger = logging.New(logging.Config{
			Level:  a.cfg.Log.Level,
			Format: a.cfg.Log.Format,
			Output: cmd.ErrOrStderr(),
		})
	}
	if a.breakers == nil {
		a.breakers = orchestrator.NewCircuitBreakerRegistry(a.logger)
	}
	if a.prompter == nil {
		a.prompter = tui.HuhPrompter{}
	}

	if a.store == nil {
		store, err := persistence.NewSQLiteStore(cmd.Context(), a.cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening plan database: %w", err)
		}
		a.store = store
		a.ownsStore = true
	}
	return nil
}

func (a *app) teardown() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	if a.ownsStore && a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
		a.ownsStore = false
	}
	return errors.Join(errs...)
}

// generator returns the text generator for an agent role: the configured
// provider's CLI behind a shared circuit breaker and retry policy.
func (a *app) generator(role string) (planner.Generator, error) {
	if g, ok := a.generators[role]; ok {
		return g, nil
	}

	agent, ok := a.cfg.Agents[role]
	if !ok {
		return nil, fmt.Errorf("no %s agent configured", role)
	}
	provider, ok := a.cfg.Providers[agent.Provider]
	if !ok {
		return nil, fmt.Errorf("agent %s uses unknown provider %q", role, agent.Provider)
	}

	typ := provider.Type
	if typ == "" {
		typ = agent.Provider
	}
	b, err := backend.New(backend.Config{
		Type:         typ,
		Command:      provider.Command,
		Args:         provider.Args,
		Model:        agent.Model,
		SystemPrompt: agent.SystemPrompt,
	}, a.pm)
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", role, err)
	}

	client := orchestrator.NewClient(b, a.breakers.Get(agent.Provider), orchestrator.DefaultRetryConfig(), a.logger.With("agent", role))
	a.closers = append(a.closers, client)
	return client, nil
}
