package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/planner/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.PlannerConfig
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error
	fields      *settingsFields
}

// settingsFields holds the form bindings. It lives on the heap so the form
// keeps writing to the same values while the model is copied by Bubble Tea.
type settingsFields struct {
	saveTarget      string
	agentProviders  map[string]*string
	agentModels     map[string]*string
	maxAttempts     string
	reviewThreshold string
	acceptOnFailure bool
	claudeCommand   string
	codexCommand    string
	gooseCommand    string
}

var settingsRoles = []string{config.AgentPlanner, config.AgentCoder, config.AgentReviewer}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.PlannerConfig, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFromConfig()
	m.buildForm()
	return m
}

// loadFromConfig copies config values into the form bindings.
func (m *SettingsPaneModel) loadFromConfig() {
	m.fields = &settingsFields{}
	m.fields.saveTarget = "project"
	m.fields.agentProviders = make(map[string]*string)
	m.fields.agentModels = make(map[string]*string)
	for _, role := range settingsRoles {
		agent := m.config.Agents[role]
		provider, model := agent.Provider, agent.Model
		m.fields.agentProviders[role] = &provider
		m.fields.agentModels[role] = &model
	}
	m.fields.maxAttempts = strconv.Itoa(m.config.Execution.MaxAttempts)
	m.fields.reviewThreshold = strconv.Itoa(m.config.Execution.ReviewThreshold)
	m.fields.acceptOnFailure = m.config.Execution.AcceptOnReviewFailure
	m.fields.claudeCommand = m.config.Providers["claude"].Command
	m.fields.codexCommand = m.config.Providers["codex"].Command
	m.fields.gooseCommand = m.config.Providers["goose"].Command
}

func intBetween(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	var agentFields []huh.Field
	for _, role := range settingsRoles {
		agentFields = append(agentFields,
			huh.NewInput().
				Key(role+"Provider").
				Title(fmt.Sprintf("%s provider", role)).
				Value(m.fields.agentProviders[role]).
				Placeholder("claude"),
			huh.NewInput().
				Key(role+"Model").
				Title(fmt.Sprintf("%s model", role)).
				Value(m.fields.agentModels[role]),
		)
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project (.planner/config.json)", "project"),
					huh.NewOption("Global (~/.planner/config.json)", "global"),
				).
				Value(&m.fields.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(agentFields...).Title("Agents"),

		huh.NewGroup(
			huh.NewInput().
				Key("maxAttempts").
				Title("Max attempts per task").
				Value(&m.fields.maxAttempts).
				Validate(intBetween(1, 20)),

			huh.NewInput().
				Key("reviewThreshold").
				Title("Review threshold (0-100)").
				Value(&m.fields.reviewThreshold).
				Validate(intBetween(0, 100)),

			huh.NewConfirm().
				Key("acceptOnFailure").
				Title("Accept tasks that fail review?").
				Value(&m.fields.acceptOnFailure),
		).Title("Execution"),

		huh.NewGroup(
			huh.NewInput().
				Key("claudeCommand").
				Title("Claude Command").
				Value(&m.fields.claudeCommand).
				Placeholder("claude"),

			huh.NewInput().
				Key("codexCommand").
				Title("Codex Command").
				Value(&m.fields.codexCommand).
				Placeholder("codex"),

			huh.NewInput().
				Key("gooseCommand").
				Title("Goose Command").
				Value(&m.fields.gooseCommand).
				Placeholder("goose"),
		).Title("Provider Settings"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		// Cancel without saving
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.save()
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// save applies the form to the config, validates and writes it.
func (m *SettingsPaneModel) save() {
	candidate := *m.config
	candidate.Agents = make(map[string]config.AgentConfig, len(m.config.Agents))
	for k, v := range m.config.Agents {
		candidate.Agents[k] = v
	}
	candidate.Providers = make(map[string]config.ProviderConfig, len(m.config.Providers))
	for k, v := range m.config.Providers {
		candidate.Providers[k] = v
	}
	m.applyFormToConfig(&candidate)

	if err := candidate.Validate(); err != nil {
		m.err = err
		m.saved = false
		return
	}

	targetPath := m.globalPath
	if m.fields.saveTarget == "project" {
		targetPath = m.projectPath
	}
	if err := config.Save(&candidate, targetPath); err != nil {
		m.err = err
		m.saved = false
		return
	}

	*m.config = candidate
	m.saved = true
	m.err = nil
}

// applyFormToConfig copies form field values into cfg.
func (m *SettingsPaneModel) applyFormToConfig(cfg *config.PlannerConfig) {
	for _, role := range settingsRoles {
		agent := cfg.Agents[role]
		agent.Provider = *m.fields.agentProviders[role]
		agent.Model = *m.fields.agentModels[role]
		cfg.Agents[role] = agent
	}

	// Validated by the form
	if n, err := strconv.Atoi(m.fields.maxAttempts); err == nil {
		cfg.Execution.MaxAttempts = n
	}
	if n, err := strconv.Atoi(m.fields.reviewThreshold); err == nil {
		cfg.Execution.ReviewThreshold = n
	}
	cfg.Execution.AcceptOnReviewFailure = m.fields.acceptOnFailure

	for name, command := range map[string]string{"claude": m.fields.claudeCommand, "codex": m.fields.codexCommand, "goose": m.fields.gooseCommand} {
		if provider, ok := cfg.Providers[name]; ok {
			provider.Command = command
			cfg.Providers[name] = provider
		}
	}
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	switch {
	case m.saved && m.form.State == huh.StateCompleted:
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true).
			Render("✓ Settings saved. They apply to the next run.")
	case m.err != nil:
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	default:
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild form to reset state
	if v {
		m.loadFromConfig()
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Err returns the last save error.
func (m SettingsPaneModel) Err() error {
	return m.err
}
