// Package tui provides the terminal dashboard for kerneural.
package tui

import (
	"fmt"
	"strings"

	"kerneural/internal/tui/api"
	"kerneural/internal/tui/scenes"
	"kerneural/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Scene represents the current view
type Scene int

const (
	ScenePipeline Scene = iota
	SceneAlerts
	SceneRules

	sceneCount = 3
)

// Model is the main TUI model
type Model struct {
	client *api.Client

	scene Scene

	// Scene models. Only the active one receives ticks.
	pipeline *scenes.PipelineScene
	alerts   *scenes.AlertsScene
	rules    *scenes.RulesScene

	width  int
	height int

	quitting bool
}

// New creates a new TUI model polling the pipeline at baseURL.
func New(baseURL string) *Model {
	client := api.NewClient(baseURL)

	return &Model{
		client:   client,
		scene:    ScenePipeline,
		pipeline: scenes.NewPipelineScene(client),
		alerts:   scenes.NewAlertsScene(client),
		rules:    scenes.NewRulesScene(client),
	}
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.pipeline.Init(),
		m.activeTickCmd(),
	)
}

func (m *Model) activeTickCmd() tea.Cmd {
	switch m.scene {
	case ScenePipeline:
		return m.pipeline.TickCmd()
	case SceneAlerts:
		return m.alerts.TickCmd()
	case SceneRules:
		return m.rules.TickCmd()
	default:
		return nil
	}
}

func (m *Model) activeInitCmd() tea.Cmd {
	switch m.scene {
	case ScenePipeline:
		return m.pipeline.Init()
	case SceneAlerts:
		return m.alerts.Init()
	case SceneRules:
		return m.rules.Init()
	default:
		return nil
	}
}

// switchTo activates scene and starts its fetch and ticker.
func (m *Model) switchTo(scene Scene) tea.Cmd {
	if m.scene == scene {
		return nil
	}
	m.scene = scene
	return tea.Batch(m.activeInitCmd(), m.activeTickCmd())
}

// Update handles all messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "1":
			return m, m.switchTo(ScenePipeline)
		case "2":
			return m, m.switchTo(SceneAlerts)
		case "3":
			return m, m.switchTo(SceneRules)
		case "tab":
			return m, m.switchTo((m.scene + 1) % sceneCount)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.pipeline, _ = m.pipeline.Update(msg)
		m.alerts, _ = m.alerts.Update(msg)
		m.rules, _ = m.rules.Update(msg)
		return m, nil

	case scenes.TickMsg:
		// Ticks from a scene that is no longer active are dropped so the
		// abandoned ticker stops.
		if msg.Scene != m.sceneName() {
			return m, nil
		}
		cmd := m.updateActive(msg)
		return m, tea.Batch(cmd, m.activeTickCmd())
	}

	return m, m.updateActive(msg)
}

func (m *Model) updateActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.scene {
	case ScenePipeline:
		m.pipeline, cmd = m.pipeline.Update(msg)
	case SceneAlerts:
		m.alerts, cmd = m.alerts.Update(msg)
	case SceneRules:
		m.rules, cmd = m.rules.Update(msg)
	}
	return cmd
}

func (m *Model) sceneName() string {
	switch m.scene {
	case ScenePipeline:
		return "pipeline"
	case SceneAlerts:
		return "alerts"
	case SceneRules:
		return "rules"
	default:
		return ""
	}
}

// View renders the current view
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.scene {
	case ScenePipeline:
		b.WriteString(m.pipeline.View())
	case SceneAlerts:
		b.WriteString(m.alerts.View())
	case SceneRules:
		b.WriteString(m.rules.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderHeader() string {
	tabs := []struct {
		name  string
		key   string
		scene Scene
	}{
		{"Pipeline", "1", ScenePipeline},
		{"Alerts", "2", SceneAlerts},
		{"Rules", "3", SceneRules},
	}

	var tabViews []string
	for _, tab := range tabs {
		label := fmt.Sprintf(" %s %s ", tab.key, tab.name)
		if tab.scene == m.scene {
			tabViews = append(tabViews, styles.TabActive.Render(label))
		} else {
			tabViews = append(tabViews, styles.TabInactive.Render(label))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabViews...)

	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.MutedColor).
		Width(m.width).
		Render(tabBar)
}

func (m *Model) renderFooter() string {
	return styles.Help.Render(" [1-3] Switch tabs  [Tab] Next tab  [↑↓/jk] Navigate  [r] Refresh  [q] Quit ")
}

// Run starts the TUI application
func Run(baseURL string) error {
	m := New(baseURL)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
