package scenes

import (
	"fmt"
	"strings"
	"time"

	"kerneural/internal/tui/api"
	"kerneural/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PipelineScene shows the current phase, last action and cycle counters.
type PipelineScene struct {
	client     *api.Client
	status     *api.Status
	err        error
	width      int
	height     int
	lastUpdate time.Time
	loading    bool
}

type pipelineMsg struct {
	status *api.Status
	err    error
}

// NewPipelineScene creates a new pipeline scene
func NewPipelineScene(client *api.Client) *PipelineScene {
	return &PipelineScene{
		client:  client,
		loading: true,
	}
}

// Init fetches the initial status.
func (p *PipelineScene) Init() tea.Cmd {
	return p.fetchStatus()
}

func (p *PipelineScene) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		resp, err := p.client.GetStatus(0)
		if err != nil {
			return pipelineMsg{err: err}
		}
		return pipelineMsg{status: &resp.Status}
	}
}

// TickCmd returns the refresh tick for this scene.
func (p *PipelineScene) TickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "pipeline", Time: t}
	})
}

// Update handles messages for the pipeline scene
func (p *PipelineScene) Update(msg tea.Msg) (*PipelineScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case pipelineMsg:
		p.loading = false
		p.err = msg.err
		if msg.status != nil {
			p.status = msg.status
		}
		p.lastUpdate = time.Now()
		return p, nil

	case TickMsg:
		if msg.Scene == "pipeline" {
			return p, p.fetchStatus()
		}
		return p, nil
	}

	return p, nil
}

// View renders the pipeline scene
func (p *PipelineScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Rule Pipeline"))
	b.WriteString("\n\n")

	if p.loading {
		b.WriteString(styles.Muted.Render("  Loading..."))
		return b.String()
	}

	if p.err != nil {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %v", p.err)))
		b.WriteString("\n")
		if p.status == nil {
			return b.String()
		}
		b.WriteString("\n")
	}

	s := p.status
	phase := styles.Phase(s.Phase).Render("● " + strings.ToUpper(s.Phase))
	b.WriteString(fmt.Sprintf("  Phase: %s\n", phase))
	b.WriteString(fmt.Sprintf("  Last action: %s\n", s.LastAction))
	if s.CycleID != "" {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Cycle: %s", s.CycleID)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	cards := []string{
		renderMetricCard("Events", formatNumber(s.EventCount)),
		renderMetricCard("Rules Applied", formatNumber(s.RulesApplied)),
		renderMetricCard("Rejected", formatNumber(s.Rejections)),
		renderMetricCard("LLM Failures", formatNumber(s.SynthesisFailures)),
		renderMetricCard("Reload Fails", formatNumber(s.ReloadFailures)),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n\n")

	if !p.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  Last updated: %s", p.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

func renderMetricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s",
		styles.MetricValue.Render(value),
		styles.MetricLabel.Render(label),
	)
	return styles.MetricCard.Render(content)
}
