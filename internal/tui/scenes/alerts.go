package scenes

import (
	"fmt"
	"strings"
	"time"

	"kerneural/internal/tui/api"
	"kerneural/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
)

// AlertWindow is how many recent alerts the scene requests.
const AlertWindow = 10

// AlertsScene lists the most recent engine alerts, newest first.
type AlertsScene struct {
	client     *api.Client
	alerts     []api.Alert
	cursor     int
	err        string
	width      int
	height     int
	lastUpdate time.Time
	loading    bool
}

type alertsMsg struct {
	alerts []api.Alert
	err    string
}

// NewAlertsScene creates a new alerts scene
func NewAlertsScene(client *api.Client) *AlertsScene {
	return &AlertsScene{
		client:  client,
		loading: true,
	}
}

// Init fetches the initial alert window.
func (a *AlertsScene) Init() tea.Cmd {
	return a.fetchAlerts()
}

func (a *AlertsScene) fetchAlerts() tea.Cmd {
	return func() tea.Msg {
		resp, err := a.client.GetStatus(AlertWindow)
		if err != nil {
			return alertsMsg{err: err.Error()}
		}
		return alertsMsg{alerts: resp.Alerts}
	}
}

// TickCmd returns the refresh tick for this scene.
func (a *AlertsScene) TickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "alerts", Time: t}
	})
}

// Update handles messages for the alerts scene
func (a *AlertsScene) Update(msg tea.Msg) (*AlertsScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if a.cursor > 0 {
				a.cursor--
			}
		case "down", "j":
			if a.cursor < len(a.alerts)-1 {
				a.cursor++
			}
		case "r":
			a.loading = true
			return a, a.fetchAlerts()
		}
		return a, nil

	case alertsMsg:
		a.loading = false
		a.err = msg.err
		if msg.err == "" {
			a.alerts = msg.alerts
		}
		a.lastUpdate = time.Now()
		if a.cursor >= len(a.alerts) {
			a.cursor = max(0, len(a.alerts)-1)
		}
		return a, nil

	case TickMsg:
		if msg.Scene == "alerts" {
			return a, a.fetchAlerts()
		}
		return a, nil
	}

	return a, nil
}

// View renders the alert table
func (a *AlertsScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Recent Alerts"))
	b.WriteString("\n\n")

	if a.loading && len(a.alerts) == 0 {
		b.WriteString(styles.Muted.Render("  Loading alerts..."))
		return b.String()
	}

	if a.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %s", a.err)))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("  Press [r] to retry."))
		return b.String()
	}

	if len(a.alerts) == 0 {
		b.WriteString(styles.Muted.Render("  No alerts yet. Waiting for the engine to report events."))
		return b.String()
	}

	header := fmt.Sprintf("  %-20s %-10s %-40s %s", "Time", "Priority", "Rule", "Container")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	for i, alert := range a.alerts {
		b.WriteString(a.renderAlertRow(alert, i == a.cursor))
		b.WriteString("\n")
	}

	b.WriteString(styles.Muted.Render("\n  [r] Refresh"))
	if !a.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  |  Updated: %s", a.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

func (a *AlertsScene) renderAlertRow(alert api.Alert, selected bool) string {
	ts := alert.Time
	if parsed, err := time.Parse(time.RFC3339Nano, alert.Time); err == nil {
		ts = parsed.Local().Format("2006-01-02 15:04:05")
	}
	container := alert.Container
	if container == "" {
		container = "host"
	}

	priority := fmt.Sprintf("%-10s", truncate(alert.Priority, 10))
	if selected {
		row := fmt.Sprintf("  %-20s %s %-40s %s", truncate(ts, 20), priority,
			truncate(alert.Rule, 40), truncate(container, 20))
		return styles.TableRowSelected.Render(row)
	}
	return fmt.Sprintf("  %-20s %s %-40s %s", truncate(ts, 20),
		styles.Priority(alert.Priority).Render(priority),
		truncate(alert.Rule, 40), truncate(container, 20))
}
