package scenes

import (
	"fmt"
	"strings"
	"time"

	"kerneural/internal/tui/api"
	"kerneural/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
)

// RulesScene lists the rules persisted by the pipeline.
type RulesScene struct {
	client     *api.Client
	rules      *api.RulesResponse
	cursor     int
	offset     int
	maxRows    int
	err        error
	width      int
	height     int
	lastUpdate time.Time
	loading    bool
}

type rulesMsg struct {
	rules *api.RulesResponse
	err   error
}

// NewRulesScene creates a new rules scene
func NewRulesScene(client *api.Client) *RulesScene {
	return &RulesScene{
		client:  client,
		loading: true,
		maxRows: 10,
	}
}

// Init fetches the stored rules.
func (r *RulesScene) Init() tea.Cmd {
	return r.fetchRules()
}

func (r *RulesScene) fetchRules() tea.Cmd {
	return func() tea.Msg {
		rules, err := r.client.GetRules()
		return rulesMsg{rules: rules, err: err}
	}
}

// TickCmd returns the refresh tick for this scene. The store changes rarely,
// so it refreshes less often than the other scenes.
func (r *RulesScene) TickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "rules", Time: t}
	})
}

func (r *RulesScene) count() int {
	if r.rules == nil {
		return 0
	}
	return len(r.rules.Rules)
}

// Update handles messages for the rules scene
func (r *RulesScene) Update(msg tea.Msg) (*RulesScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		r.maxRows = max(3, (r.height-14)/2)
		return r, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if r.cursor > 0 {
				r.cursor--
				if r.cursor < r.offset {
					r.offset = r.cursor
				}
			}
		case "down", "j":
			if r.cursor < r.count()-1 {
				r.cursor++
				if r.cursor >= r.offset+r.maxRows {
					r.offset = r.cursor - r.maxRows + 1
				}
			}
		case "r":
			r.loading = true
			return r, r.fetchRules()
		}
		return r, nil

	case rulesMsg:
		r.loading = false
		r.err = msg.err
		if msg.rules != nil {
			r.rules = msg.rules
		}
		r.lastUpdate = time.Now()
		if r.cursor >= r.count() {
			r.cursor = max(0, r.count()-1)
			r.offset = min(r.offset, r.cursor)
		}
		return r, nil

	case TickMsg:
		if msg.Scene == "rules" {
			return r, r.fetchRules()
		}
		return r, nil
	}

	return r, nil
}

// View renders the rule list and the selected rule's condition.
func (r *RulesScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Generated Rules"))
	b.WriteString("\n\n")

	if r.loading && r.rules == nil {
		b.WriteString(styles.Muted.Render("  Loading rules..."))
		return b.String()
	}

	if r.err != nil {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %v", r.err)))
		b.WriteString("\n\n")
		if r.rules == nil {
			b.WriteString(styles.Muted.Render("  Press [r] to retry."))
			return b.String()
		}
	}

	if r.count() == 0 {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  No rules in %s yet.", r.rules.Path)))
		return b.String()
	}

	b.WriteString(styles.Subtitle.Render(fmt.Sprintf("  %d rules in %s", r.rules.Count, r.rules.Path)))
	b.WriteString("\n\n")

	header := fmt.Sprintf("  %-10s %s", "Priority", "Rule")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	end := min(r.offset+r.maxRows, r.count())
	for i := r.offset; i < end; i++ {
		rule := r.rules.Rules[i]
		priority := fmt.Sprintf("%-10s", truncate(rule.Priority, 10))
		if i == r.cursor {
			b.WriteString(styles.TableRowSelected.Render(fmt.Sprintf("  %s %s", priority, truncate(rule.Rule, 60))))
		} else {
			b.WriteString(fmt.Sprintf("  %s %s", styles.Priority(rule.Priority).Render(priority), truncate(rule.Rule, 60)))
		}
		b.WriteString("\n")
	}

	selected := r.rules.Rules[r.cursor]
	b.WriteString("\n")
	b.WriteString(styles.MetricLabel.Render("  desc: "))
	b.WriteString(selected.Desc)
	b.WriteString("\n")
	b.WriteString(styles.MetricLabel.Render("  condition: "))
	b.WriteString(selected.Condition)
	b.WriteString("\n")
	b.WriteString(styles.MetricLabel.Render("  output: "))
	b.WriteString(selected.Output)
	b.WriteString("\n")

	return b.String()
}
