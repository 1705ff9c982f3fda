package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tracker/report"
)

const (
	maxLogLines = 8
	maxHistory  = 12
	ruleWidth   = 64
)

// CycleMsg carries one finished cycle into the dashboard.
type CycleMsg struct{ Report report.Cycle }

// LogMsg carries one log line into the dashboard.
type LogMsg struct{ Line string }

type haltMsg struct{ Err error }

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Model is the read-only dashboard. It only renders what it is sent.
type Model struct {
	runID   string
	started time.Time

	last    report.Cycle
	history []report.Cycle
	logs    []string

	exploits   int
	injections int
	drift      int

	halted  bool
	haltErr error
	quit    func()
}

// NewModel builds a dashboard for runID; quit is called when the user exits.
func NewModel(runID string, quit func()) Model {
	return Model{
		runID:   runID,
		started: time.Now(),
		quit:    quit,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		switch v.String() {
		case "ctrl+c", "esc", "q":
			if m.quit != nil {
				m.quit()
			}
			return m, tea.Quit
		}

	case CycleMsg:
		m.last = v.Report
		m.history = append(m.history, v.Report)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		m.exploits += v.Report.Exploits
		m.injections += v.Report.Injections
		m.drift += v.Report.DriftEvents

	case LogMsg:
		m.logs = append(m.logs, v.Line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}

	case haltMsg:
		m.halted = true
		m.haltErr = v.Err
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	rule := strings.Repeat("─", ruleWidth) + "\n"

	b.WriteString(titleStyle.Render("TRACKER | associative memory") + "\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("run %s   up %s", m.runID, time.Since(m.started).Truncate(time.Second))) + "\n")
	b.WriteString(rule)

	if m.last.Cycle == 0 {
		b.WriteString("   (waiting for first cycle)\n")
	} else {
		r := m.last
		fmt.Fprintf(&b, "🔁 Cycle %d   state %s   tokens %d (+%d)   vocab %d\n",
			r.Cycle, r.State, r.TotalTokens, r.TokensAdded, r.Vocabulary)
		fmt.Fprintf(&b, "🧬 Subpatterns %d   raw %d   iterations %d/%d   partners %d\n",
			r.Subpatterns, r.RawPatterns, r.Iterations, r.Nominal, r.Partners)
		fmt.Fprintf(&b, "⚙️ Pressure %.2f   next budget %.0f%%   pruned %d\n",
			r.Pressure, r.NextBudgetFactor*100, r.Pruned)
		fmt.Fprintf(&b, "📊 Specialization %.2f   collision risk %.2f   fragmentation %.2f\n",
			r.Drift.Specialization, r.Drift.CollisionRisk, r.Drift.Fragmentation)
		if r.Err != "" {
			b.WriteString(alertStyle.Render("❌ "+r.Err) + "\n")
		}
	}
	b.WriteString(rule)

	b.WriteString("🛡️ Findings:\n")
	fmt.Fprintf(&b, "   exploit %s   injection %s   drift %s\n",
		count(m.exploits), count(m.injections), count(m.drift))
	b.WriteString(rule)

	b.WriteString("📜 Recent cycles:\n")
	if len(m.history) == 0 {
		b.WriteString("   (none)\n")
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		b.WriteString("   " + m.history[i].Summary() + "\n")
	}
	b.WriteString(rule)

	b.WriteString("🧾 Log:\n")
	if len(m.logs) == 0 {
		b.WriteString("   (no recent logs)\n")
	}
	for _, line := range m.logs {
		b.WriteString("   " + line + "\n")
	}
	b.WriteString(rule)

	if m.halted {
		if m.haltErr != nil {
			b.WriteString(alertStyle.Render("💥 Halted: "+m.haltErr.Error()) + "\n")
		} else {
			b.WriteString(okStyle.Render("Halted") + "\n")
		}
	}
	b.WriteString(labelStyle.Render("q to quit") + "\n")
	return b.String()
}

func count(n int) string {
	if n == 0 {
		return okStyle.Render("0")
	}
	return alertStyle.Render(fmt.Sprint(n))
}
