package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/clicktrail/internal/analysis"
	"github.com/alexanderramin/clicktrail/internal/cli/formatter"
	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// analysisEventMsg carries one orchestrator event into the program.
type analysisEventMsg struct{ ev analysis.Event }

// analysisFinishedMsg arrives once the service call has returned.
type analysisFinishedMsg struct {
	report *domain.UsageReport
	err    error
}

const (
	tuiDefaultWidth = 80
	tuiLogHeight    = 12
)

// analyzeModel shows a progress bar over a scrolling diagnostics log. Ctrl+C
// or q cancels the run; the program quits once the run has finished.
type analyzeModel struct {
	sessionID string
	model     string
	cancel    func()

	bar   progress.Model
	logs  viewport.Model
	lines []string

	phase      analysis.Phase
	chunk      int
	cancelling bool
	finished   bool
	report     *domain.UsageReport
	err        error
}

func newAnalyzeModel(sessionID, model string, cancel func()) analyzeModel {
	bar := progress.New(progress.WithGradient(string(formatter.ColorHeader), string(formatter.ColorGreen)))
	bar.Width = tuiDefaultWidth - 4
	vp := viewport.New(tuiDefaultWidth, tuiLogHeight)
	return analyzeModel{
		sessionID: sessionID,
		model:     model,
		cancel:    cancel,
		bar:       bar,
		logs:      vp,
		phase:     analysis.PhaseIdle,
	}
}

func (m analyzeModel) Init() tea.Cmd {
	return nil
}

func (m analyzeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, msg.Width-4)
		m.logs.Width = msg.Width
		m.logs.Height = max(3, min(tuiLogHeight, msg.Height-8))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.cancelling && !m.finished {
				m.cancelling = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd

	case analysisEventMsg:
		return m.handleEvent(msg.ev)

	case analysisFinishedMsg:
		m.finished = true
		m.report = msg.report
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		if bar, ok := updated.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd
	}
	return m, nil
}

func (m analyzeModel) handleEvent(ev analysis.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case analysis.EventProgress:
		return m, m.bar.SetPercent(ev.Progress)
	case analysis.EventPhase:
		m.phase = ev.Phase
		m.chunk = ev.Chunk
	case analysis.EventLog:
		m.appendLog(ev.Log)
	case analysis.EventDone:
		m.phase = analysis.PhaseDone
		return m, m.bar.SetPercent(1)
	case analysis.EventFailed:
		m.phase = analysis.PhaseFailed
		if ev.Err != nil {
			m.appendLog("failed: " + ev.Err.Error())
		}
	case analysis.EventCancelled:
		m.appendLog("cancelled")
	}
	return m, nil
}

func (m *analyzeModel) appendLog(text string) {
	m.lines = append(m.lines, strings.Split(strings.TrimRight(text, "\n"), "\n")...)
	m.logs.SetContent(strings.Join(m.lines, "\n"))
	m.logs.GotoBottom()
}

var tuiBorder = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(formatter.ColorDim)

func (m analyzeModel) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n\n", formatter.StyleHeader.Render("ANALYZING"), m.sessionID, formatter.Dim("with "+m.model))
	b.WriteString(m.bar.View())
	b.WriteString("\n")
	status := string(m.phase)
	if m.phase != analysis.PhaseIdle && m.phase != analysis.PhaseDone && m.chunk >= 0 {
		status = fmt.Sprintf("%s (chunk %d)", m.phase, m.chunk+1)
	}
	if m.cancelling && !m.finished {
		status = "cancelling…"
	}
	b.WriteString(formatter.Dim(status))
	b.WriteString("\n")
	b.WriteString(tuiBorder.Render(m.logs.View()))
	b.WriteString("\n")
	if !m.finished {
		b.WriteString(formatter.Dim("q / ctrl+c to cancel · ↑/↓ to scroll"))
	}
	return b.String()
}
