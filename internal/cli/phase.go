package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/tracker"
)

// phaseMsg carries the updated analysis snapshot after a refresh.
type phaseMsg struct {
	phase models.PhaseRecord
	done  bool
}

// phaseModel is the bubbletea model for one deep-analysis job.
type phaseModel struct {
	tracker  *tracker.AnalysisTracker
	interval time.Duration
	phase    models.PhaseRecord
	bar      progress.Model
	theme    Theme
	done     bool
	quitting bool
}

func newPhaseModel(tr *tracker.AnalysisTracker, interval time.Duration) phaseModel {
	bar := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return phaseModel{
		tracker:  tr,
		interval: interval,
		phase:    tr.Phase(),
		bar:      bar,
		theme:    defaultTheme,
	}
}

func (m phaseModel) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		m.bar.Init(),
	)
}

func (m phaseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.refreshCmd()

	case phaseMsg:
		m.phase = msg.phase
		if msg.done {
			m.done = true
			return m, tea.Quit
		}
		return m, m.tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m phaseModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m phaseModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.phase.State))
	bar := m.bar.ViewAs(m.phase.OverallProgress() / 100)
	phase := fmt.Sprintf("phase %d/%d: %s",
		m.phase.CurrentPhase, models.PhaseCount, models.PhaseName(m.phase.CurrentPhase))

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")
	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, phase, hint)
}

func (m phaseModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nAnalysis %s continues in background.\n", m.tracker.JobID())
		return m.theme.hintStyle().Render(msg)
	}

	switch m.phase.State {
	case models.AnalysisFailed:
		return m.theme.errorStyle().Render("\n✗ Analysis failed\n")
	case models.AnalysisCancelled:
		return m.theme.warningStyle().Render("\n◌ Analysis cancelled\n")
	}

	result := m.tracker.Result()
	if result == nil {
		return m.theme.completedStyle().Render("✓ Analysis completed\n")
	}

	var out string
	out += m.theme.completedStyle().Render("✓ Analysis completed") + "\n\n"
	out += fmt.Sprintf("  Subject: %s\n", result.Subject)
	for _, c := range result.Clusters {
		out += fmt.Sprintf("  • %s (%d questions)\n", c.Name, c.Size)
	}
	if len(result.HotTopics) > 0 {
		out += "\n  Hot topics:\n"
		for _, topic := range result.HotTopics {
			out += fmt.Sprintf("    - %s\n", topic)
		}
	}
	return out
}

func (m phaseModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = m.tracker.Refresh(ctx)
		return phaseMsg{phase: m.tracker.Phase(), done: m.tracker.Done()}
	}
}

func (m phaseModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunPhaseProgress runs the interactive progress UI for one analysis job.
func RunPhaseProgress(tr *tracker.AnalysisTracker, interval time.Duration) error {
	model := newPhaseModel(tr, interval)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	return nil
}
