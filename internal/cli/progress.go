package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/notify"
	"github.com/acssjr/examscan/internal/tracker"
)

// Theme holds the color scheme for the progress displays.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Warning:    lipgloss.Color("#FFAF00"), // amber
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers a status refresh
type tickMsg time.Time

// refreshedMsg carries the merged job snapshot after a refresh
type refreshedMsg struct {
	jobs          []models.JobRecord
	notifications []notify.Notification
}

// ingestModel is the bubbletea model tracking a batch of ingestion jobs.
type ingestModel struct {
	tracker  *tracker.Tracker
	broker   *notify.Broker
	interval time.Duration
	jobs     []models.JobRecord
	bar      progress.Model
	theme    Theme
	done     bool
	quitting bool
}

// newIngestModel creates a progress model over an already-populated tracker.
func newIngestModel(tr *tracker.Tracker, broker *notify.Broker, interval time.Duration) ingestModel {
	bar := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(30),
	)

	return ingestModel{
		tracker:  tr,
		broker:   broker,
		interval: interval,
		jobs:     tr.Jobs(),
		bar:      bar,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m ingestModel) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		m.bar.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.refreshCmd()

	case refreshedMsg:
		m.jobs = msg.jobs

		if !tracker.HasActiveWork(m.jobs) {
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

// View renders the progress display.
func (m ingestModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m ingestModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	var out string
	for _, job := range m.jobs {
		out += m.renderJob(job) + "\n"
	}

	for _, n := range m.broker.Pending() {
		out += m.theme.errorStyle().Render("! "+n.Message) + "\n"
	}

	out += m.theme.hintStyle().Render("Press Ctrl+C to continue in background") + "\n"
	return out
}

// renderJob renders one job line: status, bar or marker, label.
func (m ingestModel) renderJob(job models.JobRecord) string {
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%-10s]", job.State))

	switch job.State {
	case models.JobStateCompleted:
		return fmt.Sprintf("%s %s %s", status, m.theme.completedStyle().Render("✓"), job.Label)
	case models.JobStatePartial:
		return fmt.Sprintf("%s %s %s", status, m.theme.warningStyle().Render("◐"), job.Label)
	case models.JobStateFailed:
		line := fmt.Sprintf("%s %s %s", status, m.theme.errorStyle().Render("✗"), job.Label)
		if job.ErrorDetail != "" {
			line += m.theme.hintStyle().Render(" (" + job.ErrorDetail + ")")
		}
		return line
	}

	if !job.ProgressKnown() {
		return fmt.Sprintf("%s %s %s", status, m.bar.ViewAs(0), job.Label)
	}
	return fmt.Sprintf("%s %s %s", status, m.bar.ViewAs(float64(job.Progress)/100), job.Label)
}

// finalView renders the completion summary.
func (m ingestModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nIngestion continues in background. Use 'examscan jobs' to check status.\n")
	}

	var out string
	for _, job := range m.jobs {
		out += m.renderJob(job) + "\n"
		if job.ResultCounts != nil {
			out += fmt.Sprintf("    %d questions extracted", job.ResultCounts.Total)
			if job.ResultCounts.NeedsReview > 0 {
				out += m.theme.warningStyle().Render(fmt.Sprintf(", %d need review", job.ResultCounts.NeedsReview))
			}
			out += "\n"
		}
	}
	return out
}

// refreshCmd refreshes the tracker in a command goroutine so Update() never
// blocks on the network.
func (m ingestModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = m.tracker.Refresh(ctx)
		m.broker.Expire(time.Now())
		return refreshedMsg{jobs: m.tracker.Jobs(), notifications: m.broker.Pending()}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func (m ingestModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunIngestProgress runs the interactive progress UI over a tracker until
// no active work remains. Returns nil on completion or Ctrl+C (jobs keep
// running server-side).
func RunIngestProgress(tr *tracker.Tracker, broker *notify.Broker, interval time.Duration) error {
	model := newIngestModel(tr, broker, interval)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	return nil
}
