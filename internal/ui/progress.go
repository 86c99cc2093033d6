package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"nachos/internal/stress"
)

type progressModel struct {
	title   string
	events  <-chan stress.Event
	spinner spinner.Model
	prog    progress.Model
	rows    []scenarioRow
	index   map[string]int
	total   int
	width   int
	done    bool
}

// scenarioRow aggregates every seed of one scenario.
type scenarioRow struct {
	name    string
	seeds   int
	running int
	passed  int
	failed  int
}

func (r scenarioRow) finished() int { return r.passed + r.failed }

func (r scenarioRow) status() string {
	switch {
	case r.finished() == r.seeds && r.failed > 0:
		return "error"
	case r.finished() == r.seeds:
		return "done"
	case r.running > 0 || r.finished() > 0:
		return "running"
	default:
		return "queued"
	}
}

type eventMsg stress.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders stress progress
// for the runs in plan, fed by events until the channel is closed.
func NewProgressModel(title string, plan []stress.Event, events <-chan stress.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76 // Default width

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int),
		total:   len(plan),
		width:   80,
	}
	for _, run := range plan {
		idx, ok := m.index[run.Scenario]
		if !ok {
			idx = len(m.rows)
			m.index[run.Scenario] = idx
			m.rows = append(m.rows, scenarioRow{name: run.Scenario})
		}
		m.rows[idx].seeds++
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(stress.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.rows) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d runs)", m.title, m.finished(), m.total)
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	countWidth := 22
	nameWidth := m.width - statusWidth - countWidth - 6
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, row := range m.rows {
		status := row.status()
		statusStyled := styleStatus(status).Render(fmt.Sprintf("%12s", status))
		counts := fmt.Sprintf("%d/%d seeds", row.finished(), row.seeds)
		if row.failed > 0 {
			counts += fmt.Sprintf(", %d failed", row.failed)
		}
		name := runewidth.FillRight(truncate(row.name, nameWidth), nameWidth)
		b.WriteString(fmt.Sprintf("  %s %s %s\n", statusStyled, name, counts))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev stress.Event) tea.Cmd {
	idx, ok := m.index[ev.Scenario]
	if !ok {
		return nil
	}
	row := &m.rows[idx]
	switch ev.Status {
	case stress.StatusWorking:
		row.running++
	case stress.StatusDone:
		row.running = max(row.running-1, 0)
		row.passed++
	case stress.StatusError:
		row.running = max(row.running-1, 0)
		row.failed++
	default:
		return nil
	}
	if m.total == 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.finished()) / float64(m.total))
}

func (m *progressModel) finished() int {
	n := 0
	for _, row := range m.rows {
		n += row.finished()
	}
	return n
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "running":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
