// Package ui renders the progress of a run in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"errdeltas/internal/orchestrator"
)

type progressModel struct {
	title   string
	events  <-chan orchestrator.Event
	spinner spinner.Model
	prog    progress.Model
	items   []repoItem
	index   map[string]int
	width   int
	done    bool
}

type repoItem struct {
	name   string
	status string
	stage  orchestrator.Stage
	final  bool
}

type eventMsg orchestrator.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that lists repositories as the
// run reaches them. It quits when events is closed.
func NewProgressModel(title string, events <-chan orchestrator.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int),
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(orchestrator.Event(msg))
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
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d)", m.title, m.finished(), len(m.items))
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 16
	nameWidth := max(m.width-statusWidth-4, 20)

	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%*s", statusWidth, item.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(item.name, nameWidth))
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

func (m *progressModel) applyEvent(ev orchestrator.Event) tea.Cmd {
	if ev.Repo == "" {
		return nil
	}
	idx, ok := m.index[ev.Repo]
	if !ok {
		idx = len(m.items)
		m.index[ev.Repo] = idx
		m.items = append(m.items, repoItem{name: ev.Repo, status: "queued"})
	}
	item := &m.items[idx]

	if ev.Stage == "" && ev.Status != orchestrator.StatusQueued {
		// repository finished
		item.final = true
		item.status = ev.Detail
		if item.status == "" {
			item.status = string(ev.Status)
		}
	} else if label := statusLabel(ev.Stage, ev.Status); label != "" && !item.final {
		item.status = label
		item.stage = ev.Stage
	}

	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) finished() int {
	n := 0
	for _, item := range m.items {
		if item.final {
			n++
		}
	}
	return n
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		if item.final {
			total += 1.0
		} else {
			total += progressFromStage(item.stage)
		}
	}
	return total / float64(len(m.items))
}

func progressFromStage(stage orchestrator.Stage) float64 {
	switch stage {
	case orchestrator.StageClone:
		return 0.05
	case orchestrator.StageInstall:
		return 0.2
	case orchestrator.StageBuildOld:
		return 0.45
	case orchestrator.StageBuildNew:
		return 0.75
	case orchestrator.StageCompare:
		return 0.95
	default:
		return 0.0
	}
}

func statusLabel(stage orchestrator.Stage, status orchestrator.Status) string {
	switch status {
	case orchestrator.StatusQueued:
		return "queued"
	case orchestrator.StatusError:
		return "error"
	case orchestrator.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage orchestrator.Stage) string {
	switch stage {
	case orchestrator.StageClone:
		return "cloning"
	case orchestrator.StageInstall:
		return "installing"
	case orchestrator.StageBuildOld:
		return "building (old)"
	case orchestrator.StageBuildNew:
		return "building (new)"
	case orchestrator.StageCompare:
		return "comparing"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case string(orchestrator.ResultCompared), string(orchestrator.ResultAllOldFailed), string(orchestrator.ResultOldGraphFailure):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error", string(orchestrator.ResultCloneFailed), string(orchestrator.ResultInstallFailed), string(orchestrator.ResultBuildFailed):
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "cloning", "installing", "building (old)", "building (new)", "comparing":
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
	return runewidth.Truncate(value, width-3, "...")
}
