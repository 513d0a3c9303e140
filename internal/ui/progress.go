package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"mend/internal/driver"
)

// maxRows ограничивает список файлов на экране
const maxRows = 15

type progressModel struct {
	title   string
	events  <-chan driver.Event
	spinner spinner.Model
	prog    progress.Model
	items   []fileItem
	index   map[string]int
	width   int
	done    bool
}

type fileItem struct {
	path    string
	state   driver.State
	changed bool
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders a patch run.
// files are root-relative paths as reported in driver events; files first seen
// in an event are appended. The model quits when events is closed.
func NewProgressModel(title string, files []string, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76 // Default width

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file, state: driver.StateUnvisited})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(driver.Event(msg))
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
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	fixed, failed, finished := m.tally()
	header := fmt.Sprintf("%s (%d/%d, %d fixed", m.title, finished, len(m.items), fixed)
	if failed > 0 {
		header += fmt.Sprintf(", %d failed", failed)
	}
	header += ")"
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := max(m.width-statusWidth-4, 20)

	rows := m.visible()
	for _, item := range rows {
		status := statusLabel(item)
		statusStyled := styleStatus(status).Render(fmt.Sprintf("%12s", status))
		fmt.Fprintf(&b, "  %s %s\n", statusStyled, truncate(item.path, nameWidth))
	}
	if hidden := len(m.items) - len(rows); hidden > 0 {
		fmt.Fprintf(&b, "  %12s ... %d more\n", "", hidden)
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

// visible prefers failed and in-flight files over finished or queued ones.
func (m *progressModel) visible() []fileItem {
	if len(m.items) <= maxRows {
		return m.items
	}
	rows := make([]fileItem, 0, maxRows)
	for _, pass := range []func(fileItem) bool{
		func(it fileItem) bool { return it.state == driver.StateFailed },
		func(it fileItem) bool { return it.state != driver.StateUnvisited && it.state != driver.StateDone },
		func(it fileItem) bool { return it.state == driver.StateDone && it.changed },
	} {
		for _, it := range m.items {
			if len(rows) == maxRows {
				return rows
			}
			if pass(it) && !containsItem(rows, it.path) {
				rows = append(rows, it)
			}
		}
	}
	return rows
}

func containsItem(rows []fileItem, path string) bool {
	for _, r := range rows {
		if r.path == path {
			return true
		}
	}
	return false
}

func (m *progressModel) tally() (fixed, failed, finished int) {
	for _, it := range m.items {
		switch it.state {
		case driver.StateFailed:
			failed++
			finished++
		case driver.StateDone:
			finished++
			if it.changed {
				fixed++
			}
		}
	}
	return fixed, failed, finished
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

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	if ev.File == "" {
		return nil
	}
	idx, ok := m.index[ev.File]
	if !ok {
		// файл не был известен заранее (--from-build)
		idx = len(m.items)
		m.items = append(m.items, fileItem{path: ev.File, state: driver.StateUnvisited})
		m.index[ev.File] = idx
	}
	item := &m.items[idx]
	item.state = ev.State
	if ev.State == driver.StateTransformed || ev.State == driver.StateWritten {
		item.changed = true
	}

	totalProgress := 0.0
	for _, it := range m.items {
		totalProgress += progressFromState(it.state)
	}
	return m.prog.SetPercent(totalProgress / float64(len(m.items)))
}

func progressFromState(state driver.State) float64 {
	switch state {
	case driver.StateRead:
		return 0.2
	case driver.StateTransformed, driver.StateUnchanged:
		return 0.7
	case driver.StateWritten:
		return 0.9
	case driver.StateDone, driver.StateFailed:
		return 1.0
	default:
		return 0.0
	}
}

func statusLabel(item fileItem) string {
	switch item.state {
	case driver.StateUnvisited:
		return "queued"
	case driver.StateRead:
		return "reading"
	case driver.StateTransformed:
		return "patched"
	case driver.StateUnchanged:
		return "clean"
	case driver.StateWritten:
		return "written"
	case driver.StateFailed:
		return "error"
	case driver.StateDone:
		if item.changed {
			return "fixed"
		}
		return "ok"
	default:
		return string(item.state)
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "fixed", "written":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "reading", "patched":
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
	// ширина хвоста уже входит в width
	return runewidth.Truncate(value, width, "...")
}
