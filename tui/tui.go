package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Oudwins/shellrunner/internals/cliutil"
	"github.com/Oudwins/shellrunner/internals/schemas"
	"github.com/Oudwins/shellrunner/internals/timeouts"
	"github.com/Oudwins/shellrunner/sdk"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Client is the part of the daemon API the TUI drives.
type Client interface {
	RunStatus(ctx context.Context) (*schemas.RunSnapshot, error)
	StartRun(ctx context.Context) (*schemas.RunStartResponse, error)
	StopRun(ctx context.Context) (*schemas.RunSnapshot, error)
	CreateTask(ctx context.Context, request schemas.TaskCreateRequest) (*schemas.Task, error)
	CreateReport(ctx context.Context) (*schemas.ReportResponse, error)
	Events(ctx context.Context, since uint64, wait bool) (*schemas.EventsResponse, error)
}

var _ Client = (*sdk.Client)(nil)

const maxOutputLines = 2000

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	statusStyles = map[schemas.TaskStatus]lipgloss.Style{
		schemas.TaskStatusPending:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		schemas.TaskStatusRunning:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		schemas.TaskStatusCompleted:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		schemas.TaskStatusError:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		schemas.TaskStatusInterrupted: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	}
)

type snapshotMsg struct {
	snapshot *schemas.RunSnapshot
	err      error
}

type eventsMsg struct {
	events *schemas.EventsResponse
	err    error
}

type retryMsg struct{}

// noticeMsg reports the result of a key action on the status line.
type noticeMsg struct {
	text string
	err  error
}

type model struct {
	client Client

	snapshot schemas.RunSnapshot
	output   []string
	cursor   uint64
	viewport viewport.Model
	width    int

	adding bool
	inputs []textinput.Model
	focus  int

	notice    string
	noticeErr bool
}

func Run(client *sdk.Client) error {
	program := tea.NewProgram(newModel(client), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func newModel(client Client) model {
	name := textinput.New()
	name.Prompt = "Name: "
	command := textinput.New()
	command.Prompt = "Command: "
	description := textinput.New()
	description.Prompt = "Description (optional): "

	return model{
		client:   client,
		viewport: viewport.New(80, 10),
		inputs:   []textinput.Model{name, command, description},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchSnapshot(), m.pollEvents(false))
}

func (m model) fetchSnapshot() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
		defer cancel()
		snapshot, err := client.RunStatus(ctx)
		return snapshotMsg{snapshot: snapshot, err: err}
	}
}

func (m model) pollEvents(wait bool) tea.Cmd {
	client := m.client
	cursor := m.cursor
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondLong)
		defer cancel()
		events, err := client.Events(ctx, cursor, wait)
		return eventsMsg{events: events, err: err}
	}
}

func (m model) startRun() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
		defer cancel()
		if _, err := client.StartRun(ctx); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Run started."}
	}
}

func (m model) stopRun() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
		defer cancel()
		if _, err := client.StopRun(ctx); err != nil {
			if sdk.IsCode(err, "not_running") {
				return noticeMsg{text: "No task is currently running to stop."}
			}
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Stopping..."}
	}
}

func (m model) createReport() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondLong)
		defer cancel()
		report, err := client.CreateReport(ctx)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Report generated: " + report.Path}
	}
}

func (m model) createTask(request schemas.TaskCreateRequest) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
		defer cancel()
		task, err := client.CreateTask(ctx, request)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: fmt.Sprintf("Added task '%s'.", task.Name)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-len(m.snapshot.Tasks)-10, 5)
		m.refreshViewport()
		return m, nil
	case snapshotMsg:
		if msg.err != nil {
			m.setNotice("", msg.err)
			return m, nil
		}
		m.snapshot = *msg.snapshot
		return m, nil
	case eventsMsg:
		if msg.err != nil {
			m.setNotice("", msg.err)
			return m, tea.Tick(timeouts.SecondShort, func(time.Time) tea.Msg { return retryMsg{} })
		}
		refresh := m.applyEvents(msg.events)
		cmds := []tea.Cmd{m.pollEvents(true)}
		if refresh {
			cmds = append(cmds, m.fetchSnapshot())
		}
		return m, tea.Batch(cmds...)
	case retryMsg:
		return m, m.pollEvents(true)
	case noticeMsg:
		m.setNotice(msg.text, msg.err)
		return m, m.fetchSnapshot()
	case tea.KeyMsg:
		if m.adding {
			return m.updateForm(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			return m, m.startRun()
		case "x":
			return m, m.stopRun()
		case "r":
			return m, m.createReport()
		case "a":
			m.adding = true
			m.focus = 0
			for i := range m.inputs {
				m.inputs[i].Reset()
				m.inputs[i].Blur()
			}
			return m, m.inputs[0].Focus()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// applyEvents appends event text to the output pane and reports whether the
// task list needs refreshing.
func (m *model) applyEvents(response *schemas.EventsResponse) bool {
	m.cursor = response.Next
	refresh := false
	for _, event := range response.Events {
		if event.Type != schemas.EventOutput {
			refresh = true
		}
		text, ok := cliutil.FormatEvent(event)
		if !ok {
			continue
		}
		if event.Type == schemas.EventNotice {
			text = noticeStyle.Render(text)
		}
		m.output = append(m.output, text)
	}
	if over := len(m.output) - maxOutputLines; over > 0 {
		m.output = append(m.output[:0], m.output[over:]...)
	}
	m.refreshViewport()
	return refresh
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.output, "\n"))
	m.viewport.GotoBottom()
}

func (m *model) setNotice(text string, err error) {
	if err != nil {
		m.notice = "Error: " + err.Error()
		m.noticeErr = true
		return
	}
	m.notice = text
	m.noticeErr = false
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.adding = false
		return m, nil
	case "tab", "down":
		return m.moveFocus(1)
	case "shift+tab", "up":
		return m.moveFocus(-1)
	case "enter":
		if m.focus < len(m.inputs)-1 {
			return m.moveFocus(1)
		}
		request := schemas.TaskCreateRequest{
			Name:        m.inputs[0].Value(),
			Command:     m.inputs[1].Value(),
			Description: m.inputs[2].Value(),
		}
		if issues := schemas.TaskCreateSchema.Validate(&request); len(issues) > 0 {
			m.setNotice("", fmt.Errorf("name and command are required"))
			return m, nil
		}
		m.adding = false
		return m, m.createTask(request)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	count := len(m.inputs)
	m.focus = (m.focus + delta + count) % count
	return m, m.inputs[m.focus].Focus()
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("shellrunner"))
	b.WriteString("  " + string(m.snapshot.State))
	if m.snapshot.LastFinish != "" && !m.snapshot.State.Active() {
		b.WriteString(" (" + string(m.snapshot.LastFinish) + ")")
	}
	b.WriteString("\n\n")
	b.WriteString(m.taskList())
	b.WriteString("\n")

	if m.adding {
		lines := []string{"Add task", ""}
		for i, input := range m.inputs {
			marker := " "
			if i == m.focus {
				marker = ">"
			}
			lines = append(lines, fmt.Sprintf("%s %s", marker, input.View()))
		}
		lines = append(lines, "", helpStyle.Render("Tab: next field  Enter: submit  Esc: cancel"))
		b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))
	} else {
		b.WriteString(panelStyle.Render(m.viewport.View()))
	}
	b.WriteString("\n")

	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.notice) + "\n")
	}
	b.WriteString(helpStyle.Render("s: start  x: stop  a: add  r: report  q: quit"))
	return b.String()
}

func (m model) taskList() string {
	if len(m.snapshot.Tasks) == 0 {
		return helpStyle.Render("No tasks. Press a to add one.") + "\n"
	}
	width := m.width - 30
	if width < 20 {
		width = 40
	}
	var b strings.Builder
	for i, task := range m.snapshot.Tasks {
		marker := "  "
		if m.snapshot.State.Active() && i == m.snapshot.Position {
			marker = "> "
		}
		status := statusStyles[task.Status].Render(fmt.Sprintf("%-11s", task.Status))
		fmt.Fprintf(&b, "%s%s %s  %s\n", marker, status, task.Name, helpStyle.Render(cliutil.Truncate(task.Command, width)))
	}
	return b.String()
}
