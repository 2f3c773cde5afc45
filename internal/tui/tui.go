package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdf-chat/internal/helper"
	"pdf-chat/internal/models"
	"pdf-chat/internal/parser"
	"pdf-chat/internal/session"
)

const (
	processCommand = "/process"
	quitCommand    = "/quit"
	welcome        = "Load PDFs with /process file.pdf ... then ask a question. /quit leaves."
)

type processedMsg struct{ result *session.ProcessResult }

type answeredMsg struct{ answer string }

type errMsg struct{ err error }

// Model is a terminal chat over one session.
type Model struct {
	ctx     context.Context
	session *session.Session
	title   string
	initial []string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *historyRenderer
	styles   styles

	busy   bool
	status string
	err    error
	width  int
}

// New creates the model. paths, when given, are processed on start.
func New(ctx context.Context, sess *session.Session, title string, paths []string) Model {
	in := textinput.New()
	in.Placeholder = "Ask a question about your documents"
	in.Prompt = "> "
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	st := defaultStyles()
	sp.Style = st.Bot

	vp := viewport.New(80, 20)
	vp.SetContent(welcome)

	return Model{
		ctx:      ctx,
		session:  sess,
		title:    title,
		initial:  paths,
		input:    in,
		viewport: vp,
		spinner:  sp,
		renderer: newHistoryRenderer(80, st),
		styles:   st,
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if len(m.initial) > 0 {
		cmds = append(cmds, m.process(m.initial))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.renderer = newHistoryRenderer(msg.Width, m.styles)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			cmd, quit := m.submit()
			if quit {
				return m, tea.Quit
			}
			return m, cmd
		}

	case processedMsg:
		m.busy = false
		m.err = nil
		m.status = fmt.Sprintf("Processed %s into %s.", helper.Pluralize(msg.result.Documents, "document"), helper.Pluralize(len(msg.result.Chunks), "chunk"))
		m.refresh()

	case answeredMsg:
		m.busy = false
		m.err = nil
		m.status = ""
		if m.session.State() != session.Ready {
			m.status = msg.answer
		}
		m.refresh()

	case errMsg:
		m.busy = false
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles the entered line. It reports whether the program should exit.
func (m *Model) submit() (tea.Cmd, bool) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" || m.busy {
		return nil, false
	}
	m.input.Reset()

	fields := strings.Fields(line)
	switch fields[0] {
	case quitCommand:
		return nil, true
	case processCommand:
		if len(fields) == 1 {
			m.err = fmt.Errorf("usage: %s file.pdf ...", processCommand)
			return nil, false
		}
		m.busy = true
		m.status = "Processing"
		return m.process(fields[1:]), false
	default:
		m.busy = true
		m.status = "Thinking"
		return m.ask(line), false
	}
}

func (m Model) process(paths []string) tea.Cmd {
	return func() tea.Msg {
		files, closeAll, err := parser.OpenFiles(paths)
		if err != nil {
			return errMsg{err}
		}
		defer closeAll()
		res, err := m.session.Process(m.ctx, files)
		if err != nil {
			return errMsg{err}
		}
		return processedMsg{res}
	}
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.session.Ask(m.ctx, question)
		if err != nil {
			return errMsg{err}
		}
		return answeredMsg{answer}
	}
}

func (m *Model) refresh() {
	turns := m.session.History()
	if len(turns) == 0 {
		m.viewport.SetContent(welcome)
		return
	}
	m.viewport.SetContent(m.renderer.Render(turns))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var status string
	switch {
	case m.err != nil:
		status = m.styles.Error.Render("Error: " + m.err.Error())
	case m.busy:
		status = m.spinner.View() + " " + m.styles.Status.Render(m.status)
	case m.status == models.NotInitializedMessage:
		status = m.styles.Error.Render(m.status)
	default:
		status = m.styles.Status.Render(m.status)
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.styles.Title.Render(m.title),
		m.viewport.View(),
		status,
		m.input.View(),
	)
}
