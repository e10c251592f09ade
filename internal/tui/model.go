// Package tui is the interactive chat screen.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/render"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/chat"
)

// snapshotMsg carries a session snapshot published during a submission
type snapshotMsg struct {
	snap chat.Snapshot
}

// submitDoneMsg is returned once Submit has returned
type submitDoneMsg struct {
	err error
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(render.Primary).
			Bold(true).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(render.Muted).
			Italic(true).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(render.Muted).
			Padding(0, 1)
)

// Options configures submissions made from the chat screen
type Options struct {
	Attachments []agentModels.Attachment // Sent with the first message only
	JSONSchema  json.RawMessage
}

// Model is the chat screen.
// It is used as a pointer so the program sender can be attached after
// tea.NewProgram.
type Model struct {
	ctx      context.Context
	session  *chat.Session
	renderer *render.Renderer
	opts     Options
	logger   *slog.Logger
	send     func(tea.Msg)

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	keys     keyMap

	snap   chat.Snapshot
	status string
	width  int
	height int
}

// New creates the chat screen for session
func New(ctx context.Context, session *chat.Session, opts Options, logger *slog.Logger) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask the agent…"
	ti.CharLimit = config.MaxQueryLength
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctx:      ctx,
		session:  session,
		renderer: render.New(render.DefaultStyles(), 0),
		opts:     opts,
		logger:   logger,
		send:     func(tea.Msg) {},
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		keys:     defaultKeyMap(),
		snap:     session.Snapshot(),
	}
}

// SetSender attaches the function used to deliver snapshots from the
// submission goroutine, normally (*tea.Program).Send.
func (m *Model) SetSender(send func(tea.Msg)) {
	m.send = send
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, session *chat.Session, opts Options, logger *slog.Logger) error {
	m := New(ctx, session, opts, logger)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.SetSender(p.Send)

	_, err := p.Run()
	session.Cancel()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.renderer.SetWidth(msg.Width)
		m.layout()
		m.refresh()
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.snap = m.session.Snapshot()
		m.status = ""
		if msg.err != nil && !isReplyError(msg.err) {
			m.status = msg.err.Error()
		}
		m.input.Focus()
		m.refresh()
		return m, textinput.Blink

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.session.Cancel()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Cancel):
			if m.session.Cancel() {
				m.status = "stopping…"
			}
			return m, nil

		case key.Matches(msg, m.keys.ToggleMode):
			mode := m.session.ToggleMode()
			m.snap.Mode = mode
			m.status = "mode: " + string(mode)
			return m, nil

		case key.Matches(msg, m.keys.NewChat):
			if err := m.session.Reset(); err != nil {
				m.status = "finish or stop the current reply first"
				return m, nil
			}
			m.snap = m.session.Snapshot()
			m.status = "new conversation"
			m.refresh()
			return m, nil

		case key.Matches(msg, m.keys.Submit):
			return m, m.submit()
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit returns the command running one submission, or nil when the input
// is empty or a reply is in flight.
func (m *Model) submit() tea.Cmd {
	if m.snap.InFlight {
		return nil
	}
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return nil
	}

	in := chat.SubmitInput{
		Query:       query,
		Attachments: m.opts.Attachments,
		JSONSchema:  m.opts.JSONSchema,
	}
	m.opts.Attachments = nil

	m.input.Reset()
	m.input.Blur()
	m.snap.InFlight = true
	m.status = ""

	ctx, session, send := m.ctx, m.session, m.send
	return func() tea.Msg {
		_, err := session.Submit(ctx, in, func(snap chat.Snapshot) {
			send(snapshotMsg{snap: snap})
		})
		return submitDoneMsg{err: err}
	}
}

// View implements tea.Model
func (m *Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		m.viewport.View(),
		m.footer(),
	)
}

func (m *Model) header() string {
	title := "WaterCrawl agent · " + string(m.snap.Mode)
	if m.snap.ConversationID != "" {
		title += " · " + m.snap.ConversationID
	}
	return headerStyle.Render(title)
}

func (m *Model) footer() string {
	var line string
	if m.snap.InFlight {
		line = m.spinner.View() + " waiting for the agent…"
	} else {
		line = m.input.View()
	}

	parts := []string{line}
	if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}

	help := make([]string, 0, len(m.keys.help()))
	for _, b := range m.keys.help() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	parts = append(parts, helpStyle.Render(strings.Join(help, " • ")))
	return strings.Join(parts, "\n")
}

func (m *Model) layout() {
	footerHeight := lipgloss.Height(m.footer()) + 1
	headerHeight := lipgloss.Height(m.header())
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-headerHeight-footerHeight, 1)
}

func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderer.Transcript(m.snap.History, m.snap.Live, m.snap.Err))
	if atBottom || m.snap.InFlight {
		m.viewport.GotoBottom()
	}
}

// isReplyError reports whether err is already shown as the transcript banner
func isReplyError(err error) bool {
	var streamErr *agentModels.StreamError
	return errors.As(err, &streamErr)
}
