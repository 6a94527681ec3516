// Package tui provides the BubbleTea-based terminal user interface.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeCompose
	ModeHelp
)

const (
	maxLogEntries  = 8
	eventBuffer    = 64
	actionSep      = "|"
	refreshEvery   = time.Second
	statusDuration = 3 * time.Second
)

// Queue is the part of snackbar.Queue the TUI drives.
type Queue interface {
	Submit(req snackbar.Request) (string, error)
	Close() bool
	CloseAll() int
	Len() int
}

// Model is the main TUI model.
type Model struct {
	queue  Queue
	bridge *Bridge
	events chan snackbar.Event

	mode  Mode
	input textinput.Model
	help  help.Model
	keys  KeyMap

	snap    Snapshot
	log     []snackbar.Event
	pending int
	width   int
	height  int
	ready   bool

	statusMsg string
	statusErr bool

	copy func(string) error
	now  func() time.Time
}

// New creates a new TUI model. Subscribe Listener() to the queue so the
// event log is populated.
func New(q Queue, b *Bridge) Model {
	input := textinput.New()
	input.Placeholder = "Message | Action | Action..."
	input.CharLimit = 200

	return Model{
		queue:  q,
		bridge: b,
		events: make(chan snackbar.Event, eventBuffer),
		mode:   ModeNormal,
		input:  input,
		help:   help.New(),
		keys:   DefaultKeyMap(),
		snap:   b.Snapshot(),
		copy:   copyText,
		now:    time.Now,
	}
}

// Listener returns a queue listener feeding the event log. Events are dropped
// when the log falls behind.
func (m Model) Listener() snackbar.Listener {
	ch := m.events
	return func(ev snackbar.Event) {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChange,
		m.waitForEvent,
		tick(),
	)
}

type snapshotMsg Snapshot

type eventMsg snackbar.Event

type tickMsg time.Time

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

type submitResultMsg struct {
	id  string
	err error
}

type actionResultMsg struct {
	label string
	err   error
}

type closeResultMsg struct {
	closed  bool
	dropped int
	all     bool
}

// waitForChange blocks until the bridge reports a display change.
func (m Model) waitForChange() tea.Msg {
	<-m.bridge.Changed()
	return snapshotMsg(m.bridge.Snapshot())
}

// waitForEvent blocks until the queue emits an event.
func (m Model) waitForEvent() tea.Msg {
	return eventMsg(<-m.events)
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.input.Width = msg.Width - 12
		return m, nil

	case snapshotMsg:
		m.snap = Snapshot(msg)
		return m, m.waitForChange

	case eventMsg:
		m.log = append(m.log, snackbar.Event(msg))
		if len(m.log) > maxLogEntries {
			m.log = m.log[len(m.log)-maxLogEntries:]
		}
		if m.queue != nil {
			m.pending = m.queue.Len()
		}
		return m, m.waitForEvent

	case tickMsg:
		return m, tick()

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(statusDuration, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case submitResultMsg:
		if msg.err != nil {
			return m, status("Rejected: "+msg.err.Error(), true)
		}
		return m, status("Queued "+msg.id, false)

	case actionResultMsg:
		if msg.err != nil {
			return m, status(msg.err.Error(), true)
		}
		return m, status("Ran "+msg.label, false)

	case closeResultMsg:
		if msg.all {
			return m, status(fmt.Sprintf("Closed all, dropped %d pending", msg.dropped), false)
		}
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied to clipboard", false)
	}

	if m.mode == ModeCompose {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeCompose:
		return m.handleComposeKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Cancel) {
			m.mode = ModeNormal
			m.help.ShowAll = false
		}
		return m, nil
	}
	return m.handleNormalKey(msg)
}

// handleNormalKey handles keys while the snackbar has focus.
func (m Model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	q := m.queue
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.mode = ModeHelp
		m.help.ShowAll = true
		return m, nil

	case key.Matches(msg, m.keys.Compose):
		m.mode = ModeCompose
		m.input.SetValue("")
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Action):
		slot := int(msg.Runes[0] - '0')
		b := m.bridge
		return m, func() tea.Msg {
			label, err := b.Invoke(slot)
			if err != nil {
				return actionResultMsg{err: err}
			}
			q.Close()
			return actionResultMsg{label: label}
		}

	case key.Matches(msg, m.keys.Close):
		return m, func() tea.Msg {
			return closeResultMsg{closed: q.Close()}
		}

	case key.Matches(msg, m.keys.CloseAll):
		return m, func() tea.Msg {
			return closeResultMsg{dropped: q.CloseAll(), all: true}
		}

	case key.Matches(msg, m.keys.Copy):
		if !m.snap.Visible || m.snap.Message == "" {
			return m, status("Nothing to copy", true)
		}
		return m, m.copyToClipboard(m.snap.Message)
	}
	return m, nil
}

// handleComposeKey handles keys in compose mode.
func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = ModeNormal
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		req, err := parseCompose(m.input.Value())
		m.mode = ModeNormal
		m.input.Blur()
		m.input.SetValue("")
		if err != nil {
			return m, status(err.Error(), true)
		}
		q := m.queue
		return m, func() tea.Msg {
			id, err := q.Submit(req)
			return submitResultMsg{id: id, err: err}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// parseCompose turns "message | Label | Label" into a request whose actions
// do nothing beyond closing the notification.
func parseCompose(text string) (snackbar.Request, error) {
	parts := strings.Split(text, actionSep)
	msg := strings.TrimSpace(parts[0])
	if msg == "" {
		return snackbar.Request{}, errors.New("type a message first")
	}
	req := snackbar.Request{Message: msg}
	for _, p := range parts[1:] {
		label := strings.TrimSpace(p)
		if label == "" {
			continue
		}
		req.Actions = append(req.Actions, snackbar.Action{Label: label, Handler: func() {}})
	}
	return req, nil
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("bigsnackbar"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d pending", m.pending)))
	b.WriteString("\n\n")

	if m.mode == ModeHelp {
		b.WriteString(m.help.View(m.keys))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.viewLog())
	b.WriteString("\n")

	if m.mode == ModeCompose {
		b.WriteString("New: " + m.input.View() + "\n")
	}

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		b.WriteString(statusStyle.Render(m.statusMsg) + "\n")
	}

	b.WriteString(m.viewSnackbar())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) viewLog() string {
	if len(m.log) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("No notifications yet. Press n to compose one.") + "\n"
	}

	kindStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Width(11)
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	now := m.now()
	for i := len(m.log) - 1; i >= 0; i-- {
		ev := m.log[i]
		line := kindStyle.Render(ev.Kind.String()) + " " + ev.Request.Message
		if ev.Reason != snackbar.DismissNone {
			line += " (" + ev.Reason.String() + ")"
		}
		line += "  " + timeStyle.Render(humanize.RelTime(ev.At, now, "ago", "from now"))
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) viewSnackbar() string {
	if !m.snap.Visible {
		return ""
	}

	width := m.width - 2
	if width < 20 {
		width = 20
	}
	bar := lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1).
		Width(width)
	actionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

	content := m.snap.Message
	if m.snap.ActionsVisible && len(m.snap.Labels) > 0 {
		labels := make([]string, len(m.snap.Labels))
		for i, l := range m.snap.Labels {
			labels[i] = actionStyle.Render(fmt.Sprintf("[%d] %s", i+1, strings.ToUpper(l)))
		}
		content += "    " + strings.Join(labels, "  ")
	}
	return bar.Render(content)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Queue  *snackbar.Queue
	Bridge *Bridge
}

// Run starts the TUI and blocks until the user quits.
func Run(opts RunOptions) error {
	m := New(opts.Queue, opts.Bridge)
	opts.Queue.Subscribe(m.Listener())

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
