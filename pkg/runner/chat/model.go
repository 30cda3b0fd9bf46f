package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/events"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/reconcile"
)

const headerHeight = 2
const footerHeight = 3

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// sendResultMsg carries the outcome of a background write.
type sendResultMsg struct {
	localID string
	err     error
}

type model struct {
	ctx      context.Context
	ctrl     *reconcile.Controller
	user     string
	channels []string
	active   int
	session  string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
	status string
	ready  bool
}

func newModel(ctx context.Context, ctrl *reconcile.Controller, channels []string, session, user string) model {
	in := textinput.New()
	in.Placeholder = "How are you feeling?"
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		ctx:      ctx,
		ctrl:     ctrl,
		user:     user,
		channels: channels,
		session:  session,
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

func (m model) channel() string {
	return m.channels[m.active]
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		events.WaitCmd(m.ctrl.Events()),
		events.WaitCmd(m.ctrl.Drafts().Events()),
	)
}

// activate points the controller at the highlighted tab. It runs inside
// Update so that a send right after a tab switch targets the new channel.
func (m model) activate() error {
	if ch, session := m.ctrl.Active(); ch == m.channel() && session == m.session {
		return nil
	}
	return m.ctrl.SwitchSession(m.ctx, m.channel(), m.session)
}

func waitResult(localID string, done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{localID: localID, err: <-done}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "shift+tab":
			m.ctrl.Drafts().SetFocused(m.channel(), false)
			step := 1
			if msg.String() == "shift+tab" {
				step = len(m.channels) - 1
			}
			m.active = (m.active + step) % len(m.channels)
			m.input.SetValue(m.ctrl.Drafts().Get(m.channel()))
			m.input.CursorEnd()
			m.ctrl.Drafts().SetFocused(m.channel(), true)
			m.status = ""
			if err := m.activate(); err != nil {
				m.status = err.Error()
			}
			return m, nil
		case "enter":
			if err := m.activate(); err != nil {
				m.status = err.Error()
				return m, nil
			}
			localID, done := m.ctrl.Submit(m.ctx, m.input.Value())
			if localID == "" {
				return m, nil
			}
			m.input.Reset()
			m.status = ""
			return m, waitResult(localID, done)
		case "ctrl+r":
			if id := lastFailed(m.ctrl.View()); id != "" {
				localID, done := m.ctrl.Retry(m.ctx, id)
				if localID != "" {
					m.input.Reset()
					return m, waitResult(localID, done)
				}
			}
			return m, nil
		case "ctrl+x":
			if id := lastFailed(m.ctrl.View()); id != "" {
				if err := m.ctrl.Discard(id); err != nil {
					m.status = err.Error()
				}
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.ctrl.Drafts().Set(m.channel(), m.input.Value())
		return m, cmd

	case events.ViewChangeMsg:
		m.ready = true
		m.refresh()
		cmds = append(cmds, events.WaitCmd(m.ctrl.Events()))

	case events.PendingChangeMsg, events.ChannelSwitchMsg:
		cmds = append(cmds, events.WaitCmd(m.ctrl.Events()))

	case events.DraftChangeMsg:
		// A failed send puts its text back into the draft.
		if msg.Channel == m.channel() && m.input.Value() == "" && msg.Text != "" {
			m.input.SetValue(msg.Text)
			m.input.CursorEnd()
		}
		cmds = append(cmds, events.WaitCmd(m.ctrl.Drafts().Events()))

	case sendResultMsg:
		if msg.err != nil {
			m.status = m.failedStatus(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.ctrl.View().Loading || m.ctrl.View().PendingCount() > 0 {
			m.refresh()
		}
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// failedStatus explains a failed send. When a newer draft kept the text
// from being restored, the text is quoted so it can still be copied.
func (m model) failedStatus(res sendResultMsg) string {
	status := fmt.Sprintf("not sent: %v (ctrl+r retry, ctrl+x discard)", rootCause(res.err))
	for _, e := range m.ctrl.View().Entries {
		if e.LocalID != res.localID || e.Status != reconcile.StatusFailed {
			continue
		}
		if strings.TrimSpace(m.ctrl.Drafts().Get(m.channel())) != e.Content {
			status += fmt.Sprintf("\nunsent text: %q", e.Content)
		}
	}
	return status
}

func (m *model) refresh() {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	m.viewport.SetContent(render(m.ctrl.View(), width, m.spinner.View()))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder

	tabs := make([]string, 0, len(m.channels))
	for i, ch := range m.channels {
		if i == m.active {
			tabs = append(tabs, activeTabStyle.Render(ch))
			continue
		}
		tabs = append(tabs, tabStyle.Render(ch))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("nafsy "), lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	if m.user != "" {
		header += helpStyle.Render("  " + m.user)
	}
	b.WriteString(header + "\n\n")

	if !m.ready {
		b.WriteString(m.spinner.View() + " connecting…\n")
	} else {
		b.WriteString(m.viewport.View() + "\n")
	}

	b.WriteString(m.input.View() + "\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
	} else {
		b.WriteString(helpStyle.Render("enter send • tab switch channel • ctrl+r retry • ctrl+x discard • esc quit"))
	}
	return b.String()
}

// render lays out a view model as chat lines wrapped to width.
func render(vm reconcile.ViewModel, width int, spin string) string {
	if len(vm.Entries) == 0 && !vm.Loading {
		return pendingStyle.Render("No messages yet.")
	}
	var b strings.Builder
	if vm.Truncated {
		b.WriteString(pendingStyle.Render(fmt.Sprintf("… %d earlier", vm.Total-len(vm.Entries))) + "\n")
	}
	for _, e := range vm.Entries {
		who := userStyle.Render("you")
		if e.Role == "assistant" {
			who = assistantStyle.Render("nafsy")
		}
		b.WriteString(who)
		switch e.Status {
		case reconcile.StatusSending:
			b.WriteString(" " + pendingStyle.Render(spin))
		case reconcile.StatusSent:
			b.WriteString(" " + pendingStyle.Render("✓"))
		case reconcile.StatusFailed:
			b.WriteString(" " + failedStyle.Render("✗ failed"))
		}
		b.WriteString("\n")
		b.WriteString(wordwrap.String(e.Content, max(width-2, 10)))
		b.WriteString("\n\n")
	}
	switch {
	case vm.Loading:
		b.WriteString(pendingStyle.Render(spin + " loading"))
	case vm.Offline:
		b.WriteString(statusStyle.Render("offline: showing last known messages"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func lastFailed(vm reconcile.ViewModel) string {
	for i := len(vm.Entries) - 1; i >= 0; i-- {
		if vm.Entries[i].Status == reconcile.StatusFailed {
			return vm.Entries[i].LocalID
		}
	}
	return ""
}

func rootCause(err error) error {
	var sendErr *reconcile.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Err
	}
	return err
}
