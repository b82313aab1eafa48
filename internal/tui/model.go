// Package tui is the full-screen Bubble Tea surface for the shopping chat.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ApparelChat/internal/chatbot"
	"ApparelChat/internal/conversation"
	"ApparelChat/internal/session"
)

// chrome is the number of rows taken by everything except the transcript.
const chrome = 7

type replyMsg struct{}

type toastsMsg struct{}

// Model is the Bubble Tea model wrapping a ChatBot
type Model struct {
	ctx      context.Context
	cb       *chatbot.ChatBot
	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme

	width      int
	height     int
	statusLine string
	statusErr  bool
	notice     string // multi-line command output shown under the transcript
}

// New builds the model. The toast scheduler is started by Init.
func New(ctx context.Context, cb *chatbot.ChatBot) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Placeholder = cb.Session().Placeholder()
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#e11d48"))

	m := Model{
		ctx:        ctx,
		cb:         cb,
		input:      input,
		timeline:   viewport.New(80, 20),
		spinner:    sp,
		theme:      newTheme(),
		statusLine: "ready",
	}
	m.renderTimeline()
	return m
}

// Run drives the program until the user quits
func Run(ctx context.Context, cb *chatbot.ChatBot) error {
	p := tea.NewProgram(New(ctx, cb), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	cb.Toasts().Stop()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	m.cb.Toasts().Start()
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForToasts())
}

func (m Model) waitForToasts() tea.Cmd {
	updates := m.cb.Toasts().Updates()
	return func() tea.Msg {
		<-updates
		return toastsMsg{}
	}
}

func waitForReply(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return replyMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTimeline()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case replyMsg:
		m.setStatus("ready", false)
		m.renderTimeline()
		return m, nil

	case toastsMsg:
		m.resize()
		m.renderTimeline()
		return m, m.waitForToasts()

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "ctrl+c", "esc":
			m.cb.Toasts().Stop()
			return m, tea.Quit
		case "ctrl+t":
			m.toggleMode()
			return m, nil
		case "ctrl+x":
			if active := m.cb.Toasts().Active(); len(active) > 0 {
				m.cb.Toasts().Dismiss(active[0].ID)
			}
			m.resize()
			m.renderTimeline()
			return m, nil
		case "pgup":
			m.timeline.ViewUp()
			return m, nil
		case "pgdown":
			m.timeline.ViewDown()
			return m, nil
		case "alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7", "alt+8", "alt+9":
			n, _ := strconv.Atoi(strings.TrimPrefix(key, "alt+"))
			done, err := m.cb.SubmitFeatured(m.ctx, n)
			return m, m.afterSubmit(done, err)
		case "enter":
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.cb.Session().SetInput(m.input.Value())
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	raw := strings.TrimSpace(m.input.Value())
	if strings.HasPrefix(raw, "/") {
		m.input.SetValue("")
		m.cb.Session().SetInput("")
		return m.command(raw)
	}

	m.cb.Session().SetInput(m.input.Value())
	done, err := m.cb.Session().Submit(m.ctx, "")
	if err == nil {
		m.input.SetValue("")
	}
	return m.afterSubmit(done, err)
}

func (m *Model) afterSubmit(done <-chan struct{}, err error) tea.Cmd {
	switch {
	case errors.Is(err, conversation.ErrNothingToSend):
		return nil
	case errors.Is(err, conversation.ErrRequestPending):
		m.setStatus("waiting for the current reply", false)
		return nil
	case err != nil:
		m.setStatus(err.Error(), true)
		return nil
	}
	m.notice = ""
	m.setStatus("thinking", false)
	m.renderTimeline()
	return tea.Batch(waitForReply(done), m.spinner.Tick)
}

func (m *Model) command(raw string) tea.Cmd {
	res, err := m.cb.HandleCommand(m.ctx, raw)
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	if res.Quit {
		m.cb.Toasts().Stop()
		return tea.Quit
	}
	m.input.Placeholder = m.cb.Session().Placeholder()
	m.notice = ""
	switch {
	case strings.Contains(res.Output, "\n"):
		m.notice = res.Output
		m.setStatus("ready", false)
	case res.Output != "":
		m.setStatus(res.Output, false)
	}
	m.renderTimeline()
	if res.Done != nil {
		return m.afterSubmit(res.Done, nil)
	}
	return nil
}

func (m *Model) toggleMode() {
	mode := session.ModeVirtualTryOn
	if m.cb.Session().Mode() == session.ModeVirtualTryOn {
		mode = session.ModeStandard
	}
	m.cb.Session().SetMode(mode)
	m.input.Placeholder = m.cb.Session().Placeholder()
	m.setStatus(fmt.Sprintf("mode: %s", mode), false)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.statusLine = text
	m.statusErr = isErr
}

func (m *Model) resize() {
	w := max(m.width, 20)
	m.timeline.Width = w
	m.timeline.Height = max(m.height-chrome-m.toastRows(), 3)
	m.input.Width = w - len(m.input.Prompt) - 1
}

// toastRows is the height of the toast strip: a bordered card of title and
// body plus the trailing newline.
func (m Model) toastRows() int {
	if len(m.cb.Toasts().Active()) == 0 {
		return 0
	}
	return 5
}

func (m *Model) renderTimeline() {
	body := m.cb.Render(0, transcriptStyle{t: m.theme})
	if body == "" {
		body = m.theme.muted.Render("Ask about an outfit, or switch to try-on with ctrl+t.")
	}
	if m.notice != "" {
		body += "\n" + m.theme.muted.Render(m.notice)
	}
	m.timeline.SetContent(lipgloss.NewStyle().Width(m.timeline.Width).Render(body))
	m.timeline.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder

	thread := m.cb.Session().ThreadID()
	if thread == "" {
		thread = "new"
	}
	b.WriteString(m.theme.header.Render(fmt.Sprintf("ApparelChat · %s · thread %s", m.cb.Session().Mode(), thread)))
	b.WriteString("\n")
	b.WriteString(m.theme.ticker.Render(m.cb.FeaturedLine()))
	b.WriteString("\n")
	b.WriteString(m.timeline.View())
	b.WriteString("\n")

	if toasts := m.renderToasts(); toasts != "" {
		b.WriteString(toasts)
		b.WriteString("\n")
	}

	if a, ok := m.cb.Session().Attachments().Current(); ok {
		b.WriteString(m.theme.chip.Render("attached: " + a.Name))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
	}
	input := m.input
	if !m.cb.Session().CanSubmit() {
		input.PromptStyle = m.theme.sendOff
	}
	b.WriteString(input.View())
	b.WriteString("\n")

	status := m.theme.status.Render(m.statusLine)
	if m.statusErr {
		status = m.theme.errStatus.Render(m.statusLine)
	}
	if m.cb.Session().Pending() {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(status)
	b.WriteString("\n")
	b.WriteString(m.sendHint())
	b.WriteString(m.theme.help.Render(" · ctrl+t mode · alt+N featured · ctrl+x dismiss · pgup/pgdown scroll · /help · esc quit"))
	return b.String()
}

// sendHint is the submit affordance, disabled while a reply is pending or
// there is nothing to send.
func (m Model) sendHint() string {
	if m.cb.Session().CanSubmit() {
		return m.theme.sendReady.Render("enter send")
	}
	return m.theme.sendOff.Render("send disabled")
}

func (m Model) renderToasts() string {
	active := m.cb.Toasts().Active()
	if len(active) == 0 {
		return ""
	}
	cards := make([]string, len(active))
	for i, t := range active {
		cards[i] = m.theme.toast.Render(m.theme.toastHead.Render(t.Title) + "\n" + t.Body)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}
