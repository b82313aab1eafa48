package tui

import (
	"github.com/charmbracelet/lipgloss"

	"ApparelChat/internal/session"
)

type theme struct {
	header    lipgloss.Style
	ticker    lipgloss.Style
	panel     lipgloss.Style
	toast     lipgloss.Style
	toastHead lipgloss.Style
	chip      lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	help      lipgloss.Style
	sendReady lipgloss.Style
	sendOff   lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	receipt   lipgloss.Style
	image     lipgloss.Style
	muted     lipgloss.Style
}

func newTheme() theme {
	rose := lipgloss.Color("#e11d48")
	sand := lipgloss.Color("#f5deb3")
	teal := lipgloss.Color("#14b8a6")
	ink := lipgloss.Color("#1f2937")
	muted := lipgloss.Color("#9ca3af")

	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(sand).
			Background(ink).
			Padding(0, 1),
		ticker: lipgloss.NewStyle().Foreground(teal),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		toast: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(rose).
			Padding(0, 1),
		toastHead: lipgloss.NewStyle().Foreground(rose).Bold(true),
		chip: lipgloss.NewStyle().
			Foreground(ink).
			Background(teal).
			Padding(0, 1),
		status:    lipgloss.NewStyle().Foreground(teal),
		errStatus: lipgloss.NewStyle().Foreground(rose).Bold(true),
		help:      lipgloss.NewStyle().Foreground(muted),
		sendReady: lipgloss.NewStyle().Foreground(teal).Bold(true),
		sendOff:   lipgloss.NewStyle().Foreground(muted).Faint(true),
		user:      lipgloss.NewStyle().Foreground(teal).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(rose).Bold(true),
		receipt: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(teal).
			Padding(0, 1),
		image: lipgloss.NewStyle().Foreground(sand).Underline(true),
		muted: lipgloss.NewStyle().Foreground(muted),
	}
}

// transcriptStyle adapts the theme to chatbot.Style
type transcriptStyle struct{ t theme }

func (s transcriptStyle) Speaker(role session.Role, label string) string {
	if role == session.RoleAssistant {
		return s.t.assistant.Render(label)
	}
	return s.t.user.Render(label)
}

func (s transcriptStyle) Receipt(text string) string { return s.t.receipt.Render("Order confirmed\n" + text) }
func (s transcriptStyle) Image(text string) string   { return s.t.image.Render(text) }
func (s transcriptStyle) Muted(text string) string   { return s.t.muted.Render(text) }
