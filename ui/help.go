package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHelp() string {
	title := titleStyle.Render("KEYS")
	helpView := m.help.View(m.keys)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		paneStyle.Render(fmt.Sprintf("%s\n\n%s", title, helpView)),
	)
}

func (m Model) renderFooter() string {
	var status string
	switch {
	case m.lastErr != nil:
		status = errorStyle.Render("✖ " + m.status)
	case m.running:
		status = runningStyle.Render("● " + m.status)
	default:
		status = statusStyle.Render(m.status)
	}

	watch := "watching"
	if !m.watchEnabled {
		watch = "watching off"
	}
	right := statusStyle.Render(watch) + m.help.ShortHelpView(m.keys.ShortHelp())

	gap := m.width - lipgloss.Width(status) - lipgloss.Width(right)
	if gap < 1 {
		return lipgloss.JoinHorizontal(lipgloss.Top, status, " ", right)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, status, lipgloss.NewStyle().Width(gap).Render(""), right)
}
