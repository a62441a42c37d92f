package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderWatched(paneWidth, paneHeight int) string {
	var view strings.Builder
	view.WriteString(titleStyle.Render("WATCHED") + "\n\n")

	// Title(1) + blank line(1)
	treeHeight := paneHeight - 2

	if len(m.flatNodes) == 0 {
		view.WriteString(statusStyle.Render("No watched files."))
	} else {
		start, end := m.calculateVisibleRange(treeHeight)
		for i := start; i < end && i < len(m.flatNodes); i++ {
			m.renderNode(&view, m.flatNodes[i], i)
		}
	}

	style := paneStyle
	if m.activePane == PaneWatched {
		style = activePaneStyle
	}

	return style.
		Width(paneWidth).
		Height(paneHeight).
		Render(view.String())
}

func (m Model) calculateVisibleRange(paneHeight int) (int, int) {
	start := 0
	end := len(m.flatNodes)

	if paneHeight > 0 && len(m.flatNodes) > paneHeight {
		if m.cursor < paneHeight/2 {
			start = 0
			end = paneHeight
		} else if m.cursor > len(m.flatNodes)-paneHeight/2 {
			start = len(m.flatNodes) - paneHeight
			end = len(m.flatNodes)
		} else {
			start = m.cursor - paneHeight/2
			end = m.cursor + paneHeight/2
		}
	}
	return start, end
}

func (m Model) renderNode(b *strings.Builder, node DisplayNode, index int) {
	cursor := " "
	if m.activePane == PaneWatched && m.cursor == index {
		cursor = ">"
	}

	indent := strings.Repeat("  ", node.Depth)
	line := fmt.Sprintf("%s %s%s %s", cursor, indent, m.getNodeIcon(node), node.DisplayName)

	if m.activePane == PaneWatched && m.cursor == index {
		b.WriteString(lipgloss.NewStyle().Foreground(highlight).Render(line) + "\n")
	} else {
		b.WriteString(line + "\n")
	}
}

func (m Model) getNodeIcon(node DisplayNode) string {
	if node.IsDir {
		return "📁"
	}

	switch m.nodeStatus[node.Path] {
	case StatusPass:
		return "✅"
	case StatusFail:
		return "❌"
	}
	if m.taskRunning {
		return "⏳"
	}
	return "📄"
}
