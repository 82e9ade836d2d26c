package ui

import (
	"github.com/charmbracelet/lipgloss"
)

func renderHelpModal(width, height int) string {
	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("ORCHAT - Keyboard Shortcuts")

	blue := lipgloss.NewStyle().Foreground(accentColor)

	globalActions := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Global Actions"),
		"• Alt+N         New conversation",
		"• Alt+S         Conversation manager",
		"• Alt+M         Model selection",
		"• Alt+H         Toggle this help",
		"• Alt+Q         Quit",
	)

	chatActions := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chat Actions"),
		"• Enter         Send message",
		"• Alt+Enter     Insert newline",
		"• Esc           Abort in-flight turn",
		"• Alt+R         Retry failed turn",
		"• Alt+Y         Copy last response",
		"• Alt+X         Toggle reasoning traces",
	)

	requestOptions := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Request Options"),
		"• Alt+W         Toggle web search",
		"• Alt+T         Toggle streaming/buffered",
	)

	tips := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Tips"),
		"• Failed turns stay in the history",
		"• A retry reuses the original transport",
		"• Sources appear under answers with web search on",
	)

	column1 := lipgloss.JoinVertical(
		lipgloss.Left,
		globalActions,
		"",
		requestOptions,
	)

	column2 := lipgloss.JoinVertical(
		lipgloss.Left,
		chatActions,
		"",
		tips,
	)

	columnStyle := lipgloss.NewStyle().Width(44).PaddingLeft(4)

	twoColumns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(column1),
		"    ",
		columnStyle.Render(column2),
	)

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render("Press Alt+H or Esc to close this help")

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		twoColumns,
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2).
		Width(100)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
