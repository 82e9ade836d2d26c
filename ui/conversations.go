package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"orchat/storage"
)

func renderConversationManager(list []storage.ConversationMetadata, selectedIdx int, currentID string, renameMode bool, renameInput textinput.Model, filterMode bool, filterInput textinput.Model, confirmDelete *storage.ConversationMetadata, width, height int) string {
	modalWidth := width - 10
	if modalWidth > 90 {
		modalWidth = 90
	}
	modalHeight := height - 6

	if confirmDelete != nil {
		return renderDeleteConfirm(confirmDelete, width, height)
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Conversations")

	var header string
	switch {
	case renameMode:
		header = renameInput.View()
	case filterMode:
		header = filterInput.View()
	default:
		header = fmt.Sprintf("%d conversations", len(list))
	}

	headerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(header)

	var lines []string
	maxLines := modalHeight - 8

	if len(list) == 0 {
		emptyMsg := "No conversations yet"
		if filterMode {
			emptyMsg = "No matches found"
		}
		lines = append(lines, lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true).
			Align(lipgloss.Center).
			Width(modalWidth).
			Render(emptyMsg))
	} else {
		startIdx := 0
		endIdx := len(list)
		if len(list) > maxLines {
			if selectedIdx < maxLines/2 {
				endIdx = maxLines
			} else if selectedIdx >= len(list)-maxLines/2 {
				startIdx = len(list) - maxLines
			} else {
				startIdx = selectedIdx - maxLines/2
				endIdx = startIdx + maxLines
			}
		}

		for i := startIdx; i < endIdx && i < len(list); i++ {
			meta := list[i]

			indicator := "  "
			if i == selectedIdx {
				indicator = "▶ "
			}

			currentMarker := ""
			if meta.ID == currentID {
				currentMarker = " (open)"
			}

			info := fmt.Sprintf("%d msgs  %s", meta.MessageCount, meta.UpdatedAt.Format("Jan 2 15:04"))

			title := meta.Title
			if title == "" {
				title = "(untitled)"
			}
			maxTitleWidth := modalWidth - runewidth.StringWidth(info) - len(currentMarker) - 8
			if runewidth.StringWidth(title) > maxTitleWidth {
				title = runewidth.Truncate(title, maxTitleWidth, "...")
			}

			spacing := modalWidth - runewidth.StringWidth(indicator+title+currentMarker+info) - 4
			if spacing < 1 {
				spacing = 1
			}

			line := indicator + title + currentMarker + strings.Repeat(" ", spacing) + DimStyle.Render(info)

			lineStyle := lipgloss.NewStyle()
			if i == selectedIdx {
				lineStyle = lineStyle.Foreground(successColor).Bold(true)
			} else if meta.ID == currentID {
				lineStyle = lineStyle.Foreground(accentColor).Bold(true)
			}

			lines = append(lines, lipgloss.NewStyle().
				Width(modalWidth).
				Render(lineStyle.Render(line)))
		}
	}

	emptyLine := strings.Repeat(" ", modalWidth)
	lines = append([]string{emptyLine}, lines...)
	lines = append(lines, emptyLine)

	var footerText string
	switch {
	case renameMode:
		footerText = FormatFooter("Enter", "Save", "Esc", "Cancel")
	case filterMode:
		footerText = FormatFooter("Type", "to filter", "Alt+J/K", "Navigate", "Enter", "Open", "Esc", "Cancel")
	default:
		footerText = FormatFooter("/", "Filter", "j/k", "Navigate", "Enter", "Open", "r", "Rename", "d", "Delete", "e", "Export", "Esc", "Close")
	}
	footerSection := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footerText)

	sections := []string{titleSection, headerSection}
	sections = append(sections, lines...)
	sections = append(sections, footerSection)

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(strings.Join(sections, "\n"))
}

func renderDeleteConfirm(meta *storage.ConversationMetadata, width, height int) string {
	title := meta.Title
	if title == "" {
		title = "(untitled)"
	}

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		lipgloss.NewStyle().Bold(true).Foreground(dangerColor).Render("Delete conversation?"),
		"",
		runewidth.Truncate(title, 60, "..."),
		DimStyle.Render(fmt.Sprintf("%d messages", meta.MessageCount)),
		"",
		FormatFooter("y", "Delete", "any other key", "Cancel"),
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dangerColor).
		Padding(1, 4)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(content))
}
