package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"orchat/catalog"
)

func renderModelSelector(models, filteredModels []catalog.ModelInfo, selectedIdx int, currentModel string, filterMode bool, filterInput textinput.Model, width, height int) string {
	modalWidth := width - 10
	if modalWidth > 80 {
		modalWidth = 80
	}
	modalHeight := height - 6

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Select Model")

	// Determine which list to display
	displayList := models
	if filterMode && filterInput.Value() != "" {
		displayList = filteredModels
	}

	// Header: filter input or count
	var header string
	if filterMode {
		header = filterInput.View()
	} else if len(displayList) == len(models) {
		header = fmt.Sprintf("%d models", len(models))
	} else {
		header = fmt.Sprintf("%d of %d models", len(displayList), len(models))
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

	var modelLines []string
	maxLines := modalHeight - 8

	if len(displayList) == 0 {
		emptyMsg := "No models available"
		if filterMode {
			emptyMsg = "No matches found"
		}
		modelLines = append(modelLines, lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true).
			Align(lipgloss.Center).
			Width(modalWidth).
			Render(emptyMsg))
	} else {
		startIdx := 0
		endIdx := len(displayList)

		// Scroll if needed
		if len(displayList) > maxLines {
			if selectedIdx < maxLines/2 {
				endIdx = maxLines
			} else if selectedIdx >= len(displayList)-maxLines/2 {
				startIdx = len(displayList) - maxLines
			} else {
				startIdx = selectedIdx - maxLines/2
				endIdx = startIdx + maxLines
			}
		}

		for i := startIdx; i < endIdx && i < len(displayList); i++ {
			m := displayList[i]

			indicator := "  "
			if i == selectedIdx {
				indicator = "▶ "
			}

			currentMarker := ""
			if m.ID == currentModel {
				currentMarker = " (current)"
			}

			caps := ""
			if m.Supports("reasoning") {
				caps += " [r]"
			}
			if m.Supports("web_search_options") {
				caps += " [w]"
			}

			ctxText := formatContextLength(m.ContextLength)

			name := m.ID
			maxNameWidth := modalWidth - 20
			if runewidth.StringWidth(name) > maxNameWidth {
				name = runewidth.Truncate(name, maxNameWidth, "...")
			}

			spacing := modalWidth - runewidth.StringWidth(indicator+name+caps+currentMarker+ctxText) - 4
			if spacing < 1 {
				spacing = 1
			}

			line := indicator + name + caps + currentMarker + strings.Repeat(" ", spacing) + ctxText

			lineStyle := lipgloss.NewStyle()
			if i == selectedIdx {
				lineStyle = lineStyle.Foreground(successColor).Bold(true)
			} else if m.ID == currentModel {
				lineStyle = lineStyle.Foreground(accentColor).Bold(true)
			}

			modelLines = append(modelLines, lipgloss.NewStyle().
				Width(modalWidth).
				Render(lineStyle.Render(line)))
		}
	}

	emptyLine := strings.Repeat(" ", modalWidth)
	modelLines = append([]string{emptyLine}, modelLines...)
	modelLines = append(modelLines, emptyLine)

	var footerText string
	if filterMode {
		footerText = FormatFooter("Type", "to filter", "Alt+J/K", "Navigate", "Enter", "Select", "Esc", "Cancel")
	} else {
		footerText = FormatFooter("/", "Filter", "j/k", "Navigate", "Enter", "Select", "[r]easoning [w]eb", "Capabilities", "Esc", "Exit")
	}
	footerSection := lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footerText)

	sections := []string{titleSection, headerSection}
	sections = append(sections, modelLines...)
	sections = append(sections, footerSection)

	content := strings.Join(sections, "\n")

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

// formatContextLength renders a context window as "131k ctx".
func formatContextLength(n int) string {
	if n == 0 {
		return ""
	}
	if n < 1000 {
		return fmt.Sprintf("%d ctx", n)
	}
	return fmt.Sprintf("%dk ctx", n/1000)
}
