package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"orchat/config"
	appmodel "orchat/model"
)

// Pre-compiled regex patterns for better performance
var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
)

func (a *AppView) updateViewportContent(gotoBottom bool) {
	messages := a.controller.Conversation().Messages
	if len(messages) == 0 {
		a.viewport.SetContent("No messages yet. Start chatting!")
		return
	}

	var content strings.Builder
	for _, msg := range messages {
		content.WriteString(a.formatMessage(msg))
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

// updateStreamingView renders the history plus the in-flight turn from the
// latest snapshot.
func (a *AppView) updateStreamingView() {
	messages := a.controller.Conversation().Messages

	var content strings.Builder
	for _, msg := range messages {
		// The in-flight assistant placeholder is drawn from the snapshot
		// below, not from the message.
		if msg.Role == appmodel.RoleAssistant && msg.Content == "" && !msg.Error {
			continue
		}
		content.WriteString(a.formatMessage(msg))
	}

	timestamp := DimStyle.Render(time.Now().Format("[15:04]"))
	role := AssistantStyle.Render("Assistant")

	// Spinner until the first content arrives, then text with a cursor.
	body := a.loadingSpinner.View()
	if a.snapshot.Reasoning != "" && a.snapshot.Content == "" {
		body = ReasoningStyle.Render("thinking: "+tailOf(a.snapshot.Reasoning, 200)) + " " + a.loadingSpinner.View()
	}
	if a.snapshot.Content != "" {
		body = a.snapshot.Content + "▋"
	}

	content.WriteString(fmt.Sprintf("%s %s\n%s\n\n", timestamp, role, body))

	a.viewport.SetContent(content.String())
	a.viewport.GotoBottom()
}

func (a *AppView) formatMessage(msg *appmodel.ChatMessage) string {
	timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

	switch msg.Role {
	case appmodel.RoleUser:
		return formatUserMessage(timestamp, UserStyle.Render("You"), msg.Content)
	case appmodel.RoleAssistant:
		return a.formatAssistantMessage(timestamp, msg)
	default:
		return fmt.Sprintf("%s %s\n%s\n\n", timestamp, DimStyle.Render("System"), msg.Content)
	}
}

func (a *AppView) formatAssistantMessage(timestamp string, msg *appmodel.ChatMessage) string {
	role := AssistantStyle.Render("Assistant")

	if msg.Error {
		label := "failed"
		if msg.RetryAvailable {
			label = "failed - Alt+R to retry"
		}
		body := msg.Content
		if body == "" {
			body = "(no content received)"
		}
		return fmt.Sprintf("%s %s %s\n%s\n\n", timestamp, role, ErrorStyle.Render("["+label+"]"), body)
	}

	body := msg.Content
	if r, ok := a.rendered[msg.ID]; ok {
		body = r
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n%s\n", timestamp, role, body))

	if msg.Reasoning != "" {
		if a.expandReasoning {
			b.WriteString(ReasoningStyle.Render("reasoning:\n" + msg.Reasoning))
		} else {
			b.WriteString(ReasoningStyle.Render("(reasoning hidden - Alt+X to show)"))
		}
		b.WriteString("\n")
	}

	if len(msg.Annotations) > 0 {
		b.WriteString(formatAnnotations(msg.Annotations))
	}

	if msg.Usage != nil && msg.Usage.TotalTokens > 0 {
		b.WriteString(DimStyle.Render(fmt.Sprintf("tokens: %d prompt / %d completion", msg.Usage.PromptTokens, msg.Usage.CompletionTokens)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	return b.String()
}

func formatAnnotations(anns []appmodel.Annotation) string {
	var b strings.Builder
	b.WriteString(DimStyle.Render("sources:"))
	b.WriteString("\n")
	for i, ann := range anns {
		title := ann.URL
		if ann.Title != nil && *ann.Title != "" {
			title = *ann.Title
		}
		title = runewidth.Truncate(title, 70, "...")
		line := fmt.Sprintf("  [%d] %s", i+1, title)
		if title != ann.URL {
			line += " " + DimStyle.Render("<"+runewidth.Truncate(ann.URL, 60, "...")+">")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func formatUserMessage(timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s %s\n", bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")

	return result.String()
}

// tailOf returns the last n bytes of s, cut at a rune boundary.
func tailOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	for i := 0; i < len(tail); i++ {
		if (tail[i] & 0xC0) != 0x80 {
			return "..." + tail[i:]
		}
	}
	return tail
}

// renderMarkdownAsync renders an assistant message off the update loop. The
// message displays as plain text until the result lands.
func (a AppView) renderMarkdownAsync(messageID, content string) tea.Cmd {
	width := a.width
	return func() tea.Msg {
		start := time.Now()

		// Strip markdown link syntax [text](url) -> url so links show as
		// plain URLs the terminal can make clickable.
		content = preprocessLinks(content)

		// Autolink is disabled to keep plain URLs as plain text.
		defaultExt := markdown.Extensions()
		customExt := defaultExt &^ parser.Autolink
		p := parser.NewWithExtensions(customExt)
		r := markdown.NewRenderer(width-4, 0)
		doc := p.Parse([]byte(content))
		rendered := gomarkdown.Render(doc, r)

		processed := postProcessMarkdown(string(rendered))

		if config.DebugLog != nil {
			config.DebugLog.Printf("[ui] markdown rendered for %s in %v", messageID, time.Since(start))
		}

		return markdownRenderedMsg{MessageID: messageID, Rendered: processed}
	}
}

func postProcessMarkdown(rendered string) string {
	rendered = fixInlineCode(rendered)
	rendered = fixMarkdownLinks(rendered)
	return rendered
}

func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

func fixInlineCode(s string) string {
	// Replace: \x1b[44;3m...text...\x1b[0m (Blue BG + Italic)
	// With:    \x1b[31m...text...\x1b[0m (Red text)
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func fixMarkdownLinks(s string) string {
	redColor := "\x1b[31m"
	reset := "\x1b[0m"

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		// Skip code blocks (they carry the ┃ prefix from the renderer)
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, redColor+"$1"+reset)
		}
	}

	return strings.Join(lines, "\n")
}
