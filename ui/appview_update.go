package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"orchat/chat"
	"orchat/config"
	appmodel "orchat/model"
	"orchat/transport"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return a.handleResize(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		if a.streaming {
			a.updateStreamingView()
		}
		return a, cmd

	case snapshotMsg:
		a.snapshot = msg.Snapshot
		a.streaming = msg.Snapshot.Streaming
		a.updateStreamingView()
		return a, a.waitForSnapshot()

	case turnDoneMsg:
		return a.handleTurnDone(msg)

	case decodeWarningMsg:
		if config.DebugLog != nil {
			config.DebugLog.Printf("[ui] decode warning: %s", msg.Warning)
		}
		model, cmd := a.setStatus("Stream warning: "+msg.Warning, false)
		return model, tea.Batch(cmd, model.waitForEvent())

	case markdownRenderedMsg:
		a.rendered[msg.MessageID] = msg.Rendered
		a.updateViewportContent(true)
		return a, nil

	case modelsListMsg:
		if msg.Err == nil {
			a.modelList = msg.Models
		}
		return a, nil

	case conversationsListMsg:
		if msg.Err != nil {
			return a.setStatus(fmt.Sprintf("Failed to list conversations: %v", msg.Err), true)
		}
		a.convList = msg.List
		if a.selectedConvIdx >= len(a.convList) {
			a.selectedConvIdx = 0
		}
		return a, nil

	case conversationLoadedMsg:
		if msg.Err != nil {
			return a.setStatus(fmt.Sprintf("Failed to load conversation: %v", msg.Err), true)
		}
		if err := a.controller.SetConversation(msg.Conv); err != nil {
			return a.setStatus(err.Error(), true)
		}
		a.rendered = make(map[string]string)
		a.closeAllModals()
		a.updateViewportContent(true)
		return a, a.renderHistoryMarkdown(msg.Conv)

	case conversationDeletedMsg:
		if msg.Err != nil {
			return a.setStatus(fmt.Sprintf("Delete failed: %v", msg.Err), true)
		}
		return a, a.loadConversationList()

	case conversationExportedMsg:
		if msg.Err != nil {
			return a.setStatus(fmt.Sprintf("Export failed: %v", msg.Err), true)
		}
		return a.setStatus("Exported to "+msg.Path, false)

	case statusClearMsg:
		a.status = ""
		a.statusIsErr = false
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.updateComponents(msg)
}

func (a AppView) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	a.width = msg.Width
	a.height = msg.Height

	headerHeight := 2
	footerHeight := a.textarea.Height() + 2

	a.ready = true
	a.viewport.Width = msg.Width
	a.viewport.Height = msg.Height - headerHeight - footerHeight
	a.textarea.SetWidth(msg.Width - 2)

	a.updateViewportContent(false)
	return a, nil
}

func (a AppView) handleTurnDone(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	a.streaming = false
	a.snapshot = appmodel.Snapshot{}
	a.updateViewportContent(true)

	var cmds []tea.Cmd
	if msg.Message != nil && !msg.Message.Error && msg.Message.Content != "" {
		cmds = append(cmds, a.renderMarkdownAsync(msg.Message.ID, msg.Message.Content))
	}

	if msg.Err != nil {
		model, cmd := a.setStatus(turnErrorText(msg.Err), true)
		cmds = append(cmds, cmd)
		return model, tea.Batch(cmds...)
	}
	return a, tea.Batch(cmds...)
}

// turnErrorText maps turn-level errors to a short human-readable line.
func turnErrorText(err error) string {
	var rateLimit *transport.RateLimitError
	if errors.As(err, &rateLimit) {
		if rateLimit.RetryAfter > 0 {
			return fmt.Sprintf("Rate limited - retry in %s (Alt+R)", rateLimit.RetryAfter)
		}
		return "Rate limited - Alt+R to retry"
	}
	if errors.Is(err, context.Canceled) {
		return "Turn aborted (Alt+R to retry)"
	}
	return fmt.Sprintf("Turn failed: %v (Alt+R to retry)", err)
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showModelSelector {
		return a.handleModelSelectorKey(msg)
	}
	if a.showConversationManager {
		return a.handleConversationManagerKey(msg)
	}
	if a.showHelp {
		switch msg.String() {
		case "esc", "alt+h":
			a.showHelp = false
		}
		return a, nil
	}

	switch msg.String() {
	case "alt+q", "ctrl+c":
		if a.streaming {
			a.controller.Abort()
		}
		return a, tea.Quit

	case "esc":
		if a.streaming {
			a.controller.Abort()
			return a.setStatus("Aborting...", false)
		}
		return a, nil

	case "enter":
		return a.handleSend()

	case "alt+r":
		if a.streaming {
			return a, nil
		}
		user, failed := a.controller.Conversation().LastFailedTurn()
		if _, err := chat.RouteRetry(user, failed); err != nil {
			return a.setStatus("Nothing to retry", false)
		}
		a.streaming = true
		return a, a.retryTurn()

	case "alt+m":
		a.closeAllModals()
		a.showModelSelector = true
		a.selectedModelIdx = 0
		a.filteredModelList = nil
		return a, a.fetchModels()

	case "alt+s":
		a.closeAllModals()
		a.showConversationManager = true
		a.selectedConvIdx = 0
		return a, a.loadConversationList()

	case "alt+n":
		return a.handleNewConversation()

	case "alt+w":
		a.opts.WebSearch = !a.opts.WebSearch
		return a, nil

	case "alt+t":
		a.useStreaming = !a.useStreaming
		return a, nil

	case "alt+x":
		a.expandReasoning = !a.expandReasoning
		a.updateViewportContent(false)
		return a, nil

	case "alt+y":
		return a.handleCopyLastResponse()

	case "alt+h":
		a.showHelp = true
		return a, nil
	}

	return a.updateComponents(msg)
}

func (a AppView) handleSend() (tea.Model, tea.Cmd) {
	if a.streaming {
		return a.setStatus("A turn is already in flight", false)
	}

	text := strings.TrimSpace(a.textarea.Value())
	if text == "" {
		return a, nil
	}

	a.textarea.Reset()
	a.streaming = true
	a.snapshot = appmodel.Snapshot{Streaming: true}
	a.updateStreamingView()

	return a, a.startTurn(text)
}

func (a AppView) handleNewConversation() (tea.Model, tea.Cmd) {
	if a.streaming {
		return a.setStatus("A turn is already in flight", false)
	}
	conv := appmodel.NewConversation()
	if err := a.controller.SetConversation(conv); err != nil {
		return a.setStatus(err.Error(), true)
	}
	a.rendered = make(map[string]string)
	a.updateViewportContent(true)
	return a, nil
}

func (a AppView) handleCopyLastResponse() (tea.Model, tea.Cmd) {
	messages := a.controller.Conversation().Messages
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == appmodel.RoleAssistant && !messages[i].Error && messages[i].Content != "" {
			if err := clipboard.WriteAll(messages[i].Content); err != nil {
				return a.setStatus(fmt.Sprintf("Copy failed: %v", err), true)
			}
			return a.setStatus("Copied last response", false)
		}
	}
	return a.setStatus("No response to copy", false)
}

func (a AppView) handleModelSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.modelFilterMode {
		switch msg.String() {
		case "esc":
			a.modelFilterMode = false
			a.modelFilterInput.Blur()
			a.filteredModelList = nil
			return a, nil
		case "enter":
			return a.selectModel()
		case "alt+j", "alt+down", "down":
			list := a.getModelList()
			if a.selectedModelIdx < len(list)-1 {
				a.selectedModelIdx++
			}
			return a, nil
		case "alt+k", "alt+up", "up":
			if a.selectedModelIdx > 0 {
				a.selectedModelIdx--
			}
			return a, nil
		}

		var cmd tea.Cmd
		a.modelFilterInput, cmd = a.modelFilterInput.Update(msg)

		filterValue := a.modelFilterInput.Value()
		if filterValue == "" {
			a.filteredModelList = a.modelList
		} else {
			targets := make([]string, len(a.modelList))
			for i, m := range a.modelList {
				targets[i] = m.ID
			}
			matches := fuzzy.Find(filterValue, targets)
			a.filteredModelList = a.filteredModelList[:0]
			for _, match := range matches {
				a.filteredModelList = append(a.filteredModelList, a.modelList[match.Index])
			}
		}

		if list := a.getModelList(); a.selectedModelIdx >= len(list) && len(list) > 0 {
			a.selectedModelIdx = len(list) - 1
		}
		return a, cmd
	}

	switch msg.String() {
	case "/":
		a.modelFilterMode = true
		a.modelFilterInput.Focus()
		a.modelFilterInput.SetValue("")
		a.filteredModelList = a.modelList
		return a, textinput.Blink
	case "esc":
		a.showModelSelector = false
		return a, nil
	case "enter":
		return a.selectModel()
	case "j", "down":
		list := a.getModelList()
		if a.selectedModelIdx < len(list)-1 {
			a.selectedModelIdx++
		}
		return a, nil
	case "k", "up":
		if a.selectedModelIdx > 0 {
			a.selectedModelIdx--
		}
		return a, nil
	}
	return a, nil
}

func (a AppView) selectModel() (tea.Model, tea.Cmd) {
	list := a.getModelList()
	if a.selectedModelIdx >= len(list) {
		return a, nil
	}
	picked := list[a.selectedModelIdx]
	a.opts.Model = picked.ID

	// Drop request parameters the new model does not accept.
	if a.opts.ReasoningEffort != "" && !picked.Supports("reasoning") {
		a.opts.ReasoningEffort = ""
	}
	if a.opts.WebSearch && !picked.Supports("web_search_options") {
		a.opts.WebSearch = false
	}

	a.closeAllModals()
	return a, nil
}

func (a AppView) handleConversationManagerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.confirmDeleteConv != nil {
		switch msg.String() {
		case "y", "Y":
			id := a.confirmDeleteConv.ID
			a.confirmDeleteConv = nil
			return a, a.deleteConversation(id)
		default:
			a.confirmDeleteConv = nil
			return a, nil
		}
	}

	if a.convRenameMode {
		switch msg.String() {
		case "esc":
			a.convRenameMode = false
			a.convRenameInput.Blur()
			return a, nil
		case "enter":
			title := strings.TrimSpace(a.convRenameInput.Value())
			a.convRenameMode = false
			a.convRenameInput.Blur()
			list := a.getConvList()
			if title == "" || a.selectedConvIdx >= len(list) {
				return a, nil
			}
			id := list[a.selectedConvIdx].ID
			store := a.store
			return a, func() tea.Msg {
				if err := store.Rename(id, title); err != nil {
					return conversationsListMsg{Err: err}
				}
				l, err := store.List()
				return conversationsListMsg{List: l, Err: err}
			}
		}
		var cmd tea.Cmd
		a.convRenameInput, cmd = a.convRenameInput.Update(msg)
		return a, cmd
	}

	if a.convFilterMode {
		switch msg.String() {
		case "esc":
			a.convFilterMode = false
			a.convFilterInput.Blur()
			a.filteredConvList = nil
			return a, nil
		case "enter":
			return a.openSelectedConversation()
		case "alt+j", "alt+down", "down":
			list := a.getConvList()
			if a.selectedConvIdx < len(list)-1 {
				a.selectedConvIdx++
			}
			return a, nil
		case "alt+k", "alt+up", "up":
			if a.selectedConvIdx > 0 {
				a.selectedConvIdx--
			}
			return a, nil
		}

		var cmd tea.Cmd
		a.convFilterInput, cmd = a.convFilterInput.Update(msg)

		filterValue := a.convFilterInput.Value()
		if filterValue == "" {
			a.filteredConvList = a.convList
		} else {
			targets := make([]string, len(a.convList))
			for i, c := range a.convList {
				targets[i] = c.Title
			}
			matches := fuzzy.Find(filterValue, targets)
			a.filteredConvList = a.filteredConvList[:0]
			for _, match := range matches {
				a.filteredConvList = append(a.filteredConvList, a.convList[match.Index])
			}
		}

		if list := a.getConvList(); a.selectedConvIdx >= len(list) && len(list) > 0 {
			a.selectedConvIdx = len(list) - 1
		}
		return a, cmd
	}

	switch msg.String() {
	case "/":
		a.convFilterMode = true
		a.convFilterInput.Focus()
		a.convFilterInput.SetValue("")
		a.filteredConvList = a.convList
		return a, textinput.Blink
	case "esc":
		a.showConversationManager = false
		return a, nil
	case "enter":
		return a.openSelectedConversation()
	case "j", "down":
		list := a.getConvList()
		if a.selectedConvIdx < len(list)-1 {
			a.selectedConvIdx++
		}
		return a, nil
	case "k", "up":
		if a.selectedConvIdx > 0 {
			a.selectedConvIdx--
		}
		return a, nil
	case "r":
		list := a.getConvList()
		if a.selectedConvIdx < len(list) {
			a.convRenameMode = true
			a.convRenameInput.Focus()
			a.convRenameInput.SetValue(list[a.selectedConvIdx].Title)
			return a, textinput.Blink
		}
		return a, nil
	case "d":
		list := a.getConvList()
		if a.selectedConvIdx < len(list) {
			meta := list[a.selectedConvIdx]
			a.confirmDeleteConv = &meta
		}
		return a, nil
	case "e":
		list := a.getConvList()
		if a.selectedConvIdx < len(list) {
			meta := list[a.selectedConvIdx]
			return a, a.exportConversation(meta.ID, meta.Title)
		}
		return a, nil
	}
	return a, nil
}

func (a AppView) openSelectedConversation() (tea.Model, tea.Cmd) {
	if a.streaming {
		return a.setStatus("A turn is already in flight", false)
	}
	list := a.getConvList()
	if a.selectedConvIdx >= len(list) {
		return a, nil
	}
	return a, a.loadConversation(list[a.selectedConvIdx].ID)
}

// renderHistoryMarkdown queues async markdown renders for every assistant
// message of a freshly loaded conversation.
func (a AppView) renderHistoryMarkdown(conv *appmodel.Conversation) tea.Cmd {
	var cmds []tea.Cmd
	for _, msg := range conv.Messages {
		if msg.Role == appmodel.RoleAssistant && !msg.Error && msg.Content != "" {
			cmds = append(cmds, a.renderMarkdownAsync(msg.ID, msg.Content))
		}
	}
	return tea.Batch(cmds...)
}

func (a AppView) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	a.textarea, cmd = a.textarea.Update(msg)
	cmds = append(cmds, cmd)

	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a AppView) setStatus(text string, isErr bool) (AppView, tea.Cmd) {
	a.status = text
	a.statusIsErr = isErr
	return a, clearStatusAfter(5 * time.Second)
}
