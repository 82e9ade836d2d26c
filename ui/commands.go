package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"orchat/config"
	"orchat/storage"
)

// startTurn runs one full turn on a background goroutine. Snapshots arrive
// through the snapshots channel while this command blocks; the sealed message
// comes back as turnDoneMsg.
func (a AppView) startTurn(content string) tea.Cmd {
	controller := a.controller
	opts := a.opts
	streaming := a.useStreaming
	return func() tea.Msg {
		msg, err := controller.Send(context.Background(), content, opts, streaming)
		return turnDoneMsg{Message: msg, Err: err}
	}
}

// retryTurn re-runs the last failed turn through its recorded transport.
func (a AppView) retryTurn() tea.Cmd {
	controller := a.controller
	return func() tea.Msg {
		msg, err := controller.Retry(context.Background())
		return turnDoneMsg{Message: msg, Err: err}
	}
}

// waitForSnapshot blocks on the snapshot channel. Re-armed after every
// received snapshot so the stream of live updates keeps flowing.
func (a AppView) waitForSnapshot() tea.Cmd {
	ch := a.snapshots
	return func() tea.Msg {
		return snapshotMsg{Snapshot: <-ch}
	}
}

// waitForEvent blocks on the out-of-band event channel (decode warnings).
func (a AppView) waitForEvent() tea.Cmd {
	ch := a.events
	return func() tea.Msg {
		return <-ch
	}
}

func (a AppView) fetchModels() tea.Cmd {
	cat := a.catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		models, err := cat.Models(ctx)
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[ui] model catalog fetch failed: %v", err)
		}
		return modelsListMsg{Models: models, Err: err}
	}
}

func (a AppView) loadConversationList() tea.Cmd {
	store := a.store
	return func() tea.Msg {
		list, err := store.List()
		return conversationsListMsg{List: list, Err: err}
	}
}

func (a AppView) loadConversation(id string) tea.Cmd {
	store := a.store
	return func() tea.Msg {
		conv, err := store.Load(id)
		return conversationLoadedMsg{Conv: conv, Err: err}
	}
}

func (a AppView) deleteConversation(id string) tea.Cmd {
	store := a.store
	return func() tea.Msg {
		err := store.Delete(id)
		return conversationDeletedMsg{ID: id, Err: err}
	}
}

func (a AppView) exportConversation(id, title string) tea.Cmd {
	store := a.store
	return func() tea.Msg {
		path := storage.GenerateExportPath(title)
		err := store.ExportToJSON(id, path)
		return conversationExportedMsg{Path: path, Err: err}
	}
}

// clearStatusAfter clears the transient status line once the reader has had
// a chance to see it.
func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusClearMsg{}
	})
}
