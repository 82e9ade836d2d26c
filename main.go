package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"orchat/catalog"
	"orchat/chat"
	"orchat/config"
	"orchat/model"
	"orchat/storage"
	"orchat/transport"
	"orchat/ui"
)

const (
	Version = "v0.1.0"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())
	if config.DebugLog != nil {
		config.DebugLog.Printf("orchat %s starting, backend %s", Version, cfg.BaseURL)
	}

	store, err := storage.NewConversationStore(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to initialize conversation storage: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("Warning: failed to close conversation storage: %v", err)
		}
	}()

	client, err := transport.NewClient(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		fmt.Printf("Failed to initialize backend client: %v\n", err)
		os.Exit(1)
	}

	cat := catalog.New(cfg.BaseURL, cfg.DataDir())

	// The controller publishes live snapshots into these channels; the UI
	// drains them with re-armed listen commands.
	snapshots := make(chan model.Snapshot, 16)
	publish := func(s model.Snapshot) {
		select {
		case snapshots <- s:
		default:
			// UI is behind; dropping an intermediate frame is fine, the
			// sealed message re-renders the full content at turn end.
		}
	}

	events := make(chan tea.Msg, 16)
	warn := func(format string, args ...any) {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[decode] "+format, args...)
		}
		select {
		case events <- model.DecodeWarningMsg{Warning: fmt.Sprintf(format, args...)}:
		default:
		}
	}

	controller := chat.NewController(model.NewConversation(), client, client, store, publish, warn)

	p := tea.NewProgram(
		ui.NewAppView(cfg, controller, store, cat, snapshots, events),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running orchat: %v\n", err)
		os.Exit(1)
	}
}
