package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"orchat/catalog"
	"orchat/chat"
	"orchat/config"
	appmodel "orchat/model"
	"orchat/storage"
)

type AppView struct {
	cfg        *config.Config
	controller *chat.Controller
	store      *storage.ConversationStore
	catalog    *catalog.Catalog

	// snapshots carries the live in-flight view from the turn goroutine;
	// events carries decode warnings and other out-of-band notifications.
	snapshots <-chan appmodel.Snapshot
	events    <-chan tea.Msg

	// UI components
	viewport       viewport.Model
	textarea       textarea.Model
	loadingSpinner spinner.Model

	// Window state
	width  int
	height int
	ready  bool

	// Streaming UI state
	streaming bool
	snapshot  appmodel.Snapshot

	// Rendered markdown cache, keyed by message ID. Messages display as
	// plain text until their async render lands.
	rendered map[string]string

	// Request options for the next turn
	opts         appmodel.RequestOptions
	useStreaming bool

	// Transient status line (copy confirmations, warnings, errors)
	status      string
	statusIsErr bool

	// Show full reasoning traces under assistant messages
	expandReasoning bool

	showHelp bool

	// Model selector
	showModelSelector bool
	modelList         []catalog.ModelInfo
	filteredModelList []catalog.ModelInfo
	selectedModelIdx  int
	modelFilterMode   bool
	modelFilterInput  textinput.Model

	// Conversation manager
	showConversationManager bool
	convList                []storage.ConversationMetadata
	filteredConvList        []storage.ConversationMetadata
	selectedConvIdx         int
	convFilterMode          bool
	convFilterInput         textinput.Model
	convRenameMode          bool
	convRenameInput         textinput.Model
	confirmDeleteConv       *storage.ConversationMetadata
}

func NewAppView(cfg *config.Config, controller *chat.Controller, store *storage.ConversationStore, cat *catalog.Catalog, snapshots <-chan appmodel.Snapshot, events <-chan tea.Msg) AppView {
	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter inserts a newline; Enter alone sends (handled separately)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	// Dynamic prompt: "> " for first line, "| " for subsequent lines
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	vp := viewport.New(0, 0)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	modelFilterInput := textinput.New()
	modelFilterInput.Prompt = "Filter: "
	modelFilterInput.CharLimit = 64

	convFilterInput := textinput.New()
	convFilterInput.Prompt = "Filter: "
	convFilterInput.CharLimit = 64

	convRenameInput := textinput.New()
	convRenameInput.Prompt = "New title: "
	convRenameInput.CharLimit = 100

	return AppView{
		cfg:        cfg,
		controller: controller,
		store:      store,
		catalog:    cat,
		snapshots:  snapshots,
		events:     events,

		viewport:       vp,
		textarea:       ta,
		loadingSpinner: sp,

		rendered: make(map[string]string),

		opts: appmodel.RequestOptions{
			Model:           cfg.DefaultModel,
			ReasoningEffort: cfg.ReasoningEffort,
			WebSearch:       cfg.WebSearch,
		},
		useStreaming: true,

		modelFilterInput: modelFilterInput,
		convFilterInput:  convFilterInput,
		convRenameInput:  convRenameInput,
	}
}

func (a AppView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.loadingSpinner.Tick,
		a.waitForSnapshot(),
		a.waitForEvent(),
		a.fetchModels(),
	)
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading orchat..."
	}

	if a.showHelp {
		return renderHelpModal(a.width, a.height)
	}

	if a.showModelSelector {
		return renderModelSelector(a.modelList, a.filteredModelList, a.selectedModelIdx, a.opts.Model, a.modelFilterMode, a.modelFilterInput, a.width, a.height)
	}

	if a.showConversationManager {
		currentID := a.controller.Conversation().ID
		return renderConversationManager(a.getConvList(), a.selectedConvIdx, currentID, a.convRenameMode, a.convRenameInput, a.convFilterMode, a.convFilterInput, a.confirmDeleteConv, a.width, a.height)
	}

	// Title bar - "ORCHAT - model - conversation title"
	nameText := AssistantStyle.Render("ORCHAT")
	modelText := TitleStyle.Render(fmt.Sprintf(" - %s", displayModel(a.opts.Model)))
	convTitle := a.controller.Conversation().Title
	if convTitle == "" {
		convTitle = "New Conversation"
	}
	convText := UserStyle.Render(fmt.Sprintf(" - %s", convTitle))

	flags := ""
	if a.opts.WebSearch {
		flags += " | web"
	}
	if a.opts.ReasoningEffort != "" {
		flags += " | reasoning:" + a.opts.ReasoningEffort
	}
	if !a.useStreaming {
		flags += " | buffered"
	}
	title := nameText + modelText + convText + DimStyle.Render(flags)

	statusLine := ""
	if a.status != "" {
		if a.statusIsErr {
			statusLine = ErrorStyle.Render(a.status)
		} else {
			statusLine = DimStyle.Render(a.status)
		}
	}

	// Status bar with bold green key descriptions
	descStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	statusBar := fmt.Sprintf("Alt+Q %s  Alt+S %s  Alt+M %s  Alt+R %s  Alt+W %s  Alt+T %s  Alt+Y %s  Esc %s",
		descStyle.Render("Quit"),
		descStyle.Render("Conversations"),
		descStyle.Render("Models"),
		descStyle.Render("Retry"),
		descStyle.Render("Web"),
		descStyle.Render("Transport"),
		descStyle.Render("Copy"),
		descStyle.Render("Abort"),
	)
	statusBar = StatusStyle.Render(statusBar)

	parts := []string{title, "", a.viewport.View(), a.textarea.View()}
	if statusLine != "" {
		parts = append(parts, statusLine)
	}
	parts = append(parts, statusBar)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (a AppView) getModelList() []catalog.ModelInfo {
	if a.modelFilterMode && a.modelFilterInput.Value() != "" {
		return a.filteredModelList
	}
	return a.modelList
}

func (a AppView) getConvList() []storage.ConversationMetadata {
	if a.convFilterMode && a.convFilterInput.Value() != "" {
		return a.filteredConvList
	}
	return a.convList
}

func (a *AppView) closeAllModals() {
	a.showHelp = false
	a.showModelSelector = false
	a.showConversationManager = false

	a.modelFilterMode = false
	a.convFilterMode = false
	a.convRenameMode = false
	a.confirmDeleteConv = nil

	if a.modelFilterInput.Focused() {
		a.modelFilterInput.Blur()
	}
	if a.convFilterInput.Focused() {
		a.convFilterInput.Blur()
	}
	if a.convRenameInput.Focused() {
		a.convRenameInput.Blur()
	}
}

// displayModel trims the vendor prefix for the title bar.
func displayModel(id string) string {
	if idx := strings.Index(id, "/"); idx != -1 {
		return id[idx+1:]
	}
	return id
}
