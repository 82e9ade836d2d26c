package ui

import (
	"orchat/catalog"
	"orchat/model"
	"orchat/storage"
)

// Message type aliases - chat pipeline messages are defined in model package
type snapshotMsg = model.SnapshotMsg
type turnDoneMsg = model.TurnDoneMsg
type decodeWarningMsg = model.DecodeWarningMsg

type markdownRenderedMsg struct {
	MessageID string
	Rendered  string
}

type modelsListMsg struct {
	Models []catalog.ModelInfo
	Err    error
}

type conversationsListMsg struct {
	List []storage.ConversationMetadata
	Err  error
}

type conversationLoadedMsg struct {
	Conv *model.Conversation
	Err  error
}

type conversationDeletedMsg struct {
	ID  string
	Err error
}

type conversationExportedMsg struct {
	Path string
	Err  error
}

type statusClearMsg struct{}
