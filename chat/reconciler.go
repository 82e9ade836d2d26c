package chat

import (
	"time"

	"github.com/google/uuid"

	"orchat/model"
)

// Reconciler is the only writer of conversation state. It appends message
// pairs at send time, seals the in-flight assistant message at the end of a
// turn, and recomputes the derived fields after every mutation. Sealed
// messages are never removed; corrections happen by appending a new turn.
type Reconciler struct{}

// BeginTurn appends the user message and the assistant placeholder for a new
// turn. The placeholder is the single message the assembler mutates while
// the turn streams.
func (r *Reconciler) BeginTurn(conv *model.Conversation, content string, opts model.RequestOptions, streaming bool) (user, assistant *model.ChatMessage) {
	now := time.Now()

	user = &model.ChatMessage{
		ID:           uuid.New().String(),
		Role:         model.RoleUser,
		Content:      content,
		Timestamp:    now,
		WasStreaming: streaming,
		Options:      &opts,
	}
	assistant = &model.ChatMessage{
		ID:        uuid.New().String(),
		Role:      model.RoleAssistant,
		Timestamp: now,
	}

	conv.Messages = append(conv.Messages, user, assistant)
	r.reconcile(conv)
	return user, assistant
}

// SealFinalized commits a successfully finalized assistant message. The
// message itself was already filled by the finalization handler; this
// updates the conversation's derived state.
func (r *Reconciler) SealFinalized(conv *model.Conversation, assistant *model.ChatMessage) {
	r.reconcile(conv)
}

// SealFailed marks the turn failed. Partial content, if any, stays on the
// message so the UI can show it next to the retry affordance.
func (r *Reconciler) SealFailed(conv *model.Conversation, assistant *model.ChatMessage) {
	assistant.Error = true
	assistant.RetryAvailable = true
	r.reconcile(conv)
}

// SealAborted seals a turn the caller cancelled mid-stream. The originating
// user message keeps was_streaming=true, so a retry goes back through the
// streaming transport.
func (r *Reconciler) SealAborted(conv *model.Conversation, assistant *model.ChatMessage) {
	r.SealFailed(conv, assistant)
}

// reconcile recomputes the derived fields after a mutation of the message
// list.
func (r *Reconciler) reconcile(conv *model.Conversation) {
	conv.MessageCount = len(conv.Messages)
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	total := 0
	for _, msg := range conv.Messages {
		if msg.Usage != nil {
			total += msg.Usage.TotalTokens
		}
	}
	conv.TotalTokens = total

	if conv.Title == "" {
		if first := conv.FirstUserMessage(); first != nil {
			conv.Title = model.DeriveTitle(first.Content)
		}
	}
}
