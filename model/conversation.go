package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation is the ordered, durable message history for one chat. The
// message list is append-only except for in-place mutation of the single
// in-flight assistant message; derived fields are recomputed by the
// reconciler after every mutation.
type Conversation struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Messages     []*ChatMessage `json:"messages"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	MessageCount int            `json:"message_count"`
	TotalTokens  int            `json:"total_tokens"`
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FirstUserMessage returns the first user message, or nil.
func (c *Conversation) FirstUserMessage() *ChatMessage {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			return msg
		}
	}
	return nil
}

// LastFailedTurn returns the most recent failed assistant message and the
// user message that originated it. Returns nils when no failed turn exists.
func (c *Conversation) LastFailedTurn() (user, assistant *ChatMessage) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		msg := c.Messages[i]
		if msg.Role != RoleAssistant || !msg.Error {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if c.Messages[j].Role == RoleUser {
				return c.Messages[j], msg
			}
		}
		return nil, msg
	}
	return nil, nil
}

// DeriveTitle generates a conversation title from the first user message.
func DeriveTitle(firstMessage string) string {
	if firstMessage == "" {
		return fmt.Sprintf("Chat %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	name := firstMessage
	if len(name) > 50 {
		name = name[:50] + "..."
	}

	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Sprintf("Chat %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	return name
}
