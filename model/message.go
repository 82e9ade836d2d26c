package model

import (
	"strings"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Annotation is a web-search citation attached to an assistant message.
// URL is the identity: two annotation records whose URLs differ only in case
// refer to the same annotation. Title and Content are pointers because the
// wire protocol distinguishes an empty string from a missing field - only a
// JSON null or an absent key counts as "not populated" when merging.
type Annotation struct {
	URL     string  `json:"url"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Key returns the normalized identity used for deduplication.
func (a Annotation) Key() string {
	return strings.ToLower(strings.TrimSpace(a.URL))
}

// Merge folds a later record for the same URL into a. A field that is
// already populated is kept, even when it holds an empty string; a field the
// earlier record lacked is filled from the later one.
func (a *Annotation) Merge(later Annotation) {
	if a.Title == nil {
		a.Title = later.Title
	}
	if a.Content == nil {
		a.Content = later.Content
	}
}

// Usage holds the token accounting reported by the backend for one turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RequestOptions snapshots the parameters of a send so a retry can reproduce
// the original request exactly.
type RequestOptions struct {
	Model           string `json:"model"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	WebSearch       bool   `json:"web_search,omitempty"`
}

// ChatMessage is one message in a conversation. An assistant message is
// mutated in place while its turn streams and is sealed at finalization or
// failure; user and system messages never change after creation.
type ChatMessage struct {
	ID           string       `json:"id"`
	Role         string       `json:"role"`
	Content      string       `json:"content"`
	Reasoning    string       `json:"reasoning,omitempty"`
	Annotations  []Annotation `json:"annotations,omitempty"`
	OutputImages []string     `json:"output_images,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Model        string       `json:"model,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`

	// Error marks a failed turn. RetryAvailable is false for failures that
	// happened in a prior session; those can only be read, not retried.
	Error          bool `json:"error,omitempty"`
	RetryAvailable bool `json:"retry_available,omitempty"`

	// WasStreaming is recorded on the user message at send time and is
	// immutable afterwards: it decides which transport a retry uses.
	WasStreaming bool `json:"was_streaming,omitempty"`

	// Options is the request snapshot recorded on the user message.
	Options *RequestOptions `json:"requested,omitempty"`
}

// Snapshot is the live in-flight view of a streaming turn, published to the
// UI after every decoded frame. It never touches persistent state.
type Snapshot struct {
	Content     string
	Reasoning   string
	Annotations []Annotation
	Streaming   bool
}
