package chat

import (
	"testing"
	"time"

	"orchat/model"
)

func TestBeginTurnAppendsPair(t *testing.T) {
	var rec Reconciler
	conv := &model.Conversation{ID: "c1"}

	opts := model.RequestOptions{Model: "test-model", ReasoningEffort: "high", WebSearch: true}
	user, assistant := rec.BeginTurn(conv, "What is Go?", opts, true)

	if len(conv.Messages) != 2 {
		t.Fatalf("message count = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0] != user || conv.Messages[1] != assistant {
		t.Fatalf("messages not appended in order")
	}

	if user.Role != model.RoleUser || user.Content != "What is Go?" {
		t.Errorf("user message = %+v", user)
	}
	if !user.WasStreaming {
		t.Errorf("was_streaming not recorded on user message")
	}
	if user.Options == nil || *user.Options != opts {
		t.Errorf("request options snapshot = %+v, want %+v", user.Options, opts)
	}
	if user.ID == "" || assistant.ID == "" || user.ID == assistant.ID {
		t.Errorf("ids = %q / %q, want distinct non-empty", user.ID, assistant.ID)
	}

	if assistant.Role != model.RoleAssistant || assistant.Content != "" {
		t.Errorf("placeholder = %+v, want empty assistant message", assistant)
	}

	if conv.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", conv.MessageCount)
	}
	if conv.Title != "What is Go?" {
		t.Errorf("derived title = %q, want first user message", conv.Title)
	}
	if conv.UpdatedAt.IsZero() || conv.CreatedAt.IsZero() {
		t.Errorf("timestamps not set: created=%v updated=%v", conv.CreatedAt, conv.UpdatedAt)
	}
}

func TestReconcileTotalsAndTitleStability(t *testing.T) {
	var rec Reconciler
	conv := &model.Conversation{ID: "c1", Title: "My chat"}

	_, a1 := rec.BeginTurn(conv, "first question", model.RequestOptions{}, true)
	a1.Content = "answer one"
	a1.Usage = &model.Usage{TotalTokens: 10}
	rec.SealFinalized(conv, a1)

	_, a2 := rec.BeginTurn(conv, "second question", model.RequestOptions{}, true)
	a2.Content = "answer two"
	a2.Usage = &model.Usage{TotalTokens: 7}
	rec.SealFinalized(conv, a2)

	if conv.TotalTokens != 17 {
		t.Errorf("TotalTokens = %d, want 17", conv.TotalTokens)
	}
	if conv.MessageCount != 4 {
		t.Errorf("MessageCount = %d, want 4", conv.MessageCount)
	}
	// An existing title is never replaced by derivation.
	if conv.Title != "My chat" {
		t.Errorf("title = %q, want unchanged", conv.Title)
	}
}

func TestSealFailedKeepsPartialContent(t *testing.T) {
	var rec Reconciler
	conv := &model.Conversation{ID: "c1"}

	_, assistant := rec.BeginTurn(conv, "question", model.RequestOptions{}, true)
	assistant.Content = "partial result"
	before := conv.UpdatedAt

	time.Sleep(time.Millisecond)
	rec.SealFailed(conv, assistant)

	if !assistant.Error || !assistant.RetryAvailable {
		t.Errorf("seal flags = error=%v retry=%v, want both true", assistant.Error, assistant.RetryAvailable)
	}
	if assistant.Content != "partial result" {
		t.Errorf("partial content dropped: %q", assistant.Content)
	}
	if !conv.UpdatedAt.After(before) {
		t.Errorf("UpdatedAt not advanced by seal")
	}
	if len(conv.Messages) != 2 {
		t.Errorf("sealed message removed: count = %d", len(conv.Messages))
	}
}
