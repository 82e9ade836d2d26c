package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"orchat/model"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	store, err := NewConversationStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewConversationStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strptr(s string) *string { return &s }

func sampleConversation() *model.Conversation {
	now := time.Now().Truncate(time.Second)
	return &model.Conversation{
		ID:        "conv-1",
		Title:     "Sample chat",
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []*model.ChatMessage{
			{
				ID:           "m1",
				Role:         model.RoleUser,
				Content:      "What is Go?",
				Timestamp:    now,
				WasStreaming: true,
				Options:      &model.RequestOptions{Model: "test-model", ReasoningEffort: "high"},
			},
			{
				ID:        "m2",
				Role:      model.RoleAssistant,
				Content:   "A programming language.",
				Reasoning: "Think. ",
				Annotations: []model.Annotation{
					{URL: "http://x.com", Title: strptr("X"), Content: strptr("snippet")},
				},
				OutputImages: []string{"img-1"},
				Model:        "test-model",
				Usage:        &model.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
				Timestamp:    now,
			},
		},
		MessageCount: 2,
		TotalTokens:  8,
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()

	if err := store.Save(conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Title != conv.Title {
		t.Errorf("title = %q, want %q", loaded.Title, conv.Title)
	}
	if loaded.TotalTokens != 8 || loaded.MessageCount != 2 {
		t.Errorf("derived fields = tokens %d count %d", loaded.TotalTokens, loaded.MessageCount)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(loaded.Messages))
	}

	user := loaded.Messages[0]
	if !user.WasStreaming {
		t.Errorf("was_streaming not persisted")
	}
	if user.Options == nil || user.Options.ReasoningEffort != "high" {
		t.Errorf("request options = %+v", user.Options)
	}

	asst := loaded.Messages[1]
	if asst.Reasoning != "Think. " {
		t.Errorf("reasoning = %q", asst.Reasoning)
	}
	if len(asst.Annotations) != 1 || asst.Annotations[0].Title == nil || *asst.Annotations[0].Title != "X" {
		t.Errorf("annotations = %+v", asst.Annotations)
	}
	if len(asst.OutputImages) != 1 || asst.OutputImages[0] != "img-1" {
		t.Errorf("output images = %v", asst.OutputImages)
	}
	if asst.Usage == nil || asst.Usage.TotalTokens != 8 {
		t.Errorf("usage = %+v", asst.Usage)
	}
}

func TestLoadMarksPriorSessionFailuresNonRetryable(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()
	conv.Messages[1].Error = true
	conv.Messages[1].RetryAvailable = true // retryable in the session that failed

	if err := store.Save(conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	asst := loaded.Messages[1]
	if !asst.Error {
		t.Errorf("error flag not persisted")
	}
	if asst.RetryAvailable {
		t.Errorf("prior-session failure loaded as retryable")
	}
}

func TestSaveIsIdempotentPerConversation(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()

	if err := store.Save(conv); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	conv.Messages[1].Content = "Updated answer."
	if err := store.Save(conv); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := store.Load("conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("got %d messages after re-save, want 2", len(loaded.Messages))
	}
	if loaded.Messages[1].Content != "Updated answer." {
		t.Errorf("content = %q, want updated", loaded.Messages[1].Content)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t)

	older := sampleConversation()
	older.ID = "conv-old"
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := sampleConversation()
	newer.ID = "conv-new"
	newer.UpdatedAt = time.Now()

	if err := store.Save(older); err != nil {
		t.Fatalf("Save older: %v", err)
	}
	if err := store.Save(newer); err != nil {
		t.Fatalf("Save newer: %v", err)
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}
	if list[0].ID != "conv-new" || list[1].ID != "conv-old" {
		t.Errorf("order = [%s, %s], want newest first", list[0].ID, list[1].ID)
	}
}

func TestDeleteRemovesMessages(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete("conv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.Load("conv-1"); err == nil {
		t.Errorf("Load after delete succeeded")
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, "conv-1").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 0 {
		t.Errorf("%d orphaned message rows after delete", count)
	}
}

func TestRename(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Rename("conv-1", "Better title"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	loaded, err := store.Load("conv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != "Better title" {
		t.Errorf("title = %q, want Better title", loaded.Title)
	}

	if err := store.Rename("missing", "x"); err == nil {
		t.Errorf("renaming a missing conversation succeeded")
	}
}

func TestExportToJSON(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(t.TempDir(), "export", "conv.json")
	if err := store.ExportToJSON("conv-1", path); err != nil {
		t.Fatalf("ExportToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var exported model.Conversation
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if exported.ID != "conv-1" || len(exported.Messages) != 2 {
		t.Errorf("exported = id %q, %d messages", exported.ID, len(exported.Messages))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"spaces replaced", "my chat title", "my-chat-title"},
		{"path separators replaced", "a/b\\c", "a-b-c"},
		{"empty becomes generic", "", "conversation"},
		{"only bad characters becomes generic", "///", "conversation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
