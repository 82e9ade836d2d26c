package chat

import (
	"errors"
	"testing"

	"orchat/model"
)

func TestRouteRetry(t *testing.T) {
	tests := []struct {
		name     string
		user     *model.ChatMessage
		failed   *model.ChatMessage
		expected TransportKind
		wantErr  error
	}{
		{
			name:     "streaming turn retries streaming",
			user:     &model.ChatMessage{Role: model.RoleUser, WasStreaming: true},
			failed:   &model.ChatMessage{Role: model.RoleAssistant, Error: true, RetryAvailable: true},
			expected: TransportStreaming,
		},
		{
			name:     "buffered turn retries buffered",
			user:     &model.ChatMessage{Role: model.RoleUser, WasStreaming: false},
			failed:   &model.ChatMessage{Role: model.RoleAssistant, Error: true, RetryAvailable: true},
			expected: TransportBuffered,
		},
		{
			name:    "prior-session failure refused",
			user:    &model.ChatMessage{Role: model.RoleUser, WasStreaming: true},
			failed:  &model.ChatMessage{Role: model.RoleAssistant, Error: true, RetryAvailable: false},
			wantErr: ErrNotRetryable,
		},
		{
			name:    "no failed turn",
			user:    nil,
			failed:  nil,
			wantErr: ErrNotRetryable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := RouteRetry(tt.user, tt.failed)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RouteRetry: %v", err)
			}
			if kind != tt.expected {
				t.Errorf("transport = %s, want %s", kind, tt.expected)
			}
		})
	}
}
