package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestStreamDeliversBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != streamPath {
			t.Errorf("path = %q, want %q", r.URL.Path, streamPath)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request decode: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		fmt.Fprint(w, "Hello \nworld\n")
	})

	body, err := c.Stream(context.Background(), &ChatRequest{
		Model:    "test-model",
		Messages: []WireMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "Hello \nworld\n" {
		t.Errorf("body = %q", data)
	}
}

func TestSendDecodesEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != sendPath {
			t.Errorf("path = %q, want %q", r.URL.Path, sendPath)
		}
		fmt.Fprint(w, `{"data":{"response":"buffered answer","usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3},"request_id":"req-7"}}`)
	})

	resp, err := c.Send(context.Background(), &ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Data.Response != "buffered answer" {
		t.Errorf("response = %q", resp.Data.Response)
	}
	if resp.Data.Usage.TotalTokens != 3 {
		t.Errorf("total tokens = %d, want 3", resp.Data.Usage.TotalTokens)
	}
	if resp.Data.RequestID != "req-7" {
		t.Errorf("request id = %q, want req-7", resp.Data.RequestID)
	}
}

func TestRateLimitClassification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Send(context.Background(), &ChatRequest{Model: "m"})
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if rl.RetryAfter != 30*time.Second {
		t.Errorf("retry after = %s, want 30s", rl.RetryAfter)
	}
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":{"message":"upstream unavailable"}}`)
	})

	_, err := c.Stream(context.Background(), &ChatRequest{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", apiErr.Status)
	}
	if apiErr.Message != "upstream unavailable" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestConnectErrorOnRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens here anymore

	c, err := NewClient(url, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Send(context.Background(), &ChatRequest{Model: "m"})
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %v, want *ConnectError", err)
	}
}

func TestStreamAbortViaContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	body, err := c.Stream(ctx, &ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer body.Close()

	cancel()
	buf := make([]byte, 16)
	if _, err := body.Read(buf); err == nil {
		t.Errorf("read after cancel succeeded, want error")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "12", 12 * time.Second},
		{"negative ignored", "-5", 0},
		{"garbage ignored", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value); got != tt.expected {
				t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.value, got, tt.expected)
			}
		})
	}
}
