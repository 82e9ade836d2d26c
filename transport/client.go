// Package transport talks HTTP to the chat backend. It owns the two request
// paths - the streaming endpoint whose body is the marker-stream protocol,
// and the buffered endpoint returning a single JSON envelope - and the
// classification of non-2xx responses into the error taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"orchat/config"
	"orchat/model"
)

const (
	streamPath = "/api/chat/stream"
	sendPath   = "/api/chat"
)

// WireMessage is the prompt history entry sent to the backend.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the outbound payload. Both transports accept the same
// shape; the endpoint decides streaming versus buffered.
type ChatRequest struct {
	Messages        []WireMessage `json:"messages"`
	Model           string        `json:"model"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
	WebSearch       bool          `json:"web_search,omitempty"`
}

// BufferedResponse is the non-streaming envelope: one JSON object, no
// incremental frames, no markers.
type BufferedResponse struct {
	Data struct {
		Response  string      `json:"response"`
		Usage     model.Usage `json:"usage"`
		RequestID string      `json:"request_id"`
	} `json:"data"`
}

// Client issues requests against one backend. It imposes no timeout of its
// own; cancellation and deadlines come from the caller's context.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient creates a backend client. baseURL must not be empty.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{},
	}, nil
}

func (c *Client) post(ctx context.Context, path string, req *ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, &ConnectError{Err: err}
	}
	return resp, nil
}

// Stream opens the streaming endpoint and returns the raw response body for
// the record reader. The caller must close it; cancelling ctx aborts the
// stream mid-flight.
func (c *Client) Stream(ctx context.Context, req *ChatRequest) (io.ReadCloser, error) {
	resp, err := c.post(ctx, streamPath, req)
	if err != nil {
		return nil, err
	}

	if err := classifyResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[transport] stream opened: model=%s messages=%d", req.Model, len(req.Messages))
	}
	return resp.Body, nil
}

// Send issues one buffered request and decodes the {"data": {...}} envelope.
func (c *Client) Send(ctx context.Context, req *ChatRequest) (*BufferedResponse, error) {
	resp, err := c.post(ctx, sendPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyResponse(resp); err != nil {
		return nil, err
	}

	var out BufferedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode buffered response: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[transport] buffered response: request_id=%s tokens=%d",
			out.Data.RequestID, out.Data.Usage.TotalTokens)
	}
	return &out, nil
}
