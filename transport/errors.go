package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ConnectError is a transport failure before any response arrived
// (connection refused, reset, DNS). These turns have no partial content and
// are always retryable in the current session.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// RateLimitError is a throttling signal from the backend. The core never
// retries it on its own; RetryAfter is surfaced to the user as the suggested
// wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// APIError is any other non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (status %d)", e.Status)
}

// classifyResponse maps a response's status and headers onto the error
// taxonomy. It returns nil for 2xx and consumes nothing from the body except
// a best-effort error message on failure.
func classifyResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
}

// parseRetryAfter handles both forms of the header: delay seconds and an
// HTTP date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

// readErrorMessage extracts {"error": {"message": ...}} from an error body.
// Anything unparseable is ignored; the status code alone is enough.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Message
}
