// Package chat orchestrates turns: it appends messages through the
// reconciler, runs the streaming or buffered transport for a send, seals the
// assistant message, and persists the conversation. One turn is in flight at
// a time.
package chat

import (
	"errors"

	"orchat/model"
)

// TransportKind identifies which request path a turn uses.
type TransportKind int

const (
	// TransportStreaming is the marker-stream endpoint.
	TransportStreaming TransportKind = iota
	// TransportBuffered is the single-JSON endpoint.
	TransportBuffered
)

func (k TransportKind) String() string {
	if k == TransportBuffered {
		return "buffered"
	}
	return "streaming"
}

// ErrNotRetryable means the failed turn cannot be retried: either it comes
// from a prior session or it was never marked retryable. No network call is
// made.
var ErrNotRetryable = errors.New("turn is not retryable")

// RouteRetry picks the transport for retrying a failed turn from the
// bookkeeping on its originating user message. A retry always reproduces the
// original turn's transport: was_streaming decides, never the current
// default. It refuses when the paired assistant failure is not retryable.
func RouteRetry(user, failed *model.ChatMessage) (TransportKind, error) {
	if user == nil || failed == nil {
		return TransportStreaming, ErrNotRetryable
	}
	if !failed.RetryAvailable {
		return TransportStreaming, ErrNotRetryable
	}
	if user.WasStreaming {
		return TransportStreaming, nil
	}
	return TransportBuffered, nil
}
