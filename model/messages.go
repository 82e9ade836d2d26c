package model

// Bubble Tea messages emitted by the chat pipeline. The UI layer receives
// these and re-renders; it never mutates conversation state itself.

// SnapshotMsg carries the live in-flight view after a decoded frame.
type SnapshotMsg struct {
	Snapshot Snapshot
}

// TurnDoneMsg signals that the in-flight turn was sealed, successfully or
// not. Message is the sealed assistant message; Err is the turn-level error
// when the turn failed.
type TurnDoneMsg struct {
	Message *ChatMessage
	Err     error
}

// DecodeWarningMsg surfaces a non-fatal decode problem (malformed control
// record). The stream keeps going; this is informational only.
type DecodeWarningMsg struct {
	Warning string
}
