package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"orchat/config"
	"orchat/model"
	"orchat/stream"
	"orchat/transport"
)

// TurnState names the lifecycle of one turn. Finalized, Aborted and
// StreamFailed are terminal for that message instance; a retry re-enters
// Pending on a fresh message pair.
type TurnState int

const (
	StateIdle TurnState = iota
	StatePending
	StateStreaming
	StateFinalized
	StateAborted
	StateStreamFailed
)

// ErrTurnInFlight is returned by Send while a prior turn's stream is still
// open. One logical turn per conversation at a time.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// Streamer opens the streaming transport for a request.
type Streamer interface {
	Stream(ctx context.Context, req *transport.ChatRequest) (io.ReadCloser, error)
}

// Sender issues one buffered request.
type Sender interface {
	Send(ctx context.Context, req *transport.ChatRequest) (*transport.BufferedResponse, error)
}

// Store persists the conversation after each sealed turn. The store never
// mutates in-memory state; the reconciler owns that.
type Store interface {
	Save(conv *model.Conversation) error
}

// Controller runs turns against one conversation. All decoding, assembly and
// reconciliation happen sequentially between reads of the record source, so
// the assembler's ordering invariants hold without locking; the mutex only
// guards the send-guard and cancellation handle against the UI goroutine.
type Controller struct {
	streamer Streamer
	sender   Sender
	store    Store
	rec      Reconciler
	conv     *model.Conversation

	// publish delivers the live snapshot after every frame; warn receives
	// non-fatal decode problems. Either may be nil.
	publish func(model.Snapshot)
	warn    stream.WarnFunc

	mu       sync.Mutex
	inflight bool
	cancel   context.CancelFunc
	state    TurnState
}

// NewController wires a controller for conv. store may be nil for ephemeral
// conversations.
func NewController(conv *model.Conversation, streamer Streamer, sender Sender, store Store, publish func(model.Snapshot), warn stream.WarnFunc) *Controller {
	if warn == nil {
		warn = func(format string, args ...any) {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[decode] "+format, args...)
			}
		}
	}
	return &Controller{
		streamer: streamer,
		sender:   sender,
		store:    store,
		conv:     conv,
		publish:  publish,
		warn:     warn,
	}
}

// Conversation returns the conversation this controller mutates.
func (c *Controller) Conversation() *model.Conversation {
	return c.conv
}

// SetConversation switches the controller to a different conversation, for
// example when the user opens one from the conversation manager. Refused
// while a turn is in flight.
func (c *Controller) SetConversation(conv *model.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight {
		return ErrTurnInFlight
	}
	c.conv = conv
	c.state = StateIdle
	return nil
}

// State returns the state of the most recent turn.
func (c *Controller) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Streaming reports whether a turn is currently in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Abort cooperatively cancels the in-flight stream, if any. The turn seals
// its partial content and ends in StateAborted.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Send runs one full turn: append the user message and assistant
// placeholder, call the chosen transport, seal the assistant message, and
// persist the conversation. It returns the sealed assistant message together
// with the turn-level error, so a failed turn still hands back the partial
// result.
func (c *Controller) Send(ctx context.Context, content string, opts model.RequestOptions, streaming bool) (*model.ChatMessage, error) {
	ctx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.end()

	user, assistant := c.rec.BeginTurn(c.conv, content, opts, streaming)

	req := c.buildRequest(user, opts)
	if streaming {
		err = c.runStreaming(ctx, req, assistant)
	} else {
		err = c.runBuffered(ctx, req, assistant)
	}

	c.persist()
	return assistant, err
}

// Retry re-runs the last failed turn through the transport recorded on its
// originating user message, with the original request options. The failed
// pair stays in the history; the retry appends a new turn.
func (c *Controller) Retry(ctx context.Context) (*model.ChatMessage, error) {
	user, failed := c.conv.LastFailedTurn()
	kind, err := RouteRetry(user, failed)
	if err != nil {
		return nil, err
	}

	opts := model.RequestOptions{}
	if user.Options != nil {
		opts = *user.Options
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[chat] retrying failed turn via %s transport", kind)
	}
	return c.Send(ctx, user.Content, opts, kind == TransportStreaming)
}

func (c *Controller) begin(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight {
		return nil, ErrTurnInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	c.inflight = true
	c.cancel = cancel
	c.state = StatePending
	return ctx, nil
}

func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inflight = false
}

func (c *Controller) setState(s TurnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// buildRequest assembles the prompt history: every sealed, non-failed
// message up to and including the new user message. Failed turns and the
// fresh placeholder are excluded.
func (c *Controller) buildRequest(user *model.ChatMessage, opts model.RequestOptions) *transport.ChatRequest {
	var history []transport.WireMessage
	for _, msg := range c.conv.Messages {
		if msg.Error {
			continue
		}
		if msg.Role == model.RoleAssistant && msg.Content == "" {
			continue
		}
		history = append(history, transport.WireMessage{Role: msg.Role, Content: msg.Content})
		if msg == user {
			break
		}
	}

	return &transport.ChatRequest{
		Messages:        history,
		Model:           opts.Model,
		ReasoningEffort: opts.ReasoningEffort,
		WebSearch:       opts.WebSearch,
	}
}

func (c *Controller) runStreaming(ctx context.Context, req *transport.ChatRequest, assistant *model.ChatMessage) error {
	body, err := c.streamer.Stream(ctx, req)
	if err != nil {
		// Transport failure before any data: nothing partial to preserve.
		c.rec.SealFailed(c.conv, assistant)
		c.setState(StateStreamFailed)
		return err
	}
	defer body.Close()

	c.setState(StateStreaming)
	asm := stream.NewAssembler()
	reader := stream.NewRecordReader(body)

	var readErr error
	for {
		record, err := reader.Next()
		if record != "" {
			finalSeen := false
			for _, frame := range stream.DecodeRecord(record, c.warn) {
				if asm.Apply(frame) {
					finalSeen = true
					break
				}
			}
			c.publishSnapshot(asm)
			if finalSeen {
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
	}

	if asm.Final() != nil {
		if err := asm.Finalize(assistant); err != nil {
			return err
		}
		c.rec.SealFinalized(c.conv, assistant)
		c.setState(StateFinalized)
		c.publishSnapshot(asm)
		return nil
	}

	// The stream ended without final metadata: seal best-effort and mark the
	// turn failed. An abort is sealed the same way but ends in Aborted.
	asm.SealPartial(assistant)
	if ctx.Err() != nil {
		c.rec.SealAborted(c.conv, assistant)
		c.setState(StateAborted)
		return ctx.Err()
	}

	c.rec.SealFailed(c.conv, assistant)
	c.setState(StateStreamFailed)
	if readErr != nil {
		return readErr
	}
	return stream.ErrNoFinalMetadata
}

func (c *Controller) runBuffered(ctx context.Context, req *transport.ChatRequest, assistant *model.ChatMessage) error {
	c.setState(StateStreaming)

	resp, err := c.sender.Send(ctx, req)
	if err != nil {
		c.rec.SealFailed(c.conv, assistant)
		c.setState(StateStreamFailed)
		return err
	}

	assistant.Content = stream.Sanitize(resp.Data.Response)
	usage := resp.Data.Usage
	assistant.Usage = &usage
	assistant.Error = false
	assistant.RetryAvailable = false

	c.rec.SealFinalized(c.conv, assistant)
	c.setState(StateFinalized)
	return nil
}

func (c *Controller) publishSnapshot(asm *stream.Assembler) {
	if c.publish != nil {
		c.publish(asm.Snapshot())
	}
}

func (c *Controller) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.conv); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[chat] failed to persist conversation %s: %v", c.conv.ID, err)
	}
}
