package stream

import (
	"errors"

	"orchat/model"
)

// ErrNoFinalMetadata is returned by Finalize when the stream ended without
// ever emitting the final metadata record.
var ErrNoFinalMetadata = errors.New("stream closed without final metadata")

// Finalize seals msg as the authoritative assistant message. Content comes
// from the final metadata's response, not from the provisional buffer, even
// when the two differ; reasoning is the accumulated buffer when non-empty;
// output images come exclusively from the final metadata. The provisional
// content buffer is discarded.
func (a *Assembler) Finalize(msg *model.ChatMessage) error {
	if a.final == nil {
		return ErrNoFinalMetadata
	}

	msg.Content = Sanitize(a.final.Response)
	msg.Reasoning = ""
	if r := a.reasoning.String(); r != "" {
		msg.Reasoning = Sanitize(r)
	}
	msg.Annotations = a.Snapshot().Annotations
	msg.OutputImages = nil
	if len(a.final.Images) > 0 {
		msg.OutputImages = append([]string(nil), a.final.Images...)
	}
	usage := a.final.Usage
	msg.Usage = &usage
	if a.final.Model != "" {
		msg.Model = a.final.Model
	}
	msg.Error = false
	msg.RetryAvailable = false
	return nil
}

// SealPartial seals msg best-effort after a stream that ended, failed, or
// was aborted before final metadata arrived. The buffered content is kept so
// the UI can show the partial result, and the turn is marked failed and
// retryable in this session.
func (a *Assembler) SealPartial(msg *model.ChatMessage) {
	msg.Content = Sanitize(a.content.String())
	msg.Reasoning = ""
	if r := a.reasoning.String(); r != "" {
		msg.Reasoning = Sanitize(r)
	}
	msg.Annotations = a.Snapshot().Annotations
	msg.Error = true
	msg.RetryAvailable = true
}
