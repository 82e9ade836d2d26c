package stream

import (
	"encoding/json"
	"strings"

	"orchat/model"
)

// Reserved protocol markers. A record starting with one of the chunk tags
// carries a JSON payload immediately after the tag; a record that parses as
// a JSON object with the FinalKey top-level key carries the final metadata.
const (
	ReasoningTag   = "__REASONING_CHUNK__"
	AnnotationsTag = "__ANNOTATIONS_CHUNK__"
	ImageTag       = "__IMAGE_CHUNK__" // legacy incremental images, decoded and discarded
	FinalKey       = "__FINAL_METADATA__"
)

// FrameKind classifies a decoded frame.
type FrameKind int

const (
	FrameContent FrameKind = iota
	FrameReasoning
	FrameAnnotations
	FrameFinal
	FrameLegacyImage
)

// Frame is one decoded unit of the stream protocol.
type Frame struct {
	Kind        FrameKind
	Text        string             // FrameContent, FrameReasoning
	Annotations []model.Annotation // FrameAnnotations
	Final       *FinalMetadata     // FrameFinal
}

// FinalMetadata is the authoritative end-of-turn record. Response replaces
// whatever provisional content was buffered; Images is the only source of
// output images.
type FinalMetadata struct {
	Response string      `json:"response"`
	Usage    model.Usage `json:"usage"`
	ID       string      `json:"id"`
	Model    string      `json:"model"`
	Images   []string    `json:"images,omitempty"`
}

// WarnFunc receives non-fatal decode problems. Decoding never aborts a
// stream: a malformed control record is dropped and reported here.
type WarnFunc func(format string, args ...any)

func warnf(warn WarnFunc, format string, args ...any) {
	if warn != nil {
		warn(format, args...)
	}
}

// taggedPayload is the envelope after a chunk tag:
// {"type": "reasoning", "data": ...}.
type taggedPayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// markerStarts are the substrings that begin a control sequence. The final
// record is matched by its opening brace plus key so a split lands on a
// decodable unit.
var markerStarts = []string{
	ReasoningTag,
	AnnotationsTag,
	ImageTag,
	`{"` + FinalKey,
}

// firstMarkerIndex returns the byte offset of the earliest reserved marker
// in record, or -1.
func firstMarkerIndex(record string) int {
	first := -1
	for _, m := range markerStarts {
		if idx := strings.Index(record, m); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}
	return first
}

// DecodeRecord classifies one record into zero or more frames. Plain text
// yields a single content frame; a recognized tag with a malformed payload
// yields nothing and a warning. A marker glued to the end of plain text by
// the transport splits the record, so reserved tags can never reach the
// content buffer.
func DecodeRecord(record string, warn WarnFunc) []Frame {
	if record == "" {
		return nil
	}

	if idx := firstMarkerIndex(record); idx > 0 {
		frames := []Frame{{Kind: FrameContent, Text: record[:idx]}}
		return append(frames, DecodeRecord(record[idx:], warn)...)
	}

	switch {
	case strings.HasPrefix(record, ReasoningTag):
		return decodeReasoning(record[len(ReasoningTag):], warn)
	case strings.HasPrefix(record, AnnotationsTag):
		return decodeAnnotations(record[len(AnnotationsTag):], warn)
	case strings.HasPrefix(record, ImageTag):
		return decodeLegacyImage(record[len(ImageTag):], warn)
	}

	if frames, isFinal := decodeFinal(record, warn); isFinal {
		return frames
	}

	return []Frame{{Kind: FrameContent, Text: record}}
}

func decodeReasoning(payload string, warn WarnFunc) []Frame {
	var env taggedPayload
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		warnf(warn, "dropping malformed reasoning record: %v", err)
		return nil
	}
	var text string
	if err := json.Unmarshal(env.Data, &text); err != nil {
		warnf(warn, "dropping reasoning record with non-string data: %v", err)
		return nil
	}
	return []Frame{{Kind: FrameReasoning, Text: text}}
}

func decodeAnnotations(payload string, warn WarnFunc) []Frame {
	var env taggedPayload
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		warnf(warn, "dropping malformed annotations record: %v", err)
		return nil
	}
	var anns []model.Annotation
	if err := json.Unmarshal(env.Data, &anns); err != nil {
		warnf(warn, "dropping annotations record with bad data: %v", err)
		return nil
	}

	kept := anns[:0]
	for _, a := range anns {
		if a.Key() == "" {
			warnf(warn, "dropping annotation without url")
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return nil
	}
	return []Frame{{Kind: FrameAnnotations, Annotations: kept}}
}

// decodeLegacyImage parses the deprecated incremental image record and
// suppresses it. Output images arrive only in the final metadata.
func decodeLegacyImage(payload string, warn WarnFunc) []Frame {
	var env taggedPayload
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		warnf(warn, "dropping malformed image record: %v", err)
		return nil
	}
	return []Frame{{Kind: FrameLegacyImage}}
}

// decodeFinal reports whether record is the final metadata record. A JSON
// object without the reserved key is ordinary content; an object with the
// key but an invalid value is dropped with a warning.
func decodeFinal(record string, warn WarnFunc) ([]Frame, bool) {
	trimmed := strings.TrimSpace(record)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, false
	}
	raw, ok := obj[FinalKey]
	if !ok {
		return nil, false
	}

	// Required-field check: a final record without a response would wipe the
	// turn's content, so it is dropped instead.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		warnf(warn, "dropping malformed final metadata: %v", err)
		return nil, true
	}
	if _, ok := fields["response"]; !ok {
		warnf(warn, "dropping final metadata without response field")
		return nil, true
	}

	var fm FinalMetadata
	if err := json.Unmarshal(raw, &fm); err != nil {
		warnf(warn, "dropping malformed final metadata: %v", err)
		return nil, true
	}
	return []Frame{{Kind: FrameFinal, Final: &fm}}, true
}
