package stream

import (
	"fmt"
	"strings"
	"testing"
)

func collectWarnings(warnings *[]string) WarnFunc {
	return func(format string, args ...any) {
		*warnings = append(*warnings, fmt.Sprintf(format, args...))
	}
}

func TestDecodeRecordClassification(t *testing.T) {
	tests := []struct {
		name     string
		record   string
		wantKind FrameKind
		wantText string
	}{
		{
			name:     "plain text",
			record:   "Hello world\n",
			wantKind: FrameContent,
			wantText: "Hello world\n",
		},
		{
			name:     "plain text without terminator",
			record:   "trailing",
			wantKind: FrameContent,
			wantText: "trailing",
		},
		{
			name:     "reasoning record",
			record:   ReasoningTag + `{"type":"reasoning","data":"Think. "}` + "\n",
			wantKind: FrameReasoning,
			wantText: "Think. ",
		},
		{
			name:     "json object without reserved key is content",
			record:   `{"foo": 1}` + "\n",
			wantKind: FrameContent,
			wantText: `{"foo": 1}` + "\n",
		},
		{
			name:     "legacy image record suppressed",
			record:   ImageTag + `{"type":"image","data":"base64payload"}` + "\n",
			wantKind: FrameLegacyImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := DecodeRecord(tt.record, nil)
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(frames))
			}
			if frames[0].Kind != tt.wantKind {
				t.Errorf("kind = %d, want %d", frames[0].Kind, tt.wantKind)
			}
			if frames[0].Text != tt.wantText {
				t.Errorf("text = %q, want %q", frames[0].Text, tt.wantText)
			}
		})
	}
}

func TestDecodeRecordAnnotations(t *testing.T) {
	record := AnnotationsTag + `{"type":"annotations","data":[{"url":"http://x.com","title":"X"},{"url":"http://y.com"}]}`

	frames := DecodeRecord(record, nil)
	if len(frames) != 1 || frames[0].Kind != FrameAnnotations {
		t.Fatalf("frames = %+v, want one annotations frame", frames)
	}
	anns := frames[0].Annotations
	if len(anns) != 2 {
		t.Fatalf("got %d annotations, want 2", len(anns))
	}
	if anns[0].URL != "http://x.com" || anns[0].Title == nil || *anns[0].Title != "X" {
		t.Errorf("first annotation = %+v, want url http://x.com title X", anns[0])
	}
	if anns[1].Title != nil {
		t.Errorf("second annotation title = %q, want absent", *anns[1].Title)
	}
}

func TestDecodeRecordFinal(t *testing.T) {
	record := `{"` + FinalKey + `":{"response":"Hello world\n","usage":{"prompt_tokens":3,"completion_tokens":5,"total_tokens":8},"id":"gen-1","model":"meta-llama/llama-3.2-90b-instruct","images":["img-a"]}}`

	frames := DecodeRecord(record, nil)
	if len(frames) != 1 || frames[0].Kind != FrameFinal {
		t.Fatalf("frames = %+v, want one final frame", frames)
	}
	fm := frames[0].Final
	if fm.Response != "Hello world\n" {
		t.Errorf("response = %q, want %q", fm.Response, "Hello world\n")
	}
	if fm.Usage.TotalTokens != 8 {
		t.Errorf("total tokens = %d, want 8", fm.Usage.TotalTokens)
	}
	if fm.ID != "gen-1" || fm.Model != "meta-llama/llama-3.2-90b-instruct" {
		t.Errorf("id/model = %q/%q", fm.ID, fm.Model)
	}
	if len(fm.Images) != 1 || fm.Images[0] != "img-a" {
		t.Errorf("images = %v, want [img-a]", fm.Images)
	}
}

func TestDecodeRecordMalformedControl(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"reasoning with broken json", ReasoningTag + `{"type":"reasoning","data":`},
		{"reasoning with non-string data", ReasoningTag + `{"type":"reasoning","data":42}`},
		{"annotations with object data", AnnotationsTag + `{"type":"annotations","data":{"url":"x"}}`},
		{"annotation without url", AnnotationsTag + `{"type":"annotations","data":[{"title":"no url"}]}`},
		{"final without response", `{"` + FinalKey + `":{"usage":{"total_tokens":1}}}`},
		{"final with non-object value", `{"` + FinalKey + `":"done"}`},
		{"legacy image with broken json", ImageTag + `{"type":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var warnings []string
			frames := DecodeRecord(tt.record, collectWarnings(&warnings))
			if len(frames) != 0 {
				t.Errorf("frames = %+v, want record dropped", frames)
			}
			if len(warnings) == 0 {
				t.Errorf("expected a warning for dropped record")
			}
		})
	}
}

func TestDecodeRecordEmbeddedMarker(t *testing.T) {
	// The transport may glue a marker to the tail of plain text. The text
	// before the marker is content; the marker decodes as its own record.
	record := "The answer." + ReasoningTag + `{"type":"reasoning","data":"hm"}`

	frames := DecodeRecord(record, nil)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Kind != FrameContent || frames[0].Text != "The answer." {
		t.Errorf("frame 0 = %+v, want content %q", frames[0], "The answer.")
	}
	if frames[1].Kind != FrameReasoning || frames[1].Text != "hm" {
		t.Errorf("frame 1 = %+v, want reasoning %q", frames[1], "hm")
	}

	for _, f := range frames {
		if f.Kind == FrameContent && ContainsMarker(f.Text) {
			t.Errorf("marker leaked into content frame: %q", f.Text)
		}
	}
}

func TestDecodeRecordEmbeddedFinal(t *testing.T) {
	final := `{"` + FinalKey + `":{"response":"done","usage":{"total_tokens":1},"id":"g","model":"m"}}`
	frames := DecodeRecord("tail text"+final, nil)

	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Kind != FrameContent || frames[0].Text != "tail text" {
		t.Errorf("frame 0 = %+v, want content %q", frames[0], "tail text")
	}
	if frames[1].Kind != FrameFinal || frames[1].Final.Response != "done" {
		t.Errorf("frame 1 = %+v, want final with response done", frames[1])
	}
}

func TestSanitize(t *testing.T) {
	dirty := "before" + ReasoningTag + "middle" + FinalKey + "after"
	clean := Sanitize(dirty)
	if clean != "beforemiddleafter" {
		t.Errorf("Sanitize = %q, want %q", clean, "beforemiddleafter")
	}
	if ContainsMarker(clean) {
		t.Errorf("sanitized string still contains a marker: %q", clean)
	}
	if got := Sanitize("no markers here"); got != "no markers here" {
		t.Errorf("Sanitize changed clean input: %q", got)
	}
	if !ContainsMarker(strings.Repeat(" ", 2) + AnnotationsTag) {
		t.Errorf("ContainsMarker missed an embedded tag")
	}
}
