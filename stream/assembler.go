package stream

import (
	"strings"

	"orchat/model"
)

// Assembler folds decoded frames into the in-flight view of one turn. It is
// purely additive: no frame retracts previously buffered output. All calls
// happen on the turn's logical thread, between reads of the record source,
// so no locking is needed.
type Assembler struct {
	content   strings.Builder
	reasoning strings.Builder

	// annotations keeps first-seen order; index maps the normalized URL to
	// its position for the merge rule.
	annotations []model.Annotation
	index       map[string]int

	final *FinalMetadata
}

func NewAssembler() *Assembler {
	return &Assembler{index: make(map[string]int)}
}

// Apply folds one frame. It returns true when the frame was the final
// metadata record, which always terminates processing for the turn; frames
// applied after that are ignored.
func (a *Assembler) Apply(f Frame) bool {
	if a.final != nil {
		return true
	}

	switch f.Kind {
	case FrameContent:
		a.content.WriteString(f.Text)
	case FrameReasoning:
		a.reasoning.WriteString(f.Text)
	case FrameAnnotations:
		for _, ann := range f.Annotations {
			a.mergeAnnotation(ann)
		}
	case FrameFinal:
		a.final = f.Final
		return true
	case FrameLegacyImage:
		// Already suppressed by the decoder; nothing to accumulate.
	}
	return false
}

func (a *Assembler) mergeAnnotation(ann model.Annotation) {
	key := ann.Key()
	if i, ok := a.index[key]; ok {
		a.annotations[i].Merge(ann)
		return
	}
	a.index[key] = len(a.annotations)
	a.annotations = append(a.annotations, ann)
}

// Final returns the final metadata, or nil while the turn is still open.
func (a *Assembler) Final() *FinalMetadata {
	return a.final
}

// Snapshot returns the live view for rendering. The returned annotation
// slice is a copy; callers may hold it across further Apply calls.
func (a *Assembler) Snapshot() model.Snapshot {
	anns := make([]model.Annotation, len(a.annotations))
	copy(anns, a.annotations)
	return model.Snapshot{
		Content:     a.content.String(),
		Reasoning:   a.reasoning.String(),
		Annotations: anns,
		Streaming:   a.final == nil,
	}
}
