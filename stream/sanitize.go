package stream

import "strings"

// reservedTags are the marker substrings that must never appear in content
// or reasoning shown to the user.
var reservedTags = []string{
	ReasoningTag,
	AnnotationsTag,
	ImageTag,
	FinalKey,
}

// Sanitize strips reserved protocol markers from s. Sealing applies it to
// content and reasoning as a last line of defense; the decoder's record
// splitting already keeps markers out of the buffers in the normal case.
func Sanitize(s string) string {
	for _, tag := range reservedTags {
		s = strings.ReplaceAll(s, tag, "")
	}
	return s
}

// ContainsMarker reports whether s still carries a reserved marker.
func ContainsMarker(s string) bool {
	for _, tag := range reservedTags {
		if strings.Contains(s, tag) {
			return true
		}
	}
	return false
}
