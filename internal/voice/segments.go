package voice

import "strings"

type segment struct {
	text  string
	final bool
}

// applyResult folds one recognition result into the segment list. A
// result revises the trailing segment while that segment is not final;
// otherwise it opens a new one. A final result seals its segment.
func applyResult(segs []segment, text string, final bool) []segment {
	text = cleanSegment(text)
	open := len(segs) > 0 && !segs[len(segs)-1].final

	if text == "" {
		if open && final {
			return segs[:len(segs)-1]
		}
		return segs
	}

	if open {
		segs[len(segs)-1] = segment{text: text, final: final}
		return segs
	}
	return append(segs, segment{text: text, final: final})
}

// joinSegments concatenates every segment, interim ones included, in the
// order they were delivered.
func joinSegments(segs []segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, s.text)
	}
	return strings.Join(parts, " ")
}

// cleanSegment normalizes transcript whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
