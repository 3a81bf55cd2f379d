package chat

import "strings"

const (
	fenceOpen  = "```html"
	fenceClose = "```"
)

// CleanResponse strips the markdown fence the model sometimes wraps its
// HTML in: a leading "```html" (plus one line break) and a trailing "```"
// (plus the line break before it). Fences can be split across chunks, so
// this runs on the complete reply only. Stripping repeats until nothing
// changes, which makes CleanResponse(CleanResponse(s)) == CleanResponse(s).
func CleanResponse(text string) string {
	for {
		next := stripFences(text)
		if next == text {
			return text
		}
		text = next
	}
}

func stripFences(text string) string {
	if rest, ok := strings.CutPrefix(text, fenceOpen); ok {
		text = strings.TrimPrefix(rest, "\n")
	}
	if rest, ok := strings.CutSuffix(text, fenceClose); ok {
		text = strings.TrimSuffix(rest, "\n")
	}
	return text
}
