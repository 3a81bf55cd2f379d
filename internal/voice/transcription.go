package voice

import (
	"regexp"
	"strings"
)

// annotation matches whisper environmental annotations like
// "[BLANK_AUDIO]", "(música)" or "[risas]".
var annotation = regexp.MustCompile(`[\(\[][\p{L}_][\p{L}_\s]*[\)\]]`)

// timestamp matches a leading "[00:00:00.000 --> 00:00:05.000]".
var timestamp = regexp.MustCompile(`^\[[0-9:.]+\s*-->\s*[0-9:.]+\]`)

// hallucinations are phrases whisper invents on silence. A clip that is
// nothing but one of them is discarded.
var hallucinations = []string{
	"...",
	"you",
	"thank you.",
	"gracias.",
	"¡gracias!",
	"gracias por ver el video.",
	"¡suscríbete!",
	"subtítulos realizados por la comunidad de amara.org",
	"sous-titres réalisés para la communauté d'amara.org",
}

// cleanTranscription strips whisper artifacts and normalizes whitespace.
// It returns "" when nothing meaningful is left.
func cleanTranscription(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = timestamp.ReplaceAllString(s, "")
	s = annotation.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if lower == h {
			return ""
		}
	}
	return s
}
