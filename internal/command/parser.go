// Package command recognizes the slash commands a user can type instead
// of a message.
package command

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hammamikhairi/filosofo/internal/logger"
)

// Kind identifies a command.
type Kind int

const (
	// KindMessage is ordinary text for the tutor.
	KindMessage Kind = iota
	KindVoice
	KindCorrect
	KindSilence
	KindHelp
	KindQuit
	KindUnknown
)

// String returns the command name.
func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindVoice:
		return "voice"
	case KindCorrect:
		return "correct"
	case KindSilence:
		return "silence"
	case KindHelp:
		return "help"
	case KindQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Command is the parsed form of one input line.
type Command struct {
	Kind Kind
	// Text is the message for KindMessage, the rest of the line after a
	// command word, or the unrecognized word for KindUnknown.
	Text string
}

type rule struct {
	regex *regexp.Regexp
	kind  Kind
}

// Parser matches slash commands by keyword. Spanish names come first;
// English aliases are accepted too.
type Parser struct {
	log   *logger.Logger
	rules []rule
}

// NewParser creates a Parser.
func NewParser(log *logger.Logger) *Parser {
	return &Parser{
		log: log.Named("command"),
		rules: []rule{
			{regexp.MustCompile(`(?i)^(voz|micro|dictar|voice|mic)$`), KindVoice},
			{regexp.MustCompile(`(?i)^(corregir|corrige|revisar|fix)$`), KindCorrect},
			{regexp.MustCompile(`(?i)^(silencio|calla|callar|mute|shh)$`), KindSilence},
			{regexp.MustCompile(`(?i)^(ayuda|help|h|\?)$`), KindHelp},
			{regexp.MustCompile(`(?i)^(salir|adios|adiós|quit|exit|q)$`), KindQuit},
		},
	}
}

// Parse classifies a line. Anything not starting with "/" is a message;
// "//" escapes a message that really starts with a slash.
func (p *Parser) Parse(line string) Command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: KindMessage, Text: trimmed}
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Kind: KindMessage, Text: trimmed[1:]}
	}

	word, args := trimmed[1:], ""
	if i := strings.IndexFunc(word, unicode.IsSpace); i >= 0 {
		word, args = word[:i], word[i:]
	}
	for _, r := range p.rules {
		if r.regex.MatchString(word) {
			p.log.Debug("matched command %s", r.kind)
			return Command{Kind: r.kind, Text: strings.TrimSpace(args)}
		}
	}
	p.log.Debug("unknown command %q", word)
	return Command{Kind: KindUnknown, Text: word}
}

// Help is the command summary shown by /ayuda.
const Help = `Comandos:
  /voz        empezar o detener el dictado (Ctrl+R)
  /corregir   corregir ortografía y gramática del texto escrito (Ctrl+G)
              o del que sigue al comando: /corregir que es la etica
  /silencio   detener la lectura en voz alta
  /ayuda      mostrar esta ayuda
  /salir      salir (Ctrl+C)`
