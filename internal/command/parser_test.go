package command

import (
	"testing"

	"github.com/hammamikhairi/filosofo/internal/logger"
)

func TestParser(t *testing.T) {
	p := NewParser(logger.New(logger.LevelOff, nil))

	tests := []struct {
		input    string
		wantKind Kind
		wantText string
	}{
		// Messages
		{"¿Qué es la virtud?", KindMessage, "¿Qué es la virtud?"},
		{"  hola  ", KindMessage, "hola"},
		{"", KindMessage, ""},
		{"//etc es una ruta", KindMessage, "/etc es una ruta"},

		// Voice
		{"/voz", KindVoice, ""},
		{"/VOZ", KindVoice, ""},
		{"/mic", KindVoice, ""},

		// Correct
		{"/corregir", KindCorrect, ""},
		{"/fix", KindCorrect, ""},
		{"/corregir que es la etica", KindCorrect, "que es la etica"},

		// Silence
		{"/silencio", KindSilence, ""},
		{"/mute", KindSilence, ""},

		// Help
		{"/ayuda", KindHelp, ""},
		{"/?", KindHelp, ""},

		// Quit
		{"/salir", KindQuit, ""},
		{"/adiós", KindQuit, ""},
		{" /q ", KindQuit, ""},
		{"/salir ahora", KindQuit, "ahora"},

		// Unknown
		{"/kant", KindUnknown, "kant"},
		{"/", KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := p.Parse(tt.input)
			if got.Kind != tt.wantKind {
				t.Errorf("Parse(%q).Kind = %v, want %v", tt.input, got.Kind, tt.wantKind)
			}
			if got.Text != tt.wantText {
				t.Errorf("Parse(%q).Text = %q, want %q", tt.input, got.Text, tt.wantText)
			}
		})
	}
}
