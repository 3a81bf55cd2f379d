package voice

import "testing"

func TestApplyResult(t *testing.T) {
	type result struct {
		text  string
		final bool
	}
	tests := []struct {
		name    string
		results []result
		want    string
	}{
		{"single interim", []result{{"hola", false}}, "hola"},
		{"interim revised", []result{{"hola", false}, {"hola com", false}}, "hola com"},
		{"final seals", []result{{"hola", true}, {"adiós", false}}, "hola adiós"},
		{"two finals", []result{{"uno", true}, {"dos", true}}, "uno dos"},
		{"empty final drops interim", []result{{"uno", true}, {"eh", false}, {"", true}}, "uno"},
		{"empty interim ignored", []result{{"uno", false}, {"  ", false}}, "uno"},
		{"whitespace collapsed", []result{{"  la   razón ", true}}, "la razón"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var segs []segment
			for _, r := range tt.results {
				segs = applyResult(segs, r.text, r.final)
			}
			if got := joinSegments(segs); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hola\nmundo  ", "hola mundo"},
		{"[BLANK_AUDIO]", ""},
		{"(música) ¿qué es la virtud?", "¿qué es la virtud?"},
		{"[00:00:00.000 --> 00:00:04.000] buenos días", "buenos días"},
		{"Gracias.", ""},
		{"gracias por la explicación", "gracias por la explicación"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanTranscription(tt.in); got != tt.want {
			t.Errorf("cleanTranscription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeepgramLanguage(t *testing.T) {
	for in, want := range map[string]string{"es-ES": "es", "": "es", "EN-us": "en", "pt": "pt"} {
		if got := deepgramLanguage(in); got != want {
			t.Errorf("deepgramLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
