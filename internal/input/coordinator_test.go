package input

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

// fakeRecorder reports state changes synchronously, like voice.Capture
// does for Start and Stop.
type fakeRecorder struct {
	supported    bool
	active       bool
	startErr     error
	onTranscript func(string)
	onState      func(bool)
}

func (f *fakeRecorder) IsSupported() bool { return f.supported }
func (f *fakeRecorder) IsActive() bool    { return f.active }

func (f *fakeRecorder) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	f.onState(true)
	return nil
}

func (f *fakeRecorder) Stop() {
	if !f.active {
		return
	}
	f.active = false
	f.onState(false)
}

func (f *fakeRecorder) OnTranscript(fn func(string)) { f.onTranscript = fn }
func (f *fakeRecorder) OnStateChange(fn func(bool))  { f.onState = fn }
func (f *fakeRecorder) say(text string)              { f.onTranscript(text) }

type fakeCorrector struct {
	out string
	err error
}

func (f fakeCorrector) Correct(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return text, f.err
	}
	return f.out, nil
}

func newTest(rec Recorder, opts ...Option) (*Coordinator, *atomic.Bool) {
	loading := &atomic.Bool{}
	return New(rec, loading.Load, logger.New(logger.LevelOff, nil), opts...), loading
}

func TestDictationInterimThenFinal(t *testing.T) {
	rec := &fakeRecorder{supported: true}
	c, _ := newTest(rec)
	c.OnManualChange("borrador")

	if err := c.ToggleRecording(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !c.IsRecording() || c.Value() != "" {
		t.Fatalf("starting must clear the value, got %+v", c.State())
	}

	rec.say("hola com")
	if c.Value() != "hola com" {
		t.Fatalf("interim not shown: %q", c.Value())
	}
	rec.say("hola cómo estás")

	if err := c.ToggleRecording(context.Background()); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if c.IsRecording() || c.Value() != "hola cómo estás" {
		t.Fatalf("stop must keep transcript, got %+v", c.State())
	}

	c.OnManualChange("hola, ¿cómo estás?")
	if c.Value() != "hola, ¿cómo estás?" {
		t.Fatalf("value must be editable after stop, got %q", c.Value())
	}
}

func TestManualChangeIgnoredWhileRecording(t *testing.T) {
	rec := &fakeRecorder{supported: true}
	c, _ := newTest(rec)

	_ = c.ToggleRecording(context.Background())
	rec.say("dictado")
	c.OnManualChange("tecleado")
	if c.Value() != "dictado" {
		t.Fatalf("manual edit leaked into recording: %q", c.Value())
	}
}

func TestTranscriptIgnoredWhenNotRecording(t *testing.T) {
	rec := &fakeRecorder{supported: true}
	c, _ := newTest(rec)
	c.OnManualChange("mío")
	rec.say("tarde")
	if c.Value() != "mío" {
		t.Fatalf("late transcript overwrote value: %q", c.Value())
	}
}

func TestRecorderEndingOnItsOwn(t *testing.T) {
	rec := &fakeRecorder{supported: true}
	c, _ := newTest(rec)

	_ = c.ToggleRecording(context.Background())
	rec.say("algo")
	rec.Stop()

	if c.IsRecording() {
		t.Fatal("recording flag must follow the recorder")
	}
	if c.Value() != "algo" {
		t.Fatalf("value lost: %q", c.Value())
	}
}

func TestToggleRejected(t *testing.T) {
	tests := []struct {
		name    string
		rec     Recorder
		loading bool
		want    error
	}{
		{"no recorder", nil, false, domain.ErrUnsupported},
		{"unsupported", &fakeRecorder{}, false, domain.ErrUnsupported},
		{"loading", &fakeRecorder{supported: true}, true, domain.ErrBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, loading := newTest(tt.rec)
			c.OnManualChange("texto")
			loading.Store(tt.loading)

			if err := c.ToggleRecording(context.Background()); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if c.IsRecording() || c.Value() != "texto" {
				t.Fatalf("rejected toggle changed state: %+v", c.State())
			}
		})
	}
}

func TestToggleWhileLoadingKeepsDictation(t *testing.T) {
	rec := &fakeRecorder{supported: true}
	c, loading := newTest(rec)
	if err := c.ToggleRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	rec.say("la caverna")
	loading.Store(true)

	if err := c.ToggleRecording(context.Background()); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if !c.IsRecording() || !rec.active || c.Value() != "la caverna" {
		t.Fatalf("toggle while loading changed state: %+v", c.State())
	}
}

func TestToggleStartFailure(t *testing.T) {
	rec := &fakeRecorder{supported: true, startErr: errors.New("no mic")}
	c, _ := newTest(rec)
	if err := c.ToggleRecording(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if c.IsRecording() {
		t.Fatal("failed start must not record")
	}
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		loading   bool
		wantText  string
		wantOK    bool
		wantValue string
	}{
		{"trimmed", "  ¿Qué es el ser?  ", false, "¿Qué es el ser?", true, ""},
		{"whitespace only", "   ", false, "", false, "   "},
		{"empty", "", false, "", false, ""},
		{"while loading", "hola", true, "", false, "hola"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, loading := newTest(nil)
			c.OnManualChange(tt.value)
			loading.Store(tt.loading)

			text, ok := c.Submit()
			if text != tt.wantText || ok != tt.wantOK {
				t.Fatalf("Submit() = (%q, %v), want (%q, %v)", text, ok, tt.wantText, tt.wantOK)
			}
			if c.Value() != tt.wantValue {
				t.Fatalf("value after submit %q, want %q", c.Value(), tt.wantValue)
			}
		})
	}
}

func TestSubmitStopsDictation(t *testing.T) {
	rec := &fakeRecorder{supported: true}
	c, _ := newTest(rec)

	_ = c.ToggleRecording(context.Background())
	rec.say("la duda metódica")
	text, ok := c.Submit()
	if !ok || text != "la duda metódica" {
		t.Fatalf("unexpected submit: %q %v", text, ok)
	}
	if c.IsRecording() || rec.active {
		t.Fatal("submit must stop recording")
	}
	rec.say("eco tardío")
	if c.Value() != "" {
		t.Fatalf("value must stay cleared, got %q", c.Value())
	}
}

func TestCorrect(t *testing.T) {
	t.Run("applies correction", func(t *testing.T) {
		c, _ := newTest(nil, WithCorrector(fakeCorrector{out: "¿Qué es la ética?"}))
		c.OnManualChange("que es la etica")
		got, err := c.Correct(context.Background())
		if err != nil || got != "¿Qué es la ética?" || c.Value() != got {
			t.Fatalf("got %q, %v; value %q", got, err, c.Value())
		}
	})

	t.Run("keeps original on error", func(t *testing.T) {
		c, _ := newTest(nil, WithCorrector(fakeCorrector{err: errors.New("quota")}))
		c.OnManualChange("que es la etica")
		got, err := c.Correct(context.Background())
		if err == nil || got != "que es la etica" || c.Value() != "que es la etica" {
			t.Fatalf("got %q, %v; value %q", got, err, c.Value())
		}
	})

	t.Run("blocked while recording", func(t *testing.T) {
		rec := &fakeRecorder{supported: true}
		c, _ := newTest(rec, WithCorrector(fakeCorrector{out: "x"}))
		_ = c.ToggleRecording(context.Background())
		rec.say("hola")
		if _, err := c.Correct(context.Background()); !errors.Is(err, domain.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
		if c.Value() != "hola" {
			t.Fatalf("value changed: %q", c.Value())
		}
	})

	t.Run("blocked while loading", func(t *testing.T) {
		c, loading := newTest(nil, WithCorrector(fakeCorrector{out: "x"}))
		c.OnManualChange("hola")
		loading.Store(true)
		if _, err := c.Correct(context.Background()); !errors.Is(err, domain.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
	})

	t.Run("no corrector", func(t *testing.T) {
		c, _ := newTest(nil)
		if _, err := c.Correct(context.Background()); !errors.Is(err, domain.ErrUnsupported) {
			t.Fatalf("expected ErrUnsupported, got %v", err)
		}
	})
}

func TestOnChangeNotifies(t *testing.T) {
	rec := &fakeRecorder{supported: true}
	c, _ := newTest(rec)

	var states []State
	c.OnChange(func(st State) { states = append(states, st) })

	c.OnManualChange("a")
	_ = c.ToggleRecording(context.Background())
	rec.say("b")
	_ = c.ToggleRecording(context.Background())

	want := []State{
		{Value: "a"},
		{Value: ""},
		{Value: "", Recording: true},
		{Value: "b", Recording: true},
		{Value: "b"},
	}
	if len(states) != len(want) {
		t.Fatalf("got %d notifications %+v, want %d", len(states), states, len(want))
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("notification %d: got %+v, want %+v", i, states[i], want[i])
		}
	}
}
