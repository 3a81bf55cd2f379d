package voice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

func newTestCapture(rec Recognizer) (*Capture, chan string, chan bool) {
	c := NewCapture(rec, logger.New(logger.LevelOff, nil))
	transcripts := make(chan string, 16)
	states := make(chan bool, 16)
	c.OnTranscript(func(s string) { transcripts <- s })
	c.OnStateChange(func(active bool) { states <- active })
	return c, transcripts, states
}

func TestCaptureInterimThenFinal(t *testing.T) {
	rec := &fakeRecognizer{}
	c, transcripts, states := newTestCapture(rec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !waitFor(t, states) || !c.IsActive() {
		t.Fatal("expected recording to be active")
	}
	if rec.cfg.Language != "es-ES" || !rec.cfg.InterimResults || !rec.cfg.Continuous {
		t.Fatalf("unexpected recognizer config: %+v", rec.cfg)
	}

	steps := []struct {
		ev   Event
		want string
	}{
		{interim("hola com"), "hola com"},
		{final("hola cómo estás"), "hola cómo estás"},
		{interim("qué es"), "hola cómo estás qué es"},
		{interim("qué es la verdad"), "hola cómo estás qué es la verdad"},
	}
	for _, s := range steps {
		rec.emit(s.ev)
		if got := waitFor(t, transcripts); got != s.want {
			t.Fatalf("after %q: transcript %q, want %q", s.ev.Text, got, s.want)
		}
	}

	c.Stop()
	if waitFor(t, states) || c.IsActive() {
		t.Fatal("expected recording to stop")
	}
}

func TestCaptureStartResetsTranscript(t *testing.T) {
	rec := &fakeRecognizer{}
	c, transcripts, states := newTestCapture(rec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, states)
	rec.emit(final("primera frase"))
	waitFor(t, transcripts)
	c.Stop()
	waitFor(t, states)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitFor(t, states)
	rec.emit(final("segunda"))
	if got := waitFor(t, transcripts); got != "segunda" {
		t.Fatalf("new recording must start empty, got %q", got)
	}
	c.Close()
}

func TestCaptureErrorEndsOnce(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewCapture(rec, logger.New(logger.LevelOff, nil))

	var mu sync.Mutex
	var transitions []bool
	stopped := make(chan struct{}, 4)
	c.OnStateChange(func(active bool) {
		mu.Lock()
		transitions = append(transitions, active)
		mu.Unlock()
		if !active {
			stopped <- struct{}{}
		}
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	rec.emit(Event{Type: EventError, Err: errors.New("not-allowed")})
	waitFor(t, stopped)

	// Later end notifications and stops do not transition again.
	rec.emit(Event{Type: EventEnd})
	c.Stop()
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("expected exactly [true false], got %v", transitions)
	}
	if c.IsActive() {
		t.Fatal("capture must be inactive after error")
	}
}

func TestCaptureBackendEndsOnItsOwn(t *testing.T) {
	rec := &fakeRecognizer{}
	c, transcripts, states := newTestCapture(rec)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, states)
	rec.emit(final("silencio"))
	waitFor(t, transcripts)
	rec.finish()

	if waitFor(t, states) {
		t.Fatal("expected inactive after backend ended")
	}
	if c.IsActive() {
		t.Fatal("capture still active")
	}
}

func TestCaptureUnsupported(t *testing.T) {
	c := NewCapture(nil, logger.New(logger.LevelOff, nil))
	if c.IsSupported() {
		t.Fatal("nil recognizer must be unsupported")
	}
	if err := c.Start(context.Background()); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	c.Stop()
	c.Close()
}

func TestCaptureStartFailure(t *testing.T) {
	rec := &fakeRecognizer{startErr: errors.New("no microphone")}
	c, _, states := newTestCapture(rec)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if c.IsActive() {
		t.Fatal("failed start must leave capture inactive")
	}
	select {
	case s := <-states:
		t.Fatalf("unexpected state transition %v", s)
	default:
	}
}

func TestCaptureStopDuringStart(t *testing.T) {
	rec := &fakeRecognizer{}
	c, _, states := newTestCapture(rec)
	rec.onStart = c.Stop

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.IsActive() {
		t.Fatal("stop during start must leave capture inactive")
	}
	select {
	case s := <-states:
		t.Fatalf("unexpected state transition %v", s)
	default:
	}

	// The next recording starts and ends normally.
	rec.onStart = nil
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !waitFor(t, states) {
		t.Fatal("expected recording to start")
	}
	c.Stop()
	if waitFor(t, states) {
		t.Fatal("expected recording to stop")
	}
}
