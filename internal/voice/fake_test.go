package voice

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeRecognizer lets tests drive recognition events by hand.
type fakeRecognizer struct {
	mu       sync.Mutex
	events   chan<- Event
	closed   bool
	startErr error
	starts   int
	stops    int
	cfg      Config

	// onStart runs once the fake has started, before Start returns.
	onStart func()
}

func (f *fakeRecognizer) Start(_ context.Context, cfg Config, events chan<- Event) error {
	f.mu.Lock()
	if f.startErr != nil {
		f.mu.Unlock()
		return f.startErr
	}
	f.starts++
	f.cfg = cfg
	f.events = events
	f.closed = false
	hook := f.onStart
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.finish()
}

func (f *fakeRecognizer) emit(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- ev
}

// finish ends the run as a backend would on its own.
func (f *fakeRecognizer) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.events == nil {
		return
	}
	f.closed = true
	close(f.events)
}

func interim(text string) Event { return Event{Type: EventResult, Text: text} }
func final(text string) Event   { return Event{Type: EventResult, Text: text, Final: true} }

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		var zero T
		return zero
	}
}
