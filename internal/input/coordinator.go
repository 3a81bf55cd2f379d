// Package input owns the text the user is composing, whether typed or
// dictated, and decides when it may be submitted.
package input

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

// Recorder is the speech capture the coordinator drives.
type Recorder interface {
	IsSupported() bool
	IsActive() bool
	Start(ctx context.Context) error
	Stop()
	OnTranscript(fn func(string))
	OnStateChange(fn func(active bool))
}

// State is what the input area shows.
type State struct {
	Value     string
	Recording bool
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithCorrector enables Correct.
func WithCorrector(corr domain.Corrector) Option {
	return func(c *Coordinator) { c.corrector = corr }
}

// Coordinator arbitrates between typing and dictation. While recording,
// the transcript owns the value and manual edits are dropped.
type Coordinator struct {
	rec       Recorder
	loading   func() bool
	corrector domain.Corrector
	log       *logger.Logger

	mu        sync.Mutex
	value     string
	recording bool
	onChange  func(State)
}

// New creates a Coordinator. rec may be nil when no speech backend is
// configured. loading reports whether a reply is being generated.
func New(rec Recorder, loading func() bool, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		rec:     rec,
		loading: loading,
		log:     log.Named("input"),
	}
	for _, o := range opts {
		o(c)
	}
	if rec != nil {
		rec.OnTranscript(c.onTranscript)
		rec.OnStateChange(c.onRecorderState)
	}
	return c
}

// OnChange sets the function called whenever the value or the recording
// flag changes. It runs on the goroutine that caused the change.
func (c *Coordinator) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Value returns the current input text.
func (c *Coordinator) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// IsRecording reports whether dictation is in progress.
func (c *Coordinator) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// State returns the value and recording flag together.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Value: c.value, Recording: c.recording}
}

// CanRecord reports whether a speech backend is available.
func (c *Coordinator) CanRecord() bool {
	return c.rec != nil && c.rec.IsSupported()
}

// OnManualChange replaces the value with typed text. Ignored while
// recording.
func (c *Coordinator) OnManualChange(text string) {
	c.mu.Lock()
	if c.recording || c.value == text {
		c.mu.Unlock()
		return
	}
	c.value = text
	c.mu.Unlock()
	c.notify()
}

// ToggleRecording starts dictation with an empty value, or stops it and
// keeps the last transcript for editing. It does nothing when speech is
// unsupported or a reply is loading, and says why through the error.
func (c *Coordinator) ToggleRecording(ctx context.Context) error {
	if !c.CanRecord() {
		return domain.ErrUnsupported
	}
	if c.loading() {
		return domain.ErrBusy
	}
	if c.IsRecording() {
		c.rec.Stop()
		return nil
	}

	c.mu.Lock()
	c.value = ""
	c.mu.Unlock()
	c.notify()

	if err := c.rec.Start(ctx); err != nil {
		c.log.Warn("start recording: %v", err)
		return fmt.Errorf("input: %w", err)
	}
	return nil
}

// Submit hands out the trimmed value and clears it. It refuses blank
// input and anything while loading, leaving the state untouched.
// Submitting during dictation stops it first.
func (c *Coordinator) Submit() (string, bool) {
	if c.loading() {
		return "", false
	}

	c.mu.Lock()
	text := strings.TrimSpace(c.value)
	if text == "" {
		c.mu.Unlock()
		return "", false
	}
	recording := c.recording
	c.mu.Unlock()

	if recording {
		c.rec.Stop()
	}

	c.mu.Lock()
	c.value = ""
	c.mu.Unlock()
	c.notify()
	return text, true
}

// Correct fixes grammar and spelling of the value through the model.
// On failure the value is left as it was. A correction that finishes
// after the user edited the text is discarded.
func (c *Coordinator) Correct(ctx context.Context) (string, error) {
	if c.corrector == nil {
		return "", domain.ErrUnsupported
	}
	if c.loading() {
		return "", domain.ErrBusy
	}

	c.mu.Lock()
	if c.recording {
		c.mu.Unlock()
		return "", domain.ErrBusy
	}
	original := c.value
	c.mu.Unlock()

	if strings.TrimSpace(original) == "" {
		return original, nil
	}

	corrected, err := c.corrector.Correct(ctx, original)
	if err != nil {
		c.log.Warn("correction failed, keeping original: %v", err)
		return original, fmt.Errorf("input: correct: %w", err)
	}

	c.mu.Lock()
	if c.value != original || c.recording {
		c.mu.Unlock()
		c.log.Debug("value changed during correction, discarding")
		return c.Value(), nil
	}
	c.value = corrected
	c.mu.Unlock()
	c.notify()
	return corrected, nil
}

func (c *Coordinator) onTranscript(text string) {
	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return
	}
	c.value = text
	c.mu.Unlock()
	c.notify()
}

func (c *Coordinator) onRecorderState(active bool) {
	c.mu.Lock()
	if c.recording == active {
		c.mu.Unlock()
		return
	}
	c.recording = active
	c.mu.Unlock()
	c.log.Debug("recording=%v", active)
	c.notify()
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	fn := c.onChange
	st := State{Value: c.value, Recording: c.recording}
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
