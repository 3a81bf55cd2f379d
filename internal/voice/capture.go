package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

// CaptureOption configures the Capture.
type CaptureOption func(*Capture)

// WithConfig overrides the recognition settings.
func WithConfig(cfg Config) CaptureOption {
	return func(c *Capture) { c.cfg = cfg }
}

// WithEventBuffer sets the capacity of the per-recording event channel.
func WithEventBuffer(n int) CaptureOption {
	return func(c *Capture) { c.buffer = n }
}

// Capture records one utterance stream at a time.
//
// Every recording gets a generation number. Events from an older
// generation, or arriving after the recording went inactive, are dropped,
// so stopping freezes the transcript the caller last saw.
type Capture struct {
	rec       Recognizer
	cfg       Config
	buffer    int
	supported bool
	log       *logger.Logger

	mu           sync.Mutex
	active       bool
	gen          int
	segments     []segment
	cancel       context.CancelFunc
	onTranscript func(string)
	onState      func(bool)

	// stateMu orders state callbacks. announced is the generation whose
	// start was reported, zero when none is.
	stateMu   sync.Mutex
	announced int
}

// NewCapture wraps rec. A nil rec yields a Capture that reports itself
// unsupported and refuses to start.
func NewCapture(rec Recognizer, log *logger.Logger, opts ...CaptureOption) *Capture {
	c := &Capture{
		rec:       rec,
		cfg:       DefaultConfig(),
		buffer:    16,
		supported: rec != nil,
		log:       log.Named("voice"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsSupported reports whether a speech backend is available.
func (c *Capture) IsSupported() bool { return c.supported }

// IsActive reports whether a recording is in progress.
func (c *Capture) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// OnTranscript sets the function that receives the cumulative transcript
// of the current recording after every recognition result.
func (c *Capture) OnTranscript(fn func(string)) {
	c.mu.Lock()
	c.onTranscript = fn
	c.mu.Unlock()
}

// OnStateChange sets the function called when recording starts or stops.
// It is called exactly once per transition and must not call back into
// the Capture.
func (c *Capture) OnStateChange(fn func(active bool)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Start begins a new recording with an empty transcript. Starting while
// already recording does nothing.
func (c *Capture) Start(ctx context.Context) error {
	if !c.supported {
		return domain.ErrUnsupported
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.active = true
	c.segments = nil
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	events := make(chan Event, c.buffer)
	if err := c.rec.Start(runCtx, c.cfg, events); err != nil {
		c.mu.Lock()
		c.active = false
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		c.log.Error("start failed: %v", err)
		return fmt.Errorf("voice: start recognizer: %w", err)
	}

	// Stop may have run while the recognizer was starting.
	c.stateMu.Lock()
	c.mu.Lock()
	live := gen == c.gen && c.active
	c.mu.Unlock()
	if !live {
		c.stateMu.Unlock()
		c.rec.Stop()
		cancel()
		go func() {
			for range events {
			}
		}()
		c.log.Info("recording stopped before it started")
		return nil
	}
	c.announced = gen
	c.emitState(true)
	c.stateMu.Unlock()

	c.log.Info("recording started (lang=%s, interim=%v)", c.cfg.Language, c.cfg.InterimResults)
	go c.pump(gen, events)
	return nil
}

// Stop ends the current recording. The transcript delivered so far stays
// with the caller. Safe to call when not recording.
func (c *Capture) Stop() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.deactivate(gen, "stopped")
}

// Close stops any active recognition. Call it when the interface goes away.
func (c *Capture) Close() {
	c.Stop()
}

func (c *Capture) pump(gen int, events <-chan Event) {
	for ev := range events {
		c.handle(gen, ev)
	}
	c.deactivate(gen, "recognizer finished")
}

func (c *Capture) handle(gen int, ev Event) {
	switch ev.Type {
	case EventStart:
		c.log.Debug("recognizer started")
	case EventResult:
		c.mu.Lock()
		if gen != c.gen || !c.active {
			c.mu.Unlock()
			return
		}
		c.segments = applyResult(c.segments, ev.Text, ev.Final)
		joined := joinSegments(c.segments)
		fn := c.onTranscript
		c.mu.Unlock()

		c.log.Debug("result (final=%v): %q", ev.Final, joined)
		if fn != nil {
			fn(joined)
		}
	case EventError:
		c.log.Error("speech recognition error: %v", ev.Err)
		c.deactivate(gen, "error")
	case EventEnd:
		c.deactivate(gen, "ended")
	}
}

// deactivate moves recording gen to inactive. Only the first call for a
// generation has any effect.
func (c *Capture) deactivate(gen int, reason string) {
	c.mu.Lock()
	if gen != c.gen || !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	c.rec.Stop()
	if cancel != nil {
		cancel()
	}
	c.log.Info("recording %s", reason)

	c.stateMu.Lock()
	if c.announced == gen {
		c.announced = 0
		c.emitState(false)
	}
	c.stateMu.Unlock()
}

func (c *Capture) emitState(active bool) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(active)
	}
}
