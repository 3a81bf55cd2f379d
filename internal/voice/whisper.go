package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/filosofo/internal/logger"
)

// WhisperOption configures the Whisper recognizer.
type WhisperOption func(*Whisper)

// WithChunkDuration sets how long each recorded clip lasts.
func WithChunkDuration(d time.Duration) WhisperOption {
	return func(w *Whisper) { w.chunk = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) WhisperOption {
	return func(w *Whisper) { w.tempDir = dir }
}

// Whisper transcribes the microphone with a local whisper.cpp binary. It
// records back-to-back clips and reports each clip as one final result,
// so it never produces interim text.
type Whisper struct {
	bin     string
	model   string
	tempDir string
	chunk   time.Duration
	log     *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWhisper creates a whisper recognizer for the given binary and GGML
// model. A multilingual model is required for Spanish.
func NewWhisper(bin, model string, log *logger.Logger, opts ...WhisperOption) *Whisper {
	w := &Whisper{
		bin:     bin,
		model:   model,
		tempDir: ".filosofo-stt",
		chunk:   4 * time.Second,
		log:     log.Named("whisper"),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Available reports whether the whisper binary can be found.
func (w *Whisper) Available() bool {
	_, err := exec.LookPath(w.bin)
	return err == nil
}

// Start implements Recognizer.
func (w *Whisper) Start(ctx context.Context, cfg Config, events chan<- Event) error {
	if _, err := exec.LookPath(w.bin); err != nil {
		return fmt.Errorf("whisper: binary %q not found: %w", w.bin, err)
	}
	if err := os.MkdirAll(w.tempDir, 0o755); err != nil {
		return fmt.Errorf("whisper: create %s: %w", w.tempDir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.cancel = cancel
	w.mu.Unlock()

	if cfg.Language != "" {
		w.log.Debug("language %s is detected by the model, not forced", cfg.Language)
	}
	go w.loop(runCtx, cfg.Continuous, events)
	return nil
}

// Stop implements Recognizer.
func (w *Whisper) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// loop records clips until stopped. Without continuous mode it ends after
// the first clip that produced text.
func (w *Whisper) loop(ctx context.Context, continuous bool, events chan<- Event) {
	defer close(events)
	events <- Event{Type: EventStart}

	for ctx.Err() == nil {
		text, err := w.recordChunk(ctx)
		if err != nil {
			events <- Event{Type: EventError, Err: err}
			return
		}
		if text = cleanTranscription(text); text != "" {
			w.log.Debug("heard %q", text)
			events <- Event{Type: EventResult, Text: text, Final: true}
			if !continuous {
				break
			}
		}
	}
	events <- Event{Type: EventEnd}
}

// recordChunk records one clip and returns its transcription. A cancelled
// context cuts the clip short and keeps what was said so far.
func (w *Whisper) recordChunk(ctx context.Context) (string, error) {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := w.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(w.bin, w.model, w.tempDir, "wav", callback, verbose)
	if err != nil {
		return "", fmt.Errorf("whisper: transcriber init: %w", err)
	}
	if err := t.Start(); err != nil {
		return "", fmt.Errorf("whisper: recording start: %w", err)
	}

	select {
	case <-time.After(w.chunk):
	case <-ctx.Done():
	}

	t.Stop()
	wg.Wait()
	return result, nil
}
