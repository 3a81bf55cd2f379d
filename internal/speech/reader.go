package speech

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
	"github.com/hammamikhairi/filosofo/internal/render"
)

var _ domain.Speaker = (*Reader)(nil)

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Voice() string
}

// AudioPlayer plays one WAV clip at a time.
type AudioPlayer interface {
	Play(wav []byte) error
	Stop()
}

// ReaderOption configures the Reader.
type ReaderOption func(*Reader)

// WithChunkSize sets the approximate max character count per TTS request.
// Longer text is split at sentence boundaries and synthesized in parallel.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) { r.chunkSize = n }
}

// WithCache replaces the default in-memory audio cache.
func WithCache(c *AudioCache) ReaderOption {
	return func(r *Reader) { r.cache = c }
}

// Reader reads replies aloud, one at a time, in the order they were
// queued. Interrupt drops everything pending and cuts the current clip.
type Reader struct {
	tts       Synthesizer
	player    AudioPlayer
	cache     *AudioCache
	chunkSize int
	log       *logger.Logger

	mu       sync.Mutex
	queue    []string
	epoch    int
	speaking bool
	notify   chan struct{}
}

// NewReader creates a Reader. Call Start before anything is spoken.
func NewReader(tts Synthesizer, player AudioPlayer, log *logger.Logger, opts ...ReaderOption) *Reader {
	r := &Reader{
		tts:       tts,
		player:    player,
		chunkSize: 200,
		log:       log.Named("reader"),
		notify:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(r)
	}
	if r.cache == nil {
		r.cache = NewAudioCache(tts.Voice(), "", false, 0, log)
	}
	return r
}

// Say queues an HTML reply to be read. Markup is reduced to plain text
// first. Non-blocking.
func (r *Reader) Say(markup string) {
	text := render.PlainText(markup)
	if text == "" {
		return
	}
	chunks := splitChunks(text, r.chunkSize)

	r.mu.Lock()
	r.queue = append(r.queue, chunks...)
	r.mu.Unlock()
	r.log.Debug("queued %d chunk(s): %s", len(chunks), truncate(text, 60))

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Interrupt stops playback and forgets everything queued.
func (r *Reader) Interrupt() {
	r.mu.Lock()
	r.queue = nil
	r.epoch++
	r.mu.Unlock()
	r.player.Stop()
}

// IsSpeaking reports whether audio is being synthesized or played.
func (r *Reader) IsSpeaking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaking
}

// Start runs the playback loop until ctx is done. Non-blocking.
func (r *Reader) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				r.player.Stop()
				return
			case <-r.notify:
				r.drain(ctx)
			}
		}
	}()
	r.log.Info("started (voice=%s)", r.tts.Voice())
}

func (r *Reader) drain(ctx context.Context) {
	for ctx.Err() == nil {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		epoch := r.epoch
		r.speaking = len(batch) > 0
		r.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		r.speak(ctx, batch, epoch)
		r.mu.Lock()
		r.speaking = false
		r.mu.Unlock()
	}
}

// speak synthesizes every chunk in parallel and plays them in order,
// stopping early when interrupted.
func (r *Reader) speak(ctx context.Context, chunks []string, epoch int) {
	clips := make([][]byte, len(chunks))
	var wg sync.WaitGroup
	for i, text := range chunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, err := r.synthesize(ctx, text)
			if err != nil {
				r.log.Error("chunk %d synthesis failed: %v", i, err)
				return
			}
			clips[i] = audio
		}()
	}
	wg.Wait()

	for i, clip := range clips {
		if clip == nil {
			continue
		}
		if ctx.Err() != nil || r.interrupted(epoch) {
			r.log.Debug("playback aborted at chunk %d", i)
			return
		}
		if err := r.player.Play(clip); err != nil {
			r.log.Error("chunk %d playback failed: %v", i, err)
		}
	}
}

func (r *Reader) interrupted(epoch int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch != epoch
}

func (r *Reader) synthesize(ctx context.Context, text string) ([]byte, error) {
	if audio, ok := r.cache.Get(text); ok {
		return audio, nil
	}
	audio, err := r.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	r.cache.Put(text, audio)
	return audio, nil
}

// splitChunks groups sentences into chunks of roughly size characters. A
// sentence longer than size stays whole.
func splitChunks(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, s := range splitSentences(text) {
		if cur.Len() > 0 && cur.Len()+len(s) > size {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		cur.WriteString(s)
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// splitSentences cuts after . ! ? … and line breaks, keeping the
// punctuation and trailing whitespace with the sentence.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if !isSentenceEnd(runes[i]) {
			continue
		}
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
			cur.WriteRune(runes[i])
		}
		out = append(out, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '\n':
		return true
	}
	return false
}
