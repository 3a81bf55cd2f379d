package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

// DefaultDeepgramEndpoint is the Deepgram live transcription endpoint.
const DefaultDeepgramEndpoint = "wss://api.deepgram.com/v1/listen"

// pcmSource yields raw linear16 audio until stopped.
type pcmSource interface {
	Chunks() <-chan []byte
	stop()
}

// DeepgramOption configures the Deepgram recognizer.
type DeepgramOption func(*Deepgram)

// WithDeepgramEndpoint overrides the websocket endpoint.
func WithDeepgramEndpoint(endpoint string) DeepgramOption {
	return func(d *Deepgram) { d.endpoint = endpoint }
}

// WithDeepgramModel sets the Deepgram model name.
func WithDeepgramModel(model string) DeepgramOption {
	return func(d *Deepgram) { d.model = model }
}

// WithAudioSource selects the PulseAudio source to record from.
func WithAudioSource(sourceID string) DeepgramOption {
	return func(d *Deepgram) {
		d.openAudio = func() (pcmSource, error) { return openMic(sourceID) }
	}
}

// Deepgram streams microphone audio to Deepgram over a websocket and
// reports interim and final transcripts.
type Deepgram struct {
	apiKey    string
	endpoint  string
	model     string
	openAudio func() (pcmSource, error)
	log       *logger.Logger

	mu  sync.Mutex
	run *deepgramRun
}

// NewDeepgram creates a Deepgram recognizer. An empty apiKey fails at
// Start with ErrMissingCredential.
func NewDeepgram(apiKey string, log *logger.Logger, opts ...DeepgramOption) *Deepgram {
	d := &Deepgram{
		apiKey:    apiKey,
		endpoint:  DefaultDeepgramEndpoint,
		model:     "nova-2",
		openAudio: func() (pcmSource, error) { return openMic("") },
		log:       log.Named("deepgram"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

type deepgramRun struct {
	conn     *websocket.Conn
	audio    pcmSource
	stopOnce sync.Once
	stopping chan struct{}
}

func (r *deepgramRun) stop() {
	r.stopOnce.Do(func() {
		close(r.stopping)
		r.audio.stop()
	})
}

// Start implements Recognizer.
func (d *Deepgram) Start(ctx context.Context, cfg Config, events chan<- Event) error {
	if d.apiKey == "" {
		return fmt.Errorf("deepgram: %w", domain.ErrMissingCredential)
	}

	audio, err := d.openAudio()
	if err != nil {
		return fmt.Errorf("deepgram: open audio: %w", err)
	}

	header := http.Header{"Authorization": {"Token " + d.apiKey}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.listenURL(cfg), header)
	if err != nil {
		audio.stop()
		return fmt.Errorf("deepgram: dial: %w", err)
	}

	run := &deepgramRun{conn: conn, audio: audio, stopping: make(chan struct{})}
	d.mu.Lock()
	d.run = run
	d.mu.Unlock()

	d.log.Info("connected (model=%s, lang=%s)", d.model, deepgramLanguage(cfg.Language))

	go func() {
		select {
		case <-ctx.Done():
			run.stop()
		case <-run.stopping:
		}
	}()
	go d.send(run)
	go d.receive(run, cfg.Continuous, events)
	return nil
}

// Stop implements Recognizer.
func (d *Deepgram) Stop() {
	d.mu.Lock()
	run := d.run
	d.run = nil
	d.mu.Unlock()
	if run != nil {
		run.stop()
	}
}

func (d *Deepgram) listenURL(cfg Config) string {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("language", deepgramLanguage(cfg.Language))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprint(micSampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", fmt.Sprint(cfg.InterimResults))
	return d.endpoint + "?" + q.Encode()
}

// send forwards audio until the source closes, then asks Deepgram to
// flush its final results.
func (d *Deepgram) send(run *deepgramRun) {
	for chunk := range run.audio.Chunks() {
		if err := run.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			d.log.Warn("send audio: %v", err)
			run.stop()
			break
		}
	}
	// Drain anything left so the source can finish closing.
	for range run.audio.Chunks() {
	}

	if err := run.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		d.log.Debug("close stream: %v", err)
	}
	_ = run.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
}

// receive forwards results until the connection closes. Without
// continuous mode the first final result stops the recording.
func (d *Deepgram) receive(run *deepgramRun, continuous bool, events chan<- Event) {
	defer close(events)
	defer run.conn.Close()

	events <- Event{Type: EventStart}
	for {
		_, data, err := run.conn.ReadMessage()
		if err != nil {
			run.stop()
			if isStopping(run) || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				events <- Event{Type: EventEnd}
				return
			}
			events <- Event{Type: EventError, Err: fmt.Errorf("deepgram: read: %w", err)}
			return
		}

		ev, ok, err := parseDeepgramMessage(data)
		if err != nil {
			d.log.Warn("parse message: %v", err)
			continue
		}
		if ok {
			events <- ev
			if !continuous && ev.Final && ev.Text != "" {
				run.stop()
			}
		}
	}
}

func isStopping(run *deepgramRun) bool {
	select {
	case <-run.stopping:
		return true
	default:
		return false
	}
}

type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseDeepgramMessage turns a Results message into a result event.
// Other message types (Metadata, SpeechStarted, UtteranceEnd) are skipped.
func parseDeepgramMessage(data []byte) (Event, bool, error) {
	var msg deepgramMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, false, err
	}
	if msg.Type != "Results" {
		return Event{}, false, nil
	}
	if len(msg.Channel.Alternatives) == 0 {
		return Event{}, false, errors.New("results without alternatives")
	}
	return Event{
		Type:  EventResult,
		Text:  msg.Channel.Alternatives[0].Transcript,
		Final: msg.IsFinal,
	}, true, nil
}

// deepgramLanguage reduces a BCP-47 tag like "es-ES" to the primary
// language Deepgram expects.
func deepgramLanguage(tag string) string {
	if tag == "" {
		return "es"
	}
	primary, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(primary)
}
