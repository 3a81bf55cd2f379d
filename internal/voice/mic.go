package voice

import (
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	micSampleRate = 16000
	micChunkBytes = 640 // 20ms @ 16kHz mono s16
)

// mic streams 16kHz mono s16 PCM from a PulseAudio source in fixed-size
// chunks.
type mic struct {
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu       sync.Mutex
	pending  []byte
	stopped  bool
	inflight sync.WaitGroup
}

// openMic starts recording from sourceID, or from the default source when
// sourceID is empty.
func openMic(sourceID string) (*mic, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("filosofo"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	var source *pulse.Source
	if sourceID == "" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(sourceID)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", sourceID, err)
	}

	m := &mic{
		client: client,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(m.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(micSampleRate),
		pulse.RecordBufferFragmentSize(micChunkBytes),
		pulse.RecordMediaName("filosofo dictado"),
	)
	if err != nil {
		m.stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	m.stream = stream
	stream.Start()
	return m, nil
}

// Chunks is closed once the mic is stopped and residual audio flushed.
func (m *mic) Chunks() <-chan []byte { return m.chunks }

// stop halts the stream and closes Chunks exactly once.
func (m *mic) stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.stopCh)
	m.mu.Unlock()

	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
	}
	m.client.Close()
	m.inflight.Wait()

	m.mu.Lock()
	rest := m.pending
	m.pending = nil
	m.mu.Unlock()
	if len(rest) > 0 {
		select {
		case m.chunks <- rest:
		default:
		}
	}
	close(m.chunks)
}

func (m *mic) onPCM(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return 0, io.EOF
	}
	m.inflight.Add(1)
	m.pending = append(m.pending, buf...)
	var out [][]byte
	for len(m.pending) >= micChunkBytes {
		chunk := make([]byte, micChunkBytes)
		copy(chunk, m.pending[:micChunkBytes])
		m.pending = m.pending[micChunkBytes:]
		out = append(out, chunk)
	}
	m.mu.Unlock()
	defer m.inflight.Done()

	for _, chunk := range out {
		select {
		case <-m.stopCh:
			return 0, io.EOF
		case m.chunks <- chunk:
		}
	}
	return len(buf), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
