// Package voice turns speech into a live text transcript. A Capture wraps
// one Recognizer backend behind a start/stop contract and delivers the
// cumulative transcript of the current recording after every result.
package voice

import "context"

// DefaultLanguage is the recognition language of the tutor.
const DefaultLanguage = "es-ES"

// Config is passed to a Recognizer when recording starts.
type Config struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// DefaultConfig is continuous recognition with interim results in Spanish.
func DefaultConfig() Config {
	return Config{
		Continuous:     true,
		InterimResults: true,
		Language:       DefaultLanguage,
	}
}

// EventType classifies recognizer events.
type EventType int

const (
	EventStart EventType = iota
	EventResult
	EventError
	EventEnd
)

// String returns a human-readable event type.
func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one notification from a Recognizer. For EventResult, Text is
// the transcript of the current utterance and Final tells whether later
// results may still revise it.
type Event struct {
	Type  EventType
	Text  string
	Final bool
	Err   error
}

// Recognizer is a speech-to-text backend.
//
// Start begins recognition and returns once it is running. The backend
// sends events on the given channel and closes it after its last event.
// Stop ends recognition; it must be safe to call more than once and after
// the backend ended on its own.
type Recognizer interface {
	Start(ctx context.Context, cfg Config, events chan<- Event) error
	Stop()
}
