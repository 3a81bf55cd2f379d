package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/hammamikhairi/filosofo/internal/domain"
)

// step is one scripted event of a fake stream: a chunk, or an error when
// err is set.
type step struct {
	text string
	err  error
}

// fakeStream replays steps. When gate is non-nil every Recv waits for a
// value from it first.
type fakeStream struct {
	steps  []step
	pos    int
	gate   chan struct{}
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.pos >= len(s.steps) {
		return "", io.EOF
	}
	st := s.steps[s.pos]
	s.pos++
	if st.err != nil {
		return "", st.err
	}
	return st.text, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeSession hands out one scripted stream per SendStream call.
type fakeSession struct {
	mu       sync.Mutex
	streams  []*fakeStream
	openErr  error
	messages []string
}

func (f *fakeSession) SendStream(_ context.Context, message string) (domain.ChunkStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	if f.openErr != nil {
		return nil, f.openErr
	}
	if len(f.streams) == 0 {
		return nil, errors.New("fake: no stream scripted")
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

func (f *fakeSession) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func chunks(texts ...string) *fakeStream {
	s := &fakeStream{}
	for _, t := range texts {
		s.steps = append(s.steps, step{text: t})
	}
	return s
}

// fakeSpeaker records what would have been read aloud.
type fakeSpeaker struct {
	mu          sync.Mutex
	said        []string
	interrupted int
}

func (f *fakeSpeaker) Say(text string) {
	f.mu.Lock()
	f.said = append(f.said, text)
	f.mu.Unlock()
}

func (f *fakeSpeaker) Interrupt() {
	f.mu.Lock()
	f.interrupted++
	f.mu.Unlock()
}
