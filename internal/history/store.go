// Package history holds the conversation transcript: an ordered list of
// turns that only ever grows, except that the last turn's content may be
// rewritten while its reply is streaming.
package history

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

// Listener receives a fresh copy of the transcript after every mutation.
type Listener func(snapshot []domain.Turn)

// Store is an in-memory transcript. Safe for concurrent access.
type Store struct {
	// writeMu orders mutations together with their notifications so
	// listeners observe snapshots in mutation order.
	writeMu   sync.Mutex
	mu        sync.RWMutex
	turns     []domain.Turn
	listeners []Listener
	log       *logger.Logger
}

// NewStore creates an empty transcript.
func NewStore(log *logger.Logger) *Store {
	return &Store{log: log}
}

// NewTurn builds a turn with a fresh ID.
func NewTurn(role domain.Role, content string) domain.Turn {
	return domain.Turn{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// Subscribe registers fn to be called with a new snapshot after each
// mutation. Listeners run synchronously, in registration order. They may
// read the store but must not mutate it.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Append adds a turn at the end. A turn without an ID gets one.
func (s *Store) Append(turn domain.Turn) domain.Turn {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	n := len(s.turns)
	s.mu.Unlock()

	s.log.Debug("append %s turn %s (len=%d)", turn.Role, turn.ID, n)
	s.publish()
	return turn
}

// ReplaceLast overwrites the content of the last turn. Returns
// domain.ErrEmpty when there is no turn to replace.
func (s *Store) ReplaceLast(content string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if len(s.turns) == 0 {
		s.mu.Unlock()
		return domain.ErrEmpty
	}
	s.turns[len(s.turns)-1].Content = content
	s.mu.Unlock()

	s.publish()
	return nil
}

// Replace overwrites the content of the turn with the given ID. Only the
// last turn may still change, so any other ID is reported as not found.
func (s *Store) Replace(id, content string, trusted bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	last := len(s.turns) - 1
	if last < 0 || s.turns[last].ID != id {
		s.mu.Unlock()
		s.log.Debug("replace: turn %s is not the open turn", id)
		return domain.ErrNotFound
	}
	s.turns[last].Content = content
	s.turns[last].Trusted = trusted
	s.mu.Unlock()

	s.publish()
	return nil
}

// Reset drops every turn.
func (s *Store) Reset() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()

	s.log.Debug("transcript cleared")
	s.publish()
}

// Snapshot returns a copy of the transcript in insertion order.
func (s *Store) Snapshot() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Last returns the last turn, if any.
func (s *Store) Last() (domain.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return domain.Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

func (s *Store) snapshotLocked() []domain.Turn {
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Store) publish() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
