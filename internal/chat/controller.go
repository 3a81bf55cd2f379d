// Package chat drives the conversation with the model: it sends user
// turns, grows the reply turn as chunks stream in, finalizes it and keeps
// the loading and error flags the interface shows.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/gpt"
	"github.com/hammamikhairi/filosofo/internal/history"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

var (
	// ErrInit wraps every initialization failure.
	ErrInit = errors.New("chat: initialization failed")
	// ErrStream wraps a reply that failed while streaming.
	ErrStream = errors.New("chat: reply stream failed")
)

// SessionFactory opens the conversation with the model. It is called at
// most once per Controller.
type SessionFactory func() (domain.ModelSession, error)

// State is what the interface needs to know about the controller.
type State struct {
	Loading bool
	Error   string // fixed user-facing message, empty when there is none
	Ready   bool   // a session is open and accepts messages
}

// Option configures the Controller.
type Option func(*Controller)

// WithSpeaker reads every finalized reply aloud.
func WithSpeaker(s domain.Speaker) Option {
	return func(c *Controller) { c.speaker = s }
}

// WithBootstrapMessage overrides the message that asks for the greeting.
func WithBootstrapMessage(msg string) Option {
	return func(c *Controller) { c.bootstrap = msg }
}

// Controller owns the model session and is the only writer of the
// transcript. Initialize and SendUserMessage never overlap: both claim the
// loading flag first and give up when it is already held.
type Controller struct {
	newSession SessionFactory
	store      *history.Store
	speaker    domain.Speaker
	bootstrap  string
	log        *logger.Logger

	mu          sync.Mutex
	session     domain.ModelSession
	initStarted bool
	loading     bool
	errMsg      string
	listeners   []func(State)
}

// New creates a controller writing into store. It starts in the loading
// state until Initialize finishes.
func New(newSession SessionFactory, store *history.Store, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		newSession: newSession,
		store:      store,
		bootstrap:  gpt.BootstrapMessage,
		log:        log.Named("chat"),
		loading:    true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnStateChange registers fn to be called after every state transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// State returns the current flags.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Loading reports whether a request is in flight.
func (c *Controller) Loading() bool {
	return c.State().Loading
}

// Initialize opens the session and streams the model's greeting into the
// transcript. On failure the transcript is cleared, the session is
// discarded for good and the returned error wraps ErrInit.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initStarted {
		c.mu.Unlock()
		return fmt.Errorf("chat: initialize called twice: %w", domain.ErrBusy)
	}
	c.initStarted = true
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()
	c.notify()
	defer c.finish()

	started := time.Now()
	session, err := c.newSession()
	if err != nil {
		return c.failInit(err)
	}

	stream, err := session.SendStream(ctx, c.bootstrap)
	if err != nil {
		return c.failInit(err)
	}
	defer stream.Close()

	open := c.store.Append(history.NewTurn(domain.RoleModel, ""))
	reply, chunks, err := c.consume(stream, open.ID)
	if err != nil {
		return c.failInit(err)
	}
	final := CleanResponse(reply)
	if err := c.store.Replace(open.ID, final, false); err != nil {
		return c.failInit(err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.log.Info("session ready: greeting of %d chunks in %s", chunks, time.Since(started).Round(time.Millisecond))
	c.speak(final)
	return nil
}

// SendUserMessage appends text as a USER turn and streams the reply into a
// new MODEL turn. It returns domain.ErrNoSession or domain.ErrBusy without
// touching any state when there is no session or a request is in flight.
// A stream failure is turned into the failure notice in the transcript;
// the returned error wraps ErrStream and the session stays usable.
func (c *Controller) SendUserMessage(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		c.log.Debug("send rejected: no session")
		return domain.ErrNoSession
	}
	if c.loading {
		c.mu.Unlock()
		c.log.Debug("send rejected: already loading")
		return domain.ErrBusy
	}
	c.loading = true
	c.errMsg = ""
	session := c.session
	c.mu.Unlock()
	c.notify()
	defer c.finish()

	if c.speaker != nil {
		c.speaker.Interrupt()
	}

	started := time.Now()
	c.store.Append(history.NewTurn(domain.RoleUser, text))
	open := c.store.Append(history.NewTurn(domain.RoleModel, ""))

	stream, err := session.SendStream(ctx, text)
	if err != nil {
		return c.failStream(open.ID, err)
	}
	defer stream.Close()

	reply, chunks, err := c.consume(stream, open.ID)
	if err != nil {
		return c.failStream(open.ID, err)
	}

	final := CleanResponse(reply)
	if err := c.store.Replace(open.ID, final, false); err != nil {
		c.log.Error("finalize reply %s: %v", open.ID, err)
		return nil
	}

	c.log.Info("reply finalized: %d chunks, %d chars in %s", chunks, len(final), time.Since(started).Round(time.Millisecond))
	c.speak(final)
	return nil
}

// consume reads the stream to the end, rewriting the open turn with the
// text accumulated so far after every chunk.
func (c *Controller) consume(stream domain.ChunkStream, openID string) (string, int, error) {
	var acc strings.Builder
	chunks := 0
	for {
		text, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return acc.String(), chunks, nil
		}
		if err != nil {
			return acc.String(), chunks, err
		}
		chunks++
		acc.WriteString(text)
		if err := c.store.Replace(openID, acc.String(), false); err != nil {
			return acc.String(), chunks, fmt.Errorf("update open turn: %w", err)
		}
	}
}

func (c *Controller) failInit(cause error) error {
	c.log.Error("initialization failed: %v", cause)
	c.store.Reset()

	c.mu.Lock()
	c.session = nil
	c.errMsg = InitFailedMessage
	c.mu.Unlock()

	return fmt.Errorf("%w: %w", ErrInit, cause)
}

func (c *Controller) failStream(openID string, cause error) error {
	c.log.Error("message sending failed: %v", cause)
	if err := c.store.Replace(openID, StreamFailedMarkup, true); err != nil {
		c.log.Error("write failure notice: %v", err)
	}

	c.mu.Lock()
	c.errMsg = StreamFailedMessage
	c.mu.Unlock()

	return fmt.Errorf("%w: %w", ErrStream, cause)
}

// finish clears the loading flag. Deferred by both entry points.
func (c *Controller) finish() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) speak(html string) {
	if c.speaker != nil && html != "" {
		c.speaker.Say(html)
	}
}

func (c *Controller) stateLocked() State {
	return State{
		Loading: c.loading,
		Error:   c.errMsg,
		Ready:   c.session != nil,
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	st := c.stateLocked()
	listeners := append(([]func(State))(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
