package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/history"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

func setup(t *testing.T, session *fakeSession, opts ...Option) (*Controller, *history.Store) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	store := history.NewStore(log)
	factory := func() (domain.ModelSession, error) { return session, nil }
	return New(factory, store, log, opts...), store
}

func ready(t *testing.T, session *fakeSession, opts ...Option) (*Controller, *history.Store) {
	t.Helper()
	session.streams = append([]*fakeStream{chunks("<p>Hola</p>")}, session.streams...)
	c, store := setup(t, session, opts...)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, store
}

func TestInitializeGreeting(t *testing.T) {
	session := &fakeSession{streams: []*fakeStream{chunks("Hola, soy ", "Filo.")}}
	c, store := setup(t, session)

	if !c.Loading() {
		t.Fatal("controller must start loading until initialized")
	}
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	snap := store.Snapshot()
	if len(snap) != 1 || snap[0].Role != domain.RoleModel || snap[0].Content != "Hola, soy Filo." {
		t.Fatalf("unexpected transcript: %+v", snap)
	}
	st := c.State()
	if st.Loading || st.Error != "" || !st.Ready {
		t.Fatalf("unexpected state: %+v", st)
	}
	if sent := session.sent(); len(sent) != 1 || sent[0] != "Hola" {
		t.Fatalf("expected bootstrap message, got %q", sent)
	}
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name    string
		factory SessionFactory
	}{
		{
			name: "missing credential",
			factory: func() (domain.ModelSession, error) {
				return nil, domain.ErrMissingCredential
			},
		},
		{
			name: "stream cannot open",
			factory: func() (domain.ModelSession, error) {
				return &fakeSession{openErr: errors.New("dial tcp: refused")}, nil
			},
		},
		{
			name: "stream breaks mid greeting",
			factory: func() (domain.ModelSession, error) {
				return &fakeSession{streams: []*fakeStream{{steps: []step{
					{text: "Hola, "},
					{err: errors.New("connection reset")},
				}}}}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.New(logger.LevelOff, nil)
			store := history.NewStore(log)
			c := New(tt.factory, store, log)

			err := c.Initialize(context.Background())
			if !errors.Is(err, ErrInit) {
				t.Fatalf("expected ErrInit, got %v", err)
			}
			if store.Len() != 0 {
				t.Fatalf("transcript must be empty after init failure, got %+v", store.Snapshot())
			}
			st := c.State()
			if st.Loading || st.Ready || st.Error != InitFailedMessage {
				t.Fatalf("unexpected state: %+v", st)
			}
			if err := c.SendUserMessage(context.Background(), "hola"); !errors.Is(err, domain.ErrNoSession) {
				t.Fatalf("expected ErrNoSession after failed init, got %v", err)
			}
		})
	}
}

func TestInitializeOnlyOnce(t *testing.T) {
	session := &fakeSession{streams: []*fakeStream{chunks("<p>Hola</p>")}}
	c, _ := setup(t, session)

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := c.Initialize(context.Background()); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected second initialize to be rejected, got %v", err)
	}
	if len(session.sent()) != 1 {
		t.Fatalf("second initialize must not reach the model")
	}
}

func TestSendUserMessageStreamsPrefixes(t *testing.T) {
	parts := []string{"<p>La ", "virtud ", "es un ", "hábito.</p>"}
	session := &fakeSession{streams: []*fakeStream{chunks(parts...)}}
	c, store := ready(t, session)

	var trailing []string
	store.Subscribe(func(snap []domain.Turn) {
		last := snap[len(snap)-1]
		if last.Role == domain.RoleModel {
			trailing = append(trailing, last.Content)
		}
	})

	if err := c.SendUserMessage(context.Background(), "¿Qué es la virtud?"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Placeholder, then one update per chunk, then finalization.
	want := []string{""}
	var acc strings.Builder
	for _, p := range parts {
		acc.WriteString(p)
		want = append(want, acc.String())
	}
	want = append(want, acc.String())

	if len(trailing) != len(want) {
		t.Fatalf("expected %d trailing updates, got %d: %q", len(want), len(trailing), trailing)
	}
	for i := range want {
		if trailing[i] != want[i] {
			t.Fatalf("update %d: got %q, want %q", i, trailing[i], want[i])
		}
	}

	snap := store.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected greeting, user and reply, got %d turns", len(snap))
	}
	if snap[1].Role != domain.RoleUser || snap[1].Content != "¿Qué es la virtud?" {
		t.Fatalf("unexpected user turn: %+v", snap[1])
	}
	if c.Loading() {
		t.Fatal("loading must be cleared after completion")
	}
}

func TestSendUserMessageCleansFences(t *testing.T) {
	session := &fakeSession{streams: []*fakeStream{chunks("``", "`html\n<p>Hola</p>\n`", "``")}}
	c, store := ready(t, session)

	if err := c.SendUserMessage(context.Background(), "hola"); err != nil {
		t.Fatalf("send: %v", err)
	}
	last, _ := store.Last()
	if last.Content != "<p>Hola</p>" {
		t.Fatalf("expected fences stripped, got %q", last.Content)
	}
}

func TestSendUserMessageStreamFailure(t *testing.T) {
	broken := &fakeStream{steps: []step{{text: "Parte"}, {err: errors.New("stream reset")}}}
	session := &fakeSession{streams: []*fakeStream{broken, chunks("<p>Otra vez</p>")}}
	c, store := ready(t, session)

	err := c.SendUserMessage(context.Background(), "primera")
	if !errors.Is(err, ErrStream) {
		t.Fatalf("expected ErrStream, got %v", err)
	}
	last, _ := store.Last()
	if last.Content != StreamFailedMarkup || !last.Trusted {
		t.Fatalf("expected trusted failure markup, got %+v", last)
	}
	st := c.State()
	if st.Loading || st.Error != StreamFailedMessage || !st.Ready {
		t.Fatalf("unexpected state after failure: %+v", st)
	}
	if !broken.closed {
		t.Fatal("failed stream must be closed")
	}

	// The session survives the failure.
	if err := c.SendUserMessage(context.Background(), "segunda"); err != nil {
		t.Fatalf("send after failure: %v", err)
	}
	last, _ = store.Last()
	if last.Content != "<p>Otra vez</p>" || last.Trusted {
		t.Fatalf("unexpected reply after recovery: %+v", last)
	}
	if c.State().Error != "" {
		t.Fatal("error flag must be cleared by the next send")
	}
	if store.Len() != 5 {
		t.Fatalf("expected 5 turns, got %d", store.Len())
	}
}

func TestSendUserMessageOpenFailure(t *testing.T) {
	session := &fakeSession{streams: []*fakeStream{chunks("<p>Hola</p>")}}
	c, store := setup(t, session)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	session.openErr = errors.New("quota exceeded")

	if err := c.SendUserMessage(context.Background(), "hola"); !errors.Is(err, ErrStream) {
		t.Fatalf("expected ErrStream, got %v", err)
	}
	last, _ := store.Last()
	if last.Content != StreamFailedMarkup {
		t.Fatalf("expected failure markup, got %q", last.Content)
	}
}

func TestSendWhileLoadingIsNoop(t *testing.T) {
	gate := make(chan struct{})
	slow := &fakeStream{steps: []step{{text: "<p>Lento</p>"}}, gate: gate}
	session := &fakeSession{streams: []*fakeStream{slow}}
	c, store := ready(t, session)

	loadingSeen := make(chan struct{}, 1)
	c.OnStateChange(func(st State) {
		if st.Loading {
			select {
			case loadingSeen <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.SendUserMessage(context.Background(), "primera") }()

	select {
	case <-loadingSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("first send never started loading")
	}

	before := store.Len()
	if err := c.SendUserMessage(context.Background(), "segunda"); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy while loading, got %v", err)
	}
	if store.Len() != before {
		t.Fatalf("rejected send changed the transcript: %d -> %d", before, store.Len())
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if got := session.sent(); len(got) != 2 || got[1] != "primera" {
		t.Fatalf("only the first message may reach the model, got %q", got)
	}
}

func TestSpeakerReadsFinalReplies(t *testing.T) {
	speaker := &fakeSpeaker{}
	session := &fakeSession{streams: []*fakeStream{chunks("```html\n<p>Respuesta</p>\n```")}}
	c, _ := ready(t, session, WithSpeaker(speaker))

	if err := c.SendUserMessage(context.Background(), "hola"); err != nil {
		t.Fatalf("send: %v", err)
	}

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	if len(speaker.said) != 2 || speaker.said[1] != "<p>Respuesta</p>" {
		t.Fatalf("expected greeting and cleaned reply to be spoken, got %q", speaker.said)
	}
	if speaker.interrupted != 1 {
		t.Fatalf("expected one interrupt on send, got %d", speaker.interrupted)
	}
}
