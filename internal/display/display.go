// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] shows the transcript in a scrolling viewport above a multi-line
// input area. State changes coming from other goroutines (transcript
// snapshots, controller flags, dictation) are queued through a relay and
// delivered to the event loop with Program.Send, so callbacks that fire
// inside Update never block on the loop itself.
package display

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/filosofo/internal/chat"
	"github.com/hammamikhairi/filosofo/internal/command"
	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/input"
	"github.com/hammamikhairi/filosofo/internal/logger"
	"github.com/hammamikhairi/filosofo/internal/render"
)

// Title is shown in the header and the terminal window title.
const Title = "Filósofo AI"

// ── Styles ───────────────────────────────────────────────────────

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#e4e4e7")).
			Background(lipgloss.Color("#27272a"))

	// BannerStyle is muted slate for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#94a3b8"))

	modelLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#bae6fd"))

	userTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	// Secondary text for hints and notices.
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fecaca")).
				Background(lipgloss.Color("#7f1d1d")).
				Padding(0, 1)

	recordingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fca5a5"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))
)

const (
	userLabel  = "Tú"
	modelLabel = "Filo"
	typingText = "Filo está escribiendo…"
	indent     = "  "
	inputLines = 3
)

// ── Ports ────────────────────────────────────────────────────────

// Chat is the conversation the UI drives.
type Chat interface {
	Initialize(ctx context.Context) error
	SendUserMessage(ctx context.Context, text string) error
	State() chat.State
}

// Input is the composer the UI edits.
type Input interface {
	State() input.State
	CanRecord() bool
	OnManualChange(text string)
	ToggleRecording(ctx context.Context) error
	Submit() (string, bool)
	Correct(ctx context.Context) (string, error)
}

// ── UI ───────────────────────────────────────────────────────────

// Option configures the UI.
type Option func(*UI)

// WithSpeaker lets /silencio interrupt speech output.
func WithSpeaker(s domain.Speaker) Option {
	return func(u *UI) { u.speaker = s }
}

// WithAltScreen toggles the alternate screen buffer. On by default.
func WithAltScreen(on bool) Option {
	return func(u *UI) { u.altScreen = on }
}

// UI manages the terminal through Bubble Tea.
//
// Register [UI.Transcript], [UI.ChatState] and [UI.InputState] as
// listeners, then call [UI.Run] (blocking). The listeners are safe to call
// from any goroutine, before or during Run.
type UI struct {
	chat      Chat
	input     Input
	parser    *command.Parser
	speaker   domain.Speaker
	altScreen bool
	log       *logger.Logger

	relay   *relay
	program *tea.Program
	done    atomic.Bool
}

// NewUI creates the display. Call Run to start.
func NewUI(c Chat, in Input, parser *command.Parser, log *logger.Logger, opts ...Option) *UI {
	u := &UI{
		chat:      c,
		input:     in,
		parser:    parser,
		altScreen: true,
		log:       log.Named("display"),
		relay:     newRelay(),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Transcript receives store snapshots.
func (u *UI) Transcript(snap []domain.Turn) { u.post(transcriptMsg(snap)) }

// ChatState receives controller state changes.
func (u *UI) ChatState(st chat.State) { u.post(chatStateMsg(st)) }

// InputState receives composer state changes.
func (u *UI) InputState(st input.State) { u.post(inputStateMsg(st)) }

func (u *UI) post(msg tea.Msg) {
	if u.done.Load() {
		return
	}
	u.relay.push(msg)
}

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// Run starts the event loop and blocks until the user quits. The greeting
// is requested as soon as the loop starts.
func (u *UI) Run(ctx context.Context) error {
	m := newModel(ctx, u.chat, u.input, u.parser, u.speaker, u.log)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if u.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	u.program = tea.NewProgram(m, opts...)

	stop := make(chan struct{})
	go u.relay.run(u.program.Send, stop)

	_, err := u.program.Run()
	u.done.Store(true)
	close(stop)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// relay is an unbounded FIFO between listeners and Program.Send.
type relay struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
}

func newRelay() *relay {
	return &relay{wake: make(chan struct{}, 1)}
}

func (r *relay) push(msg tea.Msg) {
	r.mu.Lock()
	r.queue = append(r.queue, msg)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *relay) run(send func(tea.Msg), stop <-chan struct{}) {
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()

		for _, msg := range batch {
			send(msg)
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-r.wake:
		case <-stop:
			return
		}
	}
}

// ── Bubble Tea model ─────────────────────────────────────────────

// Messages.
type (
	transcriptMsg []domain.Turn
	chatStateMsg  chat.State
	inputStateMsg input.State
	noticeMsg     string
	initDoneMsg   struct{ err error }
	sendDoneMsg   struct {
		text string
		err  error
	}
	correctedMsg  struct{ err error }
)

type model struct {
	ctx     context.Context
	chat    Chat
	input   Input
	parser  *command.Parser
	speaker domain.Speaker
	log     *logger.Logger

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	turns     []domain.Turn
	body      string // rendered transcript without the typing line
	chatState chat.State
	inState   input.State
	notice    string
	width     int
	height    int
}

func newModel(ctx context.Context, c Chat, in Input, parser *command.Parser, speaker domain.Speaker, log *logger.Logger) model {
	ta := textarea.New()
	ta.Placeholder = "Escribe tu pregunta o reflexión aquí..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputLines)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Points),
		spinner.WithStyle(spinnerStyle),
	)

	m := model{
		ctx:       ctx,
		chat:      c,
		input:     in,
		parser:    parser,
		speaker:   speaker,
		log:       log,
		viewport:  viewport.New(80, 20),
		textarea:  ta,
		spinner:   sp,
		chatState: c.State(),
		inState:   in.State(),
		width:     80,
		height:    24,
	}
	m.body = renderTranscript(nil, m.width)
	m.layout()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		tea.SetWindowTitle(Title),
		initCmd(m.ctx, m.chat),
	)
}

func initCmd(ctx context.Context, c Chat) tea.Cmd {
	return func() tea.Msg {
		return initDoneMsg{err: c.Initialize(ctx)}
	}
}

func sendCmd(ctx context.Context, c Chat, text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{text: text, err: c.SendUserMessage(ctx, text)}
	}
}

func toggleCmd(ctx context.Context, in Input) tea.Cmd {
	return func() tea.Msg {
		switch err := in.ToggleRecording(ctx); {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrUnsupported):
			return noticeMsg("El dictado por voz no está disponible.")
		case errors.Is(err, domain.ErrBusy):
			return noticeMsg("Espera a que Filo termine de responder.")
		default:
			return noticeMsg("No se pudo iniciar el dictado.")
		}
	}
}

func correctCmd(ctx context.Context, in Input) tea.Cmd {
	return func() tea.Msg {
		_, err := in.Correct(ctx)
		return correctedMsg{err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(msg.Width)
		m.body = renderTranscript(m.turns, m.width)
		m.layout()
		return m, nil

	case transcriptMsg:
		m.turns = msg
		m.body = renderTranscript(m.turns, m.width)
		m.refresh()
		return m, nil

	case chatStateMsg:
		m.chatState = chat.State(msg)
		m.layout()
		return m, nil

	case inputStateMsg:
		m.inState = input.State(msg)
		// Typed edits already live in the textarea; only dictation writes
		// back into it.
		if m.inState.Recording && m.textarea.Value() != m.inState.Value {
			m.textarea.SetValue(m.inState.Value)
			m.textarea.CursorEnd()
		}
		m.layout()
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		m.layout()
		return m, nil

	case initDoneMsg:
		if msg.err != nil {
			m.log.Error("initialize: %v", msg.err)
		}
		return m, nil

	case sendDoneMsg:
		if msg.err == nil {
			return m, nil
		}
		m.log.Warn("send: %v", msg.err)
		// A reply started between Submit and the send. Hand the text back
		// unless something new was entered meanwhile.
		if errors.Is(msg.err, domain.ErrBusy) {
			if !m.inState.Recording && m.textarea.Value() == "" {
				m.textarea.SetValue(msg.text)
				m.textarea.CursorEnd()
				m.inState.Value = msg.text
				m.input.OnManualChange(msg.text)
			}
			m.notice = "Espera a que Filo termine de responder."
			m.layout()
		}
		return m, nil

	case correctedMsg:
		switch {
		case msg.err == nil:
			m.textarea.SetValue(m.input.State().Value)
			m.textarea.CursorEnd()
			m.notice = ""
		case errors.Is(msg.err, domain.ErrUnsupported):
			m.notice = "La corrección no está disponible."
		case errors.Is(msg.err, domain.ErrBusy):
			m.notice = "No se puede corregir ahora."
		default:
			m.log.Warn("correct: %v", msg.err)
			m.notice = "No se pudo corregir el texto."
		}
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.typing() {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+r":
		return m, toggleCmd(m.ctx, m.input)
	case "ctrl+g":
		return m, correctCmd(m.ctx, m.input)
	case "enter":
		return m.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// The textarea is read-only while dictating.
	if m.inState.Recording {
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	if v := m.textarea.Value(); v != m.inState.Value {
		m.inState.Value = v
		m.input.OnManualChange(v)
	}
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	cmd := m.parser.Parse(m.textarea.Value())
	m.notice = ""

	switch cmd.Kind {
	case command.KindMessage:
		if !m.inState.Recording {
			m.input.OnManualChange(cmd.Text)
		}
		text, ok := m.input.Submit()
		if !ok {
			m.layout()
			return m, nil
		}
		m.clearInput()
		m.layout()
		return m, sendCmd(m.ctx, m.chat, text)

	case command.KindVoice:
		m.clearInput()
		m.layout()
		return m, toggleCmd(m.ctx, m.input)

	case command.KindCorrect:
		m.textarea.SetValue(cmd.Text)
		m.inState.Value = cmd.Text
		m.input.OnManualChange(cmd.Text)
		m.layout()
		return m, correctCmd(m.ctx, m.input)

	case command.KindSilence:
		if m.speaker != nil {
			m.speaker.Interrupt()
		}
		m.clearInput()

	case command.KindHelp:
		m.notice = command.Help
		m.clearInput()

	case command.KindQuit:
		return m, tea.Quit

	default:
		m.notice = "Comando desconocido: /" + cmd.Text + ". Escribe /ayuda."
		m.clearInput()
	}
	m.layout()
	return m, nil
}

func (m *model) clearInput() {
	m.textarea.Reset()
	if !m.inState.Recording {
		m.inState.Value = ""
		m.input.OnManualChange("")
	}
}

// typing reports whether the reply indicator should show: a request is in
// flight and no reply text has arrived yet.
func (m model) typing() bool {
	if !m.chatState.Loading {
		return false
	}
	if len(m.turns) == 0 {
		return true
	}
	last := m.turns[len(m.turns)-1]
	return last.Role == domain.RoleUser || last.Content == ""
}

// showError reports whether the error banner is visible.
func (m model) showError() bool {
	return m.chatState.Error != "" && !m.chatState.Loading
}

// layout sizes the viewport around the footer and redraws it.
func (m *model) layout() {
	h := m.height - lipgloss.Height(m.header()) - lipgloss.Height(m.footer())
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.refresh()
}

// refresh redraws the transcript and follows the latest turn.
func (m *model) refresh() {
	content := m.body
	if m.typing() {
		content += "\n" + modelLabelStyle.Render(modelLabel) + "\n" +
			indent + m.spinner.View() + " " + secondaryStyle.Render(typingText) + "\n"
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m model) header() string {
	return headerStyle.Width(m.width).Align(lipgloss.Center).Render(Title)
}

func (m model) footer() string {
	var parts []string
	if m.showError() {
		parts = append(parts, errorBannerStyle.Width(m.width).Render(m.chatState.Error))
	}
	if m.notice != "" {
		parts = append(parts, secondaryStyle.Render(m.notice))
	}
	parts = append(parts, m.status(), m.textarea.View())
	return strings.Join(parts, "\n")
}

func (m model) status() string {
	if m.inState.Recording {
		return recordingStyle.Render("● Grabando") +
			secondaryStyle.Render("  Ctrl+R para detener")
	}
	hints := []string{"Enter enviar", "Alt+Enter nueva línea", "Ctrl+G corregir"}
	if m.input.CanRecord() {
		hints = append(hints, "Ctrl+R dictar")
	}
	hints = append(hints, "/ayuda")
	return secondaryStyle.Render(strings.Join(hints, " · "))
}

func (m model) View() string {
	return m.header() + "\n" + m.viewport.View() + "\n" + m.footer()
}

// renderTranscript draws the banner and every turn for the given width.
// Model turns still waiting for their first chunk are skipped.
func renderTranscript(turns []domain.Turn, width int) string {
	var b strings.Builder
	b.WriteString(RenderBanner(width))

	inner := width - len(indent)
	if inner < 10 {
		inner = 10
	}
	for _, t := range turns {
		var label, body string
		switch t.Role {
		case domain.RoleUser:
			label = userLabelStyle.Render(userLabel)
			body = userTextStyle.Width(inner).Render(render.StripControls(t.Content))
		case domain.RoleModel:
			if t.Content == "" {
				continue
			}
			markup := t.Content
			if !t.Trusted {
				markup = render.Sanitize(markup)
			}
			label = modelLabelStyle.Render(modelLabel)
			body = render.ToTerminal(markup, inner)
		default:
			continue
		}
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(indentLines(body))
		b.WriteString("\n")
	}
	return b.String()
}

func indentLines(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n")
}
