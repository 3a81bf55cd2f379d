package render

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#07575B"))

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	quoteBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	quoteBar = quoteBarStyle.Render("│ ")

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8")).
			Underline(true)
)

// ToTerminal lays out an HTML fragment as wrapped, styled terminal text.
// The input is assumed to be sanitized already, except for trusted
// markup, whose "color: red" paragraphs are drawn as alerts.
func ToTerminal(markup string, width int) string {
	if width <= 0 {
		width = 80
	}
	r := &termRenderer{width: width}
	walk(markup, r)
	r.flush()
	return strings.Join(r.blocks, "")
}

// PlainText extracts the readable text of an HTML fragment, one block per
// line, without any styling. Used for read-aloud.
func PlainText(markup string) string {
	p := &plainRenderer{}
	walk(markup, p)
	p.endBlock()
	return strings.TrimSpace(strings.Join(p.lines, "\n"))
}

// visitor receives the token stream of a fragment.
type visitor interface {
	start(a atom.Atom, attrs map[string]string)
	end(a atom.Atom)
	text(s string)
}

// StripControls removes terminal escape sequences and every control
// character except newline and tab. Text and attribute values are
// unescaped by the tokenizer first, so entity-encoded escapes go too.
func StripControls(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}

func walk(markup string, v visitor) {
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.TextToken:
			v.text(StripControls(string(z.Text())))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			attrs := map[string]string{}
			for hasAttr {
				var k, val []byte
				k, val, hasAttr = z.TagAttr()
				attrs[string(k)] = StripControls(string(val))
			}
			v.start(atom.Lookup(name), attrs)
		case html.EndTagToken:
			name, _ := z.TagName()
			v.end(atom.Lookup(name))
		}
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Ul, atom.Ol, atom.Blockquote, atom.Pre, atom.Hr:
		return true
	}
	return false
}

func isHeading(a atom.Atom) bool {
	switch a {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// collapse applies HTML whitespace rules to a text run.
func collapse(s string, atLineStart bool) string {
	if s == "" {
		return ""
	}
	lead := strings.IndexFunc(s[:1], isSpace) == 0
	trail := strings.LastIndexFunc(s, isSpace) == len(s)-1
	out := strings.Join(strings.Fields(s), " ")
	if out == "" {
		if atLineStart {
			return ""
		}
		return " "
	}
	if lead && !atLineStart {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

// ── Terminal renderer ────────────────────────────────────────────

type list struct {
	ordered bool
	n       int
}

type termRenderer struct {
	width  int
	blocks []string

	buf     strings.Builder
	raw     int // visible characters in buf
	bullet  string
	heading bool
	alert   bool
	pre     int
	quote   int
	lists   []list
	item    bool // last flushed block was a list item

	bold, italic, underline, code int
	href                          string
}

func (r *termRenderer) start(a atom.Atom, attrs map[string]string) {
	if isBlock(a) {
		r.flush()
	}
	switch a {
	case atom.Strong, atom.B:
		r.bold++
	case atom.Em, atom.I:
		r.italic++
	case atom.U, atom.Mark:
		r.underline++
	case atom.Code:
		r.code++
	case atom.A:
		r.href = attrs["href"]
	case atom.Br:
		r.buf.WriteString("\n")
		r.raw = 0
	case atom.Hr:
		r.emit(quoteBarStyle.Render(strings.Repeat("─", min(r.width, 40))), false)
	case atom.P, atom.Div:
		r.alert = strings.Contains(strings.ReplaceAll(attrs["style"], " ", ""), "color:red")
	case atom.Ul:
		r.lists = append(r.lists, list{})
	case atom.Ol:
		r.lists = append(r.lists, list{ordered: true})
	case atom.Li:
		if n := len(r.lists); n > 0 {
			l := &r.lists[n-1]
			l.n++
			if l.ordered {
				r.bullet = strconv.Itoa(l.n) + ". "
			} else {
				r.bullet = "• "
			}
		} else {
			r.bullet = "• "
		}
	case atom.Blockquote:
		r.quote++
	case atom.Pre:
		r.pre++
	default:
		if isHeading(a) {
			r.heading = true
		}
	}
}

func (r *termRenderer) end(a atom.Atom) {
	if isBlock(a) {
		r.flush()
	}
	switch a {
	case atom.Strong, atom.B:
		r.bold = max(r.bold-1, 0)
	case atom.Em, atom.I:
		r.italic = max(r.italic-1, 0)
	case atom.U, atom.Mark:
		r.underline = max(r.underline-1, 0)
	case atom.Code:
		r.code = max(r.code-1, 0)
	case atom.A:
		if r.href != "" {
			r.write(" (" + r.href + ")")
			r.href = ""
		}
	case atom.P, atom.Div:
		r.alert = false
	case atom.Ul, atom.Ol:
		if n := len(r.lists); n > 0 {
			r.lists = r.lists[:n-1]
		}
		r.item = false
	case atom.Blockquote:
		r.quote = max(r.quote-1, 0)
	case atom.Pre:
		r.pre = max(r.pre-1, 0)
	default:
		if isHeading(a) {
			r.heading = false
		}
	}
}

func (r *termRenderer) text(s string) {
	if r.pre == 0 {
		s = collapse(s, r.raw == 0)
	}
	r.write(s)
}

func (r *termRenderer) write(s string) {
	if s == "" {
		return
	}
	style := r.blockStyle()
	if r.href != "" {
		style = linkStyle
	}
	if r.bold > 0 {
		style = style.Bold(true)
	}
	if r.italic > 0 {
		style = style.Italic(true)
	}
	if r.underline > 0 || r.code > 0 {
		style = style.Underline(true)
	}
	r.buf.WriteString(style.Render(s))
	r.raw += len(s)
}

// blockStyle is the base style for text in the current block.
func (r *termRenderer) blockStyle() lipgloss.Style {
	switch {
	case r.alert:
		return alertStyle
	case r.heading:
		return headingStyle
	default:
		return bodyStyle
	}
}

func (r *termRenderer) flush() {
	text := strings.TrimRight(r.buf.String(), " \n")
	r.buf.Reset()
	r.raw = 0
	if strings.TrimSpace(text) == "" {
		return
	}
	isItem := r.bullet != ""
	r.emit(text, isItem)
}

// emit wraps one block to the available width and indents it for the
// enclosing lists and quotes.
func (r *termRenderer) emit(text string, isItem bool) {
	indent := strings.Repeat(quoteBar, r.quote)
	depth := max(len(r.lists)-1, 0)
	pad := strings.Repeat("  ", depth)
	first, rest := indent+pad, indent+pad
	if isItem {
		first += r.bullet
		rest += strings.Repeat(" ", lipgloss.Width(r.bullet))
	}

	wrapped := text
	if r.pre == 0 {
		avail := max(r.width-lipgloss.Width(first), 10)
		wrapped = lipgloss.NewStyle().Width(avail).Render(text)
	}

	lines := strings.Split(wrapped, "\n")
	for i, l := range lines {
		if i == 0 {
			lines[i] = first + strings.TrimRight(l, " ")
		} else {
			lines[i] = rest + strings.TrimRight(l, " ")
		}
	}
	block := strings.Join(lines, "\n")

	switch {
	case len(r.blocks) == 0:
	case isItem && r.item:
		block = "\n" + block
	default:
		block = "\n\n" + block
	}
	r.blocks = append(r.blocks, block)
	r.item = isItem
	r.bullet = ""
}

// ── Plain renderer ───────────────────────────────────────────────

type plainRenderer struct {
	lines []string
	buf   strings.Builder
}

func (p *plainRenderer) start(a atom.Atom, _ map[string]string) {
	if isBlock(a) || a == atom.Br {
		p.endBlock()
	}
}

func (p *plainRenderer) end(a atom.Atom) {
	if isBlock(a) {
		p.endBlock()
	}
}

func (p *plainRenderer) text(s string) {
	p.buf.WriteString(collapse(s, p.buf.Len() == 0))
}

func (p *plainRenderer) endBlock() {
	line := strings.TrimSpace(p.buf.String())
	p.buf.Reset()
	if line != "" {
		p.lines = append(p.lines, line)
	}
}
