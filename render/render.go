package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Fragment is HTML that is safe to insert into a page: every character of
// guest output is escaped and the only markup is <span style> and <br/>.
type Fragment string

func (f Fragment) String() string {
	return string(f)
}

// Palette holds the CSS colours for the 16 standard and bright ANSI colours.
type Palette [16]string

// DefaultPalette matches the xterm-like colours of the browser playground.
var DefaultPalette = Palette{
	"#000", "#A00", "#0A0", "#A50", "#00A", "#A0A", "#0AA", "#AAA",
	"#555", "#F55", "#5F5", "#FF5", "#55F", "#F5F", "#5FF", "#FFF",
}

type Option func(*Renderer)

// WithNewline controls whether line breaks become <br/>. Default true.
func WithNewline(enabled bool) Option {
	return func(r *Renderer) {
		r.newline = enabled
	}
}

// WithPalette replaces the 16-colour palette.
func WithPalette(p Palette) Option {
	return func(r *Renderer) {
		r.palette = p
	}
}

// WithDefaultColors sets the colours used when inverse video swaps a
// default foreground or background.
func WithDefaultColors(fg, bg string) Option {
	return func(r *Renderer) {
		r.fg = fg
		r.bg = bg
	}
}

// Renderer converts ANSI-styled text into a Fragment. It holds no state
// between calls and is safe for concurrent use.
type Renderer struct {
	newline bool
	palette Palette
	fg, bg  string
}

func New(opts ...Option) *Renderer {
	r := &Renderer{
		newline: true,
		palette: DefaultPalette,
		fg:      "#FFF",
		bg:      "#000",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRenderer = New()

// Render converts output with the default renderer.
func Render(output string) Fragment {
	return defaultRenderer.Render(output)
}

// Literal escapes text without interpreting escape sequences or line
// breaks.
func Literal(text string) Fragment {
	return Fragment(html.EscapeString(text))
}

// Render escapes output and turns SGR sequences into styled spans. An ESC
// that does not start a well-formed SGR sequence is dropped and the
// characters after it are rendered as text.
func (r *Renderer) Render(output string) Fragment {
	w := &htmlWriter{r: r}
	scan(output, r.newline, w)
	w.close()
	return Fragment(w.b.String())
}

// Strip removes SGR sequences and stray ESC bytes, returning the text a
// Fragment would display.
func Strip(output string) string {
	w := &textWriter{}
	scan(output, false, w)
	return w.b.String()
}

type sink interface {
	text(s string, st *state)
	lineBreak()
}

const esc = 0x1b

// scan walks s one sequence, control byte or grapheme at a time. SGR
// sequences update the style; any other sequence loses its ESC and the
// bytes after it are scanned again as ordinary text.
func scan(s string, newline bool, out sink) {
	var st state
	p := ansi.NewParser()
	i := 0
	for i < len(s) {
		p.Reset()
		seq, _, n, _ := ansi.DecodeSequence(s[i:], 0, p)
		if n <= 0 {
			n = 1
			seq = s[i : i+1]
		}
		switch {
		case s[i] == esc:
			if params, ok := sgrParams(seq, p); ok {
				st.apply(params)
				i += n
			} else {
				i++
			}
		case newline && seq == "\n":
			out.lineBreak()
			i += n
		case newline && seq == "\r" && i+1 < len(s) && s[i+1] == '\n':
			out.lineBreak()
			i += 2
		default:
			out.text(seq, &st)
			i += n
		}
	}
}

// sgrParams reports whether the decoded sequence is a plain SGR sequence,
// ESC '[' params 'm', and returns its parameters. Colon sub-parameters
// and private prefixes are not accepted.
func sgrParams(seq string, p *ansi.Parser) ([]int, bool) {
	if !strings.HasPrefix(seq, "\x1b[") {
		return nil, false
	}
	cmd := ansi.Cmd(p.Command())
	if cmd.Final() != 'm' || cmd.Prefix() != 0 || cmd.Intermediate() != 0 {
		return nil, false
	}
	raw := p.Params()
	if len(raw) == 0 {
		return []int{0}, true
	}
	params := make([]int, len(raw))
	for k, param := range raw {
		if param.HasMore() {
			return nil, false
		}
		params[k] = param.Param(0)
	}
	return params, true
}

// color is either a palette index (0-15), or an explicit CSS colour.
type color struct {
	set   bool
	index int
	css   string
}

func paletteColor(i int) color {
	return color{set: true, index: i}
}

func cssColor(css string) color {
	return color{set: true, index: -1, css: css}
}

func (c color) resolve(p *Palette) string {
	if !c.set {
		return ""
	}
	if c.index >= 0 {
		return p[c.index]
	}
	return c.css
}

type state struct {
	fg, bg color

	bold, faint, italic, underline bool
	strike, inverse, hidden        bool
}

func (st *state) apply(params []int) {
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			*st = state{}
		case p == 1:
			st.bold = true
		case p == 2:
			st.faint = true
		case p == 3:
			st.italic = true
		case p == 4:
			st.underline = true
		case p == 7:
			st.inverse = true
		case p == 8:
			st.hidden = true
		case p == 9:
			st.strike = true
		case p == 22:
			st.bold, st.faint = false, false
		case p == 23:
			st.italic = false
		case p == 24:
			st.underline = false
		case p == 27:
			st.inverse = false
		case p == 28:
			st.hidden = false
		case p == 29:
			st.strike = false
		case p >= 30 && p <= 37:
			st.fg = paletteColor(p - 30)
		case p == 38, p == 48:
			c, used, ok := extendedColor(params[i+1:])
			if !ok {
				return
			}
			if p == 38 {
				st.fg = c
			} else {
				st.bg = c
			}
			i += used
		case p == 39:
			st.fg = color{}
		case p >= 40 && p <= 47:
			st.bg = paletteColor(p - 40)
		case p == 49:
			st.bg = color{}
		case p >= 90 && p <= 97:
			st.fg = paletteColor(p - 90 + 8)
		case p >= 100 && p <= 107:
			st.bg = paletteColor(p - 100 + 8)
		}
	}
}

// extendedColor decodes the arguments after 38 or 48: "5;n" or "2;r;g;b".
func extendedColor(args []int) (color, int, bool) {
	if len(args) == 0 {
		return color{}, 0, false
	}
	switch args[0] {
	case 5:
		if len(args) < 2 || args[1] > 255 {
			return color{}, 0, false
		}
		return xterm256(args[1]), 2, true
	case 2:
		if len(args) < 4 {
			return color{}, 0, false
		}
		r, g, b := args[1], args[2], args[3]
		if r > 255 || g > 255 || b > 255 {
			return color{}, 0, false
		}
		return cssColor(fmt.Sprintf("#%02x%02x%02x", r, g, b)), 4, true
	}
	return color{}, 0, false
}

var cubeLevels = [6]int{0, 95, 135, 175, 215, 255}

func xterm256(n int) color {
	switch {
	case n < 16:
		return paletteColor(n)
	case n < 232:
		n -= 16
		r, g, b := cubeLevels[n/36], cubeLevels[n/6%6], cubeLevels[n%6]
		return cssColor(fmt.Sprintf("#%02x%02x%02x", r, g, b))
	default:
		level := 8 + 10*(n-232)
		return cssColor(fmt.Sprintf("#%02x%02x%02x", level, level, level))
	}
}

func (st *state) css(r *Renderer) string {
	fg, bg := st.fg.resolve(&r.palette), st.bg.resolve(&r.palette)
	if st.inverse {
		if fg == "" {
			fg = r.fg
		}
		if bg == "" {
			bg = r.bg
		}
		fg, bg = bg, fg
	}

	var decls []string
	if fg != "" {
		decls = append(decls, "color:"+fg)
	}
	if bg != "" {
		decls = append(decls, "background-color:"+bg)
	}
	if st.bold {
		decls = append(decls, "font-weight:bold")
	}
	if st.faint {
		decls = append(decls, "opacity:0.7")
	}
	if st.italic {
		decls = append(decls, "font-style:italic")
	}
	switch {
	case st.underline && st.strike:
		decls = append(decls, "text-decoration:underline line-through")
	case st.underline:
		decls = append(decls, "text-decoration:underline")
	case st.strike:
		decls = append(decls, "text-decoration:line-through")
	}
	if st.hidden {
		decls = append(decls, "visibility:hidden")
	}
	return strings.Join(decls, ";")
}

type htmlWriter struct {
	r         *Renderer
	b         strings.Builder
	open      bool
	openStyle string
}

func (w *htmlWriter) text(s string, st *state) {
	style := st.css(w.r)
	if !w.open || style != w.openStyle {
		w.close()
		if style != "" {
			w.b.WriteString(`<span style="`)
			w.b.WriteString(html.EscapeString(style))
			w.b.WriteString(`">`)
			w.open = true
			w.openStyle = style
		}
	}
	w.b.WriteString(html.EscapeString(s))
}

func (w *htmlWriter) lineBreak() {
	w.b.WriteString("<br/>")
}

func (w *htmlWriter) close() {
	if w.open {
		w.b.WriteString("</span>")
		w.open = false
		w.openStyle = ""
	}
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) text(s string, _ *state) {
	w.b.WriteString(s)
}

func (w *textWriter) lineBreak() {
	w.b.WriteByte('\n')
}
