package playground

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/caffeineduck/loxpad/render"
	"github.com/caffeineduck/loxpad/session"
)

// Editor supplies the current source text.
type Editor interface {
	Text() string
}

// Display shows the outcome of an action. Each call replaces whatever was
// shown before.
type Display interface {
	// ShowMarkup displays rendered program output.
	ShowMarkup(f render.Fragment) error
	// ShowText displays a failure report as literal text.
	ShowText(text string) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithRenderer replaces the default output renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(c *Controller) {
		c.renderer = r
	}
}

// WithLogger sets the logger for per-action records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller connects an editor, a session and a display: every action
// reads the editor, runs one mode and updates the display exactly once.
type Controller struct {
	editor   Editor
	session  *session.Session
	display  Display
	renderer *render.Renderer
	logger   *slog.Logger
}

func New(editor Editor, s *session.Session, display Display, opts ...Option) *Controller {
	c := &Controller{
		editor:   editor,
		session:  s,
		display:  display,
		renderer: render.New(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle performs one user action. Program failures are shown on the
// display and reported in the result; the returned error is non-nil only
// when the display itself could not be updated.
func (c *Controller) Handle(ctx context.Context, mode session.Mode) (session.Result, error) {
	text := c.editor.Text()
	result := c.session.Submit(ctx, text, mode)

	var err error
	if result.Error != nil {
		err = c.display.ShowText(result.Error.Error())
	} else {
		err = c.display.ShowMarkup(c.renderer.Render(result.Output))
	}

	c.logger.Info("playground action",
		slog.String("mode", mode.String()),
		slog.Int("source_bytes", len(text)),
		slog.Duration("duration", result.Duration),
		slog.Bool("failed", result.Error != nil),
	)
	if err != nil {
		return result, fmt.Errorf("update display: %w", err)
	}
	return result, nil
}

// Buffer is an Editor backed by a string that can be changed concurrently.
type Buffer struct {
	mu   sync.RWMutex
	text string
}

func NewBuffer(text string) *Buffer {
	return &Buffer{text: text}
}

func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
}

// StaticText is an Editor that always returns the same text.
type StaticText string

func (s StaticText) Text() string {
	return string(s)
}

// Recorder is a Display that keeps what was last shown.
type Recorder struct {
	mu      sync.Mutex
	content string
	markup  bool
	updates int
}

func (r *Recorder) ShowMarkup(f render.Fragment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content, r.markup = string(f), true
	r.updates++
	return nil
}

func (r *Recorder) ShowText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content, r.markup = text, false
	r.updates++
	return nil
}

// Content returns the last shown content and whether it was markup.
func (r *Recorder) Content() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content, r.markup
}

// HTML returns the last shown content as HTML, escaping literal text.
func (r *Recorder) HTML() render.Fragment {
	content, markup := r.Content()
	if markup {
		return render.Fragment(content)
	}
	return render.Literal(content)
}

// Updates counts display mutations.
func (r *Recorder) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}
