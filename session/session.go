package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// TruncationNotice is appended to output cut short by WithMaxOutput.
const TruncationNotice = "\n... output truncated"

// Result holds the output and metadata of one mode call.
type Result struct {
	Mode     Mode
	Output   string
	Duration time.Duration
	Error    error
}

// Session pairs a Backend with the most recently set source. Calls are
// serialized: at most one mode call runs at a time.
type Session struct {
	backend Backend
	cfg     config

	mu     sync.Mutex
	execMu sync.Mutex
	source string
	closed bool
	// cancel ends the running call, if any.
	cancel context.CancelFunc
}

// New creates a session over backend. The session owns the backend and
// closes it on Close.
func New(backend Backend, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{backend: backend, cfg: cfg}
}

// Backend returns the name of the underlying backend.
func (s *Session) Backend() string {
	return s.backend.Name()
}

// SetSource replaces the current source. Setting the same text again has
// no further effect. It waits for any running call to finish.
func (s *Session) SetSource(text string) {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	s.setSource(text)
}

func (s *Session) setSource(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || text == s.source {
		return
	}
	s.source = text
	s.backend.SetSource(text)
}

// Source returns the current source.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Parse renders the syntax tree of the current source.
func (s *Session) Parse(ctx context.Context) Result {
	return s.Run(ctx, ModeParse)
}

// Bytecode renders the disassembled bytecode of the current source.
func (s *Session) Bytecode(ctx context.Context) Result {
	return s.Run(ctx, ModeBytecode)
}

// Execute compiles and runs the current source. The output is everything
// the program printed, followed by the value of a final expression
// statement when it is not nil.
func (s *Session) Execute(ctx context.Context) Result {
	return s.Run(ctx, ModeExecute)
}

// Run performs mode on the current source.
func (s *Session) Run(ctx context.Context, mode Mode) Result {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	return s.run(ctx, mode)
}

// Submit sets the source and performs mode as one step; no other call on
// the session can observe the new source before the mode call runs.
func (s *Session) Submit(ctx context.Context, text string, mode Mode) Result {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	s.setSource(text)
	return s.run(ctx, mode)
}

func (s *Session) run(ctx context.Context, mode Mode) Result {
	start := time.Now()

	limit := s.cfg.timeout
	if s.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.timeout)
		defer cancel()
	}
	if deadline, ok := ctx.Deadline(); ok {
		limit = max(deadline.Sub(start), 0)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{Mode: mode, Error: ErrSessionClosed, Duration: time.Since(start)}
	}
	s.cancel = cancel
	s.mu.Unlock()

	var output string
	var err error
	switch mode {
	case ModeExecute:
		output, err = s.backend.Execute(ctx)
	case ModeParse:
		output, err = s.backend.Parse(ctx)
	case ModeBytecode:
		output, err = s.backend.Bytecode(ctx)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}

	s.mu.Lock()
	s.cancel = nil
	closed := s.closed
	s.mu.Unlock()

	if closed {
		output, err = "", ErrSessionClosed
	} else {
		err = s.classify(ctx, err, limit)
	}
	if err != nil && !s.cfg.partialOutput {
		output = ""
	}
	output = truncate(output, s.cfg.maxOutput)

	result := Result{
		Mode:     mode,
		Output:   output,
		Duration: time.Since(start),
		Error:    err,
	}

	s.cfg.logger.Debug("session call",
		slog.String("backend", s.backend.Name()),
		slog.String("mode", mode.String()),
		slog.Duration("duration", result.Duration),
		slog.Int("output_bytes", len(output)),
		slog.Any("error", err),
	)
	return result
}

// classify maps deadline expiry to ErrTimeout and wraps backend failures
// that are not guest errors. limit is the time the call was given.
func (s *Session) classify(ctx context.Context, err error, limit time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &RuntimeError{
			Message: fmt.Sprintf("execution timed out after %v", limit.Round(time.Millisecond)),
			Err:     ErrTimeout,
		}
	}
	if IsGuestError(err) || errors.Is(err, ErrUnknownMode) {
		return err
	}
	return fmt.Errorf("%s backend: %w", s.backend.Name(), err)
}

func truncate(output string, limit int) string {
	if limit <= 0 || len(output) <= limit {
		return output
	}
	return strings.ToValidUTF8(output[:limit], "") + TruncationNotice
}

// Close closes the session and its backend. A running call is cancelled
// and Close waits for it to return before closing the backend; that call
// and all later ones fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.execMu.Lock()
	defer s.execMu.Unlock()
	return s.backend.Close()
}
