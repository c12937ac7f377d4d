package session

import (
	"context"
	"sync"
)

// StubBackend is a scripted Backend for tests of code that drives a
// Session. Outputs and Errors are keyed by mode; Sources records every
// SetSource call.
type StubBackend struct {
	Outputs map[Mode]string
	Errors  map[Mode]error
	// Block, when set, makes every call wait for it to close or for the
	// context to end.
	Block chan struct{}

	mu      sync.Mutex
	Sources []string
	Calls   []Mode
	Closed  bool
	// ClosedWhileBusy records a Close that arrived during a call.
	ClosedWhileBusy bool
	active          int
}

func (b *StubBackend) Name() string {
	return "stub"
}

func (b *StubBackend) SetSource(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sources = append(b.Sources, source)
}

func (b *StubBackend) Parse(ctx context.Context) (string, error) {
	return b.call(ctx, ModeParse)
}

func (b *StubBackend) Bytecode(ctx context.Context) (string, error) {
	return b.call(ctx, ModeBytecode)
}

func (b *StubBackend) Execute(ctx context.Context) (string, error) {
	return b.call(ctx, ModeExecute)
}

func (b *StubBackend) call(ctx context.Context, mode Mode) (string, error) {
	b.mu.Lock()
	b.Calls = append(b.Calls, mode)
	b.active++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.active--
		b.mu.Unlock()
	}()

	if b.Block != nil {
		select {
		case <-b.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return b.Outputs[mode], b.Errors[mode]
}

func (b *StubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	if b.active > 0 {
		b.ClosedWhileBusy = true
	}
	return nil
}

// LastSource returns the most recent source passed to SetSource.
func (b *StubBackend) LastSource() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Sources) == 0 {
		return ""
	}
	return b.Sources[len(b.Sources)-1]
}
