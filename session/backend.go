package session

import "context"

// Backend defines the interface for a compiler backend. A session owns one
// Backend and calls it from a single goroutine at a time.
type Backend interface {
	// Name returns a unique identifier for this backend (e.g., "lox", "wasm").
	Name() string

	// SetSource replaces the source that later calls operate on.
	SetSource(source string)

	// Parse renders the syntax tree of the current source.
	// Invalid source fails with *CompileError.
	Parse(ctx context.Context) (string, error)

	// Bytecode renders the compiled form of the current source.
	// Invalid source fails with *CompileError.
	Bytecode(ctx context.Context) (string, error)

	// Execute compiles and runs the current source. On *RuntimeError the
	// returned output holds what was printed before the failure.
	Execute(ctx context.Context) (string, error)

	// Close releases the backend's resources.
	Close() error
}
