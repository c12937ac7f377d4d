// Package lox provides the native Lox backend for loxpad sessions.
package lox

import (
	"context"
	"errors"
	"strings"

	"github.com/caffeineduck/loxpad/hostfunc"
	"github.com/caffeineduck/loxpad/internal/lox"
	"github.com/caffeineduck/loxpad/session"
)

// Option configures a Backend.
type Option func(*config)

type config struct {
	file      string
	color     bool
	maxOutput int
	maxFrames int
	registry  *hostfunc.Registry
	kv        *hostfunc.KVConfig
}

func defaultConfig() config {
	kv := hostfunc.DefaultKVConfig()
	return config{
		file:      "input",
		maxFrames: lox.DefaultMaxFrames,
		kv:        &kv,
	}
}

// WithFile sets the file name shown in diagnostics.
func WithFile(name string) Option {
	return func(c *config) {
		c.file = name
	}
}

// WithColor renders diagnostic reports with ANSI colours.
func WithColor(enabled bool) Option {
	return func(c *config) {
		c.color = enabled
	}
}

// WithMaxOutput stops a program once it has printed n bytes.
func WithMaxOutput(n int) Option {
	return func(c *config) {
		c.maxOutput = n
	}
}

// WithMaxFrames bounds call depth.
func WithMaxFrames(n int) Option {
	return func(c *config) {
		c.maxFrames = n
	}
}

// WithRegistry replaces the default builtins. The registry is cloned.
func WithRegistry(r *hostfunc.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithKV configures the per-backend key/value store. A nil config disables
// kv_get and kv_set.
func WithKV(cfg *hostfunc.KVConfig) Option {
	return func(c *config) {
		c.kv = cfg
	}
}

// Backend implements session.Backend with the in-process Lox toolchain.
// Parse trees and compiled code are memoized until the source changes.
type Backend struct {
	cfg     config
	natives []*lox.Native
	kv      *hostfunc.KV

	source string

	parsed   bool
	stmts    []lox.Stmt
	parseErr error

	compiled   bool
	fn         *lox.Function
	compileErr error

	repl *lox.VM
}

// New returns a Lox backend.
func New(opts ...Option) *Backend {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var registry *hostfunc.Registry
	if cfg.registry != nil {
		registry = cfg.registry.Clone()
	} else {
		registry = hostfunc.Builtins()
	}

	b := &Backend{cfg: cfg}
	if cfg.kv != nil {
		b.kv = hostfunc.NewKV(*cfg.kv)
		b.kv.Register(registry)
	}

	for _, name := range registry.List() {
		fn, _ := registry.Get(name)
		b.natives = append(b.natives, &lox.Native{Name: name, Arity: -1, Fn: lox.NativeFunc(fn)})
	}
	return b
}

// Name returns "lox".
func (b *Backend) Name() string {
	return "lox"
}

// KV returns the key/value store shared by every run of this backend, or
// nil when disabled.
func (b *Backend) KV() *hostfunc.KV {
	return b.kv
}

// Natives lists the builtin function names available to programs.
func (b *Backend) Natives() []string {
	names := make([]string, len(b.natives))
	for i, n := range b.natives {
		names[i] = n.Name
	}
	return names
}

func (b *Backend) SetSource(source string) {
	if source == b.source {
		return
	}
	b.source = source
	b.parsed, b.stmts, b.parseErr = false, nil, nil
	b.compiled, b.fn, b.compileErr = false, nil, nil
}

func (b *Backend) parse() ([]lox.Stmt, error) {
	if !b.parsed {
		stmts, diags := lox.Parse(b.source)
		if len(diags) > 0 {
			b.parseErr = b.compileError(&lox.CompileError{File: b.cfg.file, Diagnostics: diags}, b.source)
		}
		b.stmts = stmts
		b.parsed = true
	}
	return b.stmts, b.parseErr
}

func (b *Backend) compile() (*lox.Function, error) {
	if !b.compiled {
		stmts, err := b.parse()
		if err != nil {
			b.compileErr = err
		} else {
			fn, err := lox.CompileAST(b.cfg.file, stmts)
			b.fn = fn
			if err != nil {
				b.compileErr = b.convert(err, b.source)
			}
		}
		b.compiled = true
	}
	return b.fn, b.compileErr
}

// Parse renders the syntax tree.
func (b *Backend) Parse(ctx context.Context) (string, error) {
	stmts, err := b.parse()
	if err != nil {
		return "", err
	}
	return lox.FormatTree(stmts), nil
}

// Bytecode renders the disassembly of the script and every function in it.
func (b *Backend) Bytecode(ctx context.Context) (string, error) {
	fn, err := b.compile()
	if err != nil {
		return "", err
	}
	return lox.Disassemble(fn), nil
}

// Execute runs the program in a fresh VM. The output is everything printed
// followed by the script's final value when it is not nil.
func (b *Backend) Execute(ctx context.Context) (string, error) {
	fn, err := b.compile()
	if err != nil {
		return "", err
	}
	kernel := &lox.BufferKernel{Limit: b.cfg.maxOutput}
	vm := lox.NewVM(kernel, b.natives...)
	vm.SetMaxFrames(b.cfg.maxFrames)
	val, err := vm.Run(ctx, fn)
	return b.result(kernel, val, err, b.source)
}

// Eval compiles and runs src in a VM whose globals persist across Eval
// calls, for interactive use. It does not touch the current source.
func (b *Backend) Eval(ctx context.Context, src string) (string, error) {
	fn, err := lox.Compile("repl", src)
	if err != nil {
		return "", b.convert(err, src)
	}
	kernel := &lox.BufferKernel{Limit: b.cfg.maxOutput}
	if b.repl == nil {
		b.repl = lox.NewVM(kernel, b.natives...)
		b.repl.SetMaxFrames(b.cfg.maxFrames)
	}
	b.repl.SetKernel(kernel)
	val, err := b.repl.Run(ctx, fn)
	return b.result(kernel, val, err, src)
}

func (b *Backend) result(k *lox.BufferKernel, val lox.Value, err error, src string) (string, error) {
	out := k.String()
	if err != nil {
		return out, b.convert(err, src)
	}
	if val != nil {
		out += lox.FormatValue(val) + "\n"
	}
	return out, nil
}

func (b *Backend) convert(err error, src string) error {
	var cerr *lox.CompileError
	if errors.As(err, &cerr) {
		return b.compileError(cerr, src)
	}
	var rerr *lox.RuntimeError
	if errors.As(err, &rerr) {
		return &session.RuntimeError{
			Message: rerr.Message,
			Line:    rerr.Line,
			Trace:   rerr.Trace(),
			Err:     rerr,
		}
	}
	return err
}

func (b *Backend) compileError(cerr *lox.CompileError, src string) error {
	first := cerr.First()
	report := lox.FormatDiagnostics(cerr.File, src, cerr.Diagnostics, lox.FormatOptions{Color: b.cfg.color})
	return &session.CompileError{
		Message: first.Message,
		Line:    first.Pos.Line,
		Column:  first.Pos.Column,
		Report:  strings.TrimRight(report, "\n"),
		Err:     cerr,
	}
}

// Close releases nothing; the backend holds no external resources.
func (b *Backend) Close() error {
	b.repl = nil
	return nil
}
