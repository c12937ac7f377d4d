package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/caffeineduck/loxpad/hostfunc"
	"github.com/caffeineduck/loxpad/session"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
)

// ErrModuleExited is returned when the module stops while a command is
// outstanding. The next call starts a fresh instance.
var ErrModuleExited = errors.New("module exited")

// Backend runs a Lox toolchain compiled to WASI. Each Backend owns one
// long-lived module instance fed with commands on stdin.
type Backend struct {
	rt     *Runtime
	module Module
	cfg    config
	kv     *hostfunc.KV

	inst   *instance
	source string
	synced bool // the running instance holds source
	closed bool
}

type instance struct {
	cancel  context.CancelFunc
	stdin   *io.PipeWriter
	stdinR  *io.PipeReader
	stdout  *outputBuffer
	proto   *protocol
	exited  chan struct{}
	exitErr error
}

// New starts an instance of m on rt. The Runtime is shared and is not
// closed by the Backend.
func New(rt *Runtime, m Module, opts ...Option) (*Backend, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = hostfunc.Builtins()
	}

	b := &Backend{rt: rt, module: m, cfg: cfg}
	if cfg.kv != nil {
		b.kv = hostfunc.NewKV(*cfg.kv)
		b.kv.Register(cfg.registry)
	}

	if err := b.start(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) Name() string {
	return "wasm"
}

// KV returns the guest key/value store, or nil when disabled.
func (b *Backend) KV() *hostfunc.KV {
	return b.kv
}

func (b *Backend) SetSource(source string) {
	if source == b.source && b.synced {
		return
	}
	b.source = source
	b.synced = false
}

func (b *Backend) Parse(ctx context.Context) (string, error) {
	return b.call(ctx, "parse")
}

func (b *Backend) Bytecode(ctx context.Context) (string, error) {
	return b.call(ctx, "bytecode")
}

func (b *Backend) Execute(ctx context.Context) (string, error) {
	return b.call(ctx, "execute")
}

func (b *Backend) call(ctx context.Context, typ string) (string, error) {
	if b.closed {
		return "", session.ErrSessionClosed
	}
	if b.inst == nil {
		if err := b.start(); err != nil {
			return "", err
		}
	}
	if !b.synced {
		if _, err := b.roundTrip(ctx, command{Type: "set_source", Source: b.source}); err != nil {
			return "", fmt.Errorf("set source: %w", err)
		}
		b.synced = true
	}
	return b.roundTrip(ctx, command{Type: typ})
}

// roundTrip sends one command and waits for its completion signal. When
// ctx ends first the instance is terminated.
func (b *Backend) roundTrip(ctx context.Context, cmd command) (string, error) {
	inst := b.inst
	inst.stdout.Reset()
	inst.proto.Reset()

	if err := inst.proto.send(cmd); err != nil {
		b.stop()
		return "", fmt.Errorf("write command: %w", err)
	}

	select {
	case <-ctx.Done():
		output := inst.output()
		b.stop()
		return output, ctx.Err()
	case err := <-inst.proto.Done():
		return inst.output(), err
	case <-inst.exited:
		output := inst.output()
		b.inst = nil
		b.synced = false
		if inst.exitErr != nil {
			return output, fmt.Errorf("%w: %w", ErrModuleExited, inst.exitErr)
		}
		return output, ErrModuleExited
	}
}

func (b *Backend) start() error {
	ctx := context.Background()

	compiled, err := b.rt.compile(ctx, b.module)
	if err != nil {
		return err
	}

	instCtx, cancel := context.WithCancel(ctx)
	stdinR, stdinW := io.Pipe()
	inst := &instance{
		cancel: cancel,
		stdin:  stdinW,
		stdinR: stdinR,
		stdout: &outputBuffer{},
		exited: make(chan struct{}),
	}
	inst.proto = newProtocol(instCtx, b.cfg.registry, stdinW)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(inst.stdout).
		WithStderr(inst.proto).
		WithStdin(stdinR).
		WithArgs(b.module.Name).
		WithName("")

	for k, v := range b.cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	go func() {
		mod, err := b.rt.runtime.InstantiateModule(instCtx, compiled, moduleConfig)
		if mod != nil {
			mod.Close(context.Background())
		}
		var exit *sys.ExitError
		if errors.As(err, &exit) && exit.ExitCode() == 0 {
			err = nil
		}
		inst.exitErr = err
		close(inst.exited)
	}()

	timer := time.NewTimer(b.cfg.startTimeout)
	defer timer.Stop()

	select {
	case <-inst.proto.Ready():
		b.inst = inst
		b.synced = false
		return nil
	case <-inst.exited:
		inst.kill()
		if inst.exitErr != nil {
			return fmt.Errorf("start %s: %w", b.module.Name, inst.exitErr)
		}
		return fmt.Errorf("start %s: %w before ready", b.module.Name, ErrModuleExited)
	case <-timer.C:
		inst.kill()
		return fmt.Errorf("start %s: no ready signal after %v", b.module.Name, b.cfg.startTimeout)
	}
}

// stop terminates the running instance; the next call starts a new one.
func (b *Backend) stop() {
	if b.inst == nil {
		return
	}
	b.inst.kill()
	b.inst = nil
	b.synced = false
}

func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.stop()
	return nil
}

func (inst *instance) kill() {
	inst.cancel()
	// Closing the pipe unblocks a module waiting on stdin.
	inst.stdinR.Close()
	inst.stdin.Close()
	select {
	case <-inst.exited:
	case <-time.After(time.Second):
	}
}

func (inst *instance) output() string {
	return inst.stdout.String() + inst.proto.Stderr()
}

type outputBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (o *outputBuffer) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(data)
}

func (o *outputBuffer) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

func (o *outputBuffer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.Reset()
}
