package wasm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/caffeineduck/loxpad/hostfunc"
	"github.com/caffeineduck/loxpad/session"
)

// Signals written by the module on stderr. Everything else on stderr is
// program output.
const (
	readySignal = "\x00LOX_READY\x00"
	doneSignal  = "\x00LOX_DONE\x00"
	errorPrefix = "\x00LOX_ERROR:"
	callPrefix  = "\x00LOX_CALL:"
	signalEnd   = "\x00"
)

// command is one line on the module's stdin.
type command struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
}

type callRequest struct {
	ID   string `json:"id,omitempty"`
	Fn   string `json:"fn"`
	Args []any  `json:"args"`
}

type callResponse struct {
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// protocol intercepts the module's stderr. Signals complete commands,
// call requests are answered on stdin, and the rest is kept as output.
type protocol struct {
	ctx      context.Context
	registry *hostfunc.Registry
	stdin    io.Writer

	buf    bytes.Buffer
	stderr bytes.Buffer

	readyCh chan struct{}
	doneCh  chan error
	ready   bool

	mu      sync.Mutex
	writeMu sync.Mutex
}

func newProtocol(ctx context.Context, registry *hostfunc.Registry, stdin io.Writer) *protocol {
	return &protocol{
		ctx:      ctx,
		registry: registry,
		stdin:    stdin,
		readyCh:  make(chan struct{}),
		doneCh:   make(chan error, 1),
	}
}

func (p *protocol) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)
	for p.step() {
	}
	return len(data), nil
}

// step consumes one signal or run of text from buf. It reports false when
// the buffer is empty or holds an incomplete signal.
func (p *protocol) step() bool {
	content := p.buf.String()
	if content == "" {
		return false
	}

	idx := strings.IndexByte(content, 0)
	if idx == -1 {
		p.stderr.WriteString(content)
		p.buf.Reset()
		return false
	}
	if idx > 0 {
		p.stderr.WriteString(content[:idx])
		p.consume(content, idx)
		return true
	}

	switch {
	case strings.HasPrefix(content, readySignal):
		p.consume(content, len(readySignal))
		if !p.ready {
			p.ready = true
			close(p.readyCh)
		}
		return true

	case strings.HasPrefix(content, doneSignal):
		p.consume(content, len(doneSignal))
		p.finish(nil)
		return true

	case strings.HasPrefix(content, errorPrefix):
		payload, n, ok := payloadOf(content, errorPrefix)
		if !ok {
			return false
		}
		p.consume(content, n)
		p.finish(decodeError(payload))
		return true

	case strings.HasPrefix(content, callPrefix):
		payload, n, ok := payloadOf(content, callPrefix)
		if !ok {
			return false
		}
		p.consume(content, n)
		p.handleCall(payload)
		return true
	}

	if partialSignal(content) {
		return false
	}

	// A stray NUL is output like any other byte.
	p.stderr.WriteByte(0)
	p.consume(content, 1)
	return true
}

func (p *protocol) consume(content string, n int) {
	p.buf.Reset()
	p.buf.WriteString(content[n:])
}

func (p *protocol) finish(err error) {
	select {
	case p.doneCh <- err:
	default:
	}
}

// payloadOf extracts the text between prefix and the closing NUL, and the
// total length of the signal.
func payloadOf(content, prefix string) (string, int, bool) {
	rest := content[len(prefix):]
	end := strings.Index(rest, signalEnd)
	if end == -1 {
		return "", 0, false
	}
	return rest[:end], len(prefix) + end + len(signalEnd), true
}

// partialSignal reports whether content may be the start of a signal that
// has not fully arrived.
func partialSignal(content string) bool {
	for _, s := range []string{readySignal, doneSignal, errorPrefix, callPrefix} {
		if len(content) < len(s) && strings.HasPrefix(s, content) {
			return true
		}
	}
	return false
}

// decodeError turns "<kind>:<message>" into a guest error. Compile messages
// may start with "line:column: " and runtime messages with "line N: ".
func decodeError(payload string) error {
	kind, msg, _ := strings.Cut(payload, ":")
	switch kind {
	case "compile":
		line, col, text := splitPosition(msg)
		return &session.CompileError{Message: text, Line: line, Column: col}
	case "runtime":
		line, text := splitLine(msg)
		return &session.RuntimeError{Message: text, Line: line}
	default:
		if msg == "" {
			return errors.New(kind)
		}
		return fmt.Errorf("%s: %s", kind, msg)
	}
}

func splitPosition(msg string) (int, int, string) {
	parts := strings.SplitN(msg, ":", 3)
	if len(parts) != 3 {
		return 0, 0, msg
	}
	line, err1 := strconv.Atoi(parts[0])
	col, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, msg
	}
	return line, col, strings.TrimPrefix(parts[2], " ")
}

func splitLine(msg string) (int, string) {
	rest, ok := strings.CutPrefix(msg, "line ")
	if !ok {
		return 0, msg
	}
	num, text, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, msg
	}
	line, err := strconv.Atoi(num)
	if err != nil {
		return 0, msg
	}
	return line, strings.TrimPrefix(text, " ")
}

func (p *protocol) handleCall(payload string) {
	var req callRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		go p.respond(callResponse{Error: "invalid call format"})
		return
	}
	// Respond in a goroutine so Write never blocks on the stdin pipe.
	go func() {
		resp := p.executeCall(req)
		resp.ID = req.ID
		p.respond(resp)
	}()
}

func (p *protocol) executeCall(req callRequest) callResponse {
	if p.registry == nil {
		return callResponse{Error: "unknown function: " + req.Fn}
	}
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		return callResponse{Error: "unknown function: " + req.Fn}
	}

	result, err := fn(p.ctx, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

func (p *protocol) respond(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal response"}`)
	}
	p.writeLine(data)
}

// send writes a command line to the module.
func (p *protocol) send(cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return p.writeLine(data)
}

func (p *protocol) writeLine(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.stdin.Write(append(data, '\n'))
	return err
}

func (p *protocol) Ready() <-chan struct{} {
	return p.readyCh
}

func (p *protocol) Done() <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCh
}

// Reset prepares for the next command: a stale completion is dropped and
// collected output cleared.
func (p *protocol) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.doneCh:
	default:
	}
	p.stderr.Reset()
}

func (p *protocol) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stderr.String()
}
