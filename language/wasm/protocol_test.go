package wasm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/caffeineduck/loxpad/hostfunc"
	"github.com/caffeineduck/loxpad/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolPassthrough(t *testing.T) {
	p := newProtocol(context.Background(), nil, io.Discard)

	p.Write([]byte("hello "))
	p.Write([]byte("world\n"))

	assert.Equal(t, "hello world\n", p.Stderr())
}

func TestProtocolReady(t *testing.T) {
	p := newProtocol(context.Background(), nil, io.Discard)
	p.Write([]byte("boot\x00LOX_REA"))

	select {
	case <-p.Ready():
		t.Fatal("ready before signal completed")
	default:
	}

	p.Write([]byte("DY\x00"))
	select {
	case <-p.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready not signalled")
	}
	assert.Equal(t, "boot", p.Stderr())
}

func TestProtocolDone(t *testing.T) {
	p := newProtocol(context.Background(), nil, io.Discard)
	p.Write([]byte("out\x00LOX_DONE\x00tail"))

	select {
	case err := <-p.Done():
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("done not signalled")
	}
	assert.Equal(t, "outtail", p.Stderr())

	p.Reset()
	assert.Empty(t, p.Stderr())
}

func TestProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "compile with position",
			payload: "compile:3:7:expected expression",
			check: func(t *testing.T, err error) {
				var cerr *session.CompileError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, 3, cerr.Line)
				assert.Equal(t, 7, cerr.Column)
				assert.Equal(t, "expected expression", cerr.Message)
			},
		},
		{
			name:    "compile without position",
			payload: "compile:bad input",
			check: func(t *testing.T, err error) {
				var cerr *session.CompileError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, "bad input", cerr.Message)
				assert.Zero(t, cerr.Line)
			},
		},
		{
			name:    "runtime",
			payload: "runtime:line 2: operand must be a number",
			check: func(t *testing.T, err error) {
				var rerr *session.RuntimeError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, 2, rerr.Line)
				assert.Equal(t, "operand must be a number", rerr.Message)
			},
		},
		{
			name:    "other",
			payload: "internal:out of memory",
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "internal: out of memory")
				assert.False(t, session.IsGuestError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProtocol(context.Background(), nil, io.Discard)
			// Split mid-signal to exercise buffering.
			p.Write([]byte("\x00LOX_ERROR:" + tt.payload[:3]))
			p.Write([]byte(tt.payload[3:] + "\x00"))

			select {
			case err := <-p.Done():
				tt.check(t, err)
			case <-time.After(time.Second):
				t.Fatal("error not signalled")
			}
		})
	}
}

func TestProtocolStrayNul(t *testing.T) {
	p := newProtocol(context.Background(), nil, io.Discard)
	p.Write([]byte("a\x00b and more text"))
	assert.Equal(t, "a\x00b and more text", p.Stderr())
}

func TestProtocolHostCall(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("add", func(ctx context.Context, args []any) (any, error) {
		return args[0].(float64) + args[1].(float64), nil
	})
	registry.Register("fail", func(ctx context.Context, args []any) (any, error) {
		return nil, errors.New("nope")
	})

	stdinR, stdinW := io.Pipe()
	defer stdinR.Close()
	p := newProtocol(context.Background(), registry, stdinW)
	responses := bufio.NewScanner(stdinR)

	read := func() callResponse {
		t.Helper()
		require.True(t, responses.Scan())
		var resp callResponse
		require.NoError(t, json.Unmarshal(responses.Bytes(), &resp))
		return resp
	}

	p.Write([]byte("\x00LOX_CALL:{\"id\":\"7\",\"fn\":\"add\",\"args\":[2,3]}\x00"))
	resp := read()
	assert.Equal(t, "7", resp.ID)
	assert.Equal(t, 5.0, resp.Data)

	p.Write([]byte("\x00LOX_CALL:{\"fn\":\"fail\",\"args\":[]}\x00"))
	assert.Equal(t, "nope", read().Error)

	p.Write([]byte("\x00LOX_CALL:{\"fn\":\"missing\",\"args\":[]}\x00"))
	assert.Equal(t, "unknown function: missing", read().Error)

	p.Write([]byte("\x00LOX_CALL:not json\x00"))
	assert.Equal(t, "invalid call format", read().Error)
}

func TestProtocolSend(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	p := newProtocol(context.Background(), nil, stdinW)

	go p.send(command{Type: "set_source", Source: "print 1;"})

	line, err := bufio.NewReader(stdinR).ReadString('\n')
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set_source","source":"print 1;"}`, line)
}
