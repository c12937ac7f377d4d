package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/loxpad/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct {
	mu       sync.Mutex
	backends []*session.StubBackend
	err      error
}

func (f *stubFactory) create() (session.Backend, error) {
	if f.err != nil {
		return nil, f.err
	}
	b := &session.StubBackend{Outputs: map[session.Mode]string{session.ModeExecute: "ok\n"}}
	f.mu.Lock()
	f.backends = append(f.backends, b)
	f.mu.Unlock()
	return b, nil
}

func newTestManager(t *testing.T, ttl time.Duration) (*sessionManager, *stubFactory, *time.Time) {
	t.Helper()
	factory := &stubFactory{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sm := newSessionManager(factory.create, ttl, slog.New(slog.DiscardHandler))
	sm.now = func() time.Time { return now }
	t.Cleanup(sm.closeAll)
	return sm, factory, &now
}

func TestSessionManagerCreateGetClose(t *testing.T) {
	sm, factory, _ := newTestManager(t, time.Minute)

	id, s, err := sm.create()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, ok := sm.get(id)
	require.True(t, ok)
	assert.Same(t, s, got)

	result := got.Execute(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, "ok\n", result.Output)

	assert.True(t, sm.close(id))
	assert.False(t, sm.close(id))
	assert.True(t, factory.backends[0].Closed)

	_, ok = sm.get(id)
	assert.False(t, ok)
}

func TestSessionManagerFactoryError(t *testing.T) {
	sm, factory, _ := newTestManager(t, time.Minute)
	factory.err = errors.New("no runtime")

	_, _, err := sm.create()
	assert.EqualError(t, err, "no runtime")
	assert.Equal(t, 0, sm.len())
}

func TestSessionManagerSweep(t *testing.T) {
	sm, factory, now := newTestManager(t, 10*time.Minute)

	idle, _, err := sm.create()
	require.NoError(t, err)
	active, _, err := sm.create()
	require.NoError(t, err)

	*now = now.Add(6 * time.Minute)
	_, ok := sm.get(active)
	require.True(t, ok)

	*now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, sm.sweep())
	assert.Equal(t, 1, sm.len())

	_, ok = sm.get(idle)
	assert.False(t, ok)
	_, ok = sm.get(active)
	assert.True(t, ok)

	assert.True(t, factory.backends[0].Closed)
	assert.False(t, factory.backends[1].Closed)
}

func TestSessionManagerCloseAll(t *testing.T) {
	sm, factory, _ := newTestManager(t, time.Minute)
	for range 3 {
		_, _, err := sm.create()
		require.NoError(t, err)
	}

	sm.closeAll()
	assert.Equal(t, 0, sm.len())
	for _, b := range factory.backends {
		assert.True(t, b.Closed)
	}
}

func TestSessionManagerRunStopsOnCancel(t *testing.T) {
	sm, _, _ := newTestManager(t, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
