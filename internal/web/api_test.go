package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/loxpad/internal/snippets"
	"github.com/caffeineduck/loxpad/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIRun(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantOutput string
		wantHTML   string
		wantKind   string
		wantLine   int
	}{
		{
			name:       "execute",
			path:       "/api/execute",
			body:       `{"source":"print \"hi\";"}`,
			wantStatus: http.StatusOK,
			wantOutput: "hi\n",
			wantHTML:   "hi<br/>",
		},
		{
			name:       "run alias",
			path:       "/api/run",
			body:       `{"source":"print 1 + 2;"}`,
			wantStatus: http.StatusOK,
			wantOutput: "3\n",
			wantHTML:   "3<br/>",
		},
		{
			name:       "empty source",
			path:       "/api/execute",
			body:       `{"source":""}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "compile error",
			path:       "/api/parse",
			body:       `{"source":"print (1;"}`,
			wantStatus: http.StatusOK,
			wantKind:   "compile",
			wantLine:   1,
		},
		{
			name:       "runtime error",
			path:       "/api/execute",
			body:       "{\"source\":\"\\n\\nprint -\\\"x\\\";\"}",
			wantStatus: http.StatusOK,
			wantKind:   "runtime",
			wantLine:   3,
		},
		{
			name:       "unknown mode",
			path:       "/api/format",
			body:       `{"source":""}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid json",
			path:       "/api/execute",
			body:       `{"source"`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid timeout",
			path:       "/api/execute",
			body:       `{"source":"","timeout":"soon"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestServer(t)

			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				resp := decode[errorResponse](t, rec)
				assert.NotEmpty(t, resp.Error)
				return
			}

			resp := decode[runResponse](t, rec)
			assert.Equal(t, tt.wantOutput, resp.Output)
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.Equal(t, tt.wantLine, resp.Line)
			if tt.wantKind == "" {
				assert.Empty(t, resp.Error)
				assert.Equal(t, tt.wantHTML, resp.HTML)
			} else {
				assert.NotEmpty(t, resp.Error)
				assert.NotEmpty(t, resp.HTML)
			}
			assert.Equal(t, 0, f.server.manager.len())
		})
	}
}

func TestAPIRunTimeout(t *testing.T) {
	f := setupTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/execute", `{"source":"while (true) {}","timeout":"50ms"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[runResponse](t, rec)
	assert.Equal(t, "timeout", resp.ErrorKind)
	assert.Contains(t, resp.Error, "timed out")
}

func TestAPISessionLifecycle(t *testing.T) {
	f := setupTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[createSessionResponse](t, rec).SessionID
	require.NotEmpty(t, id)

	rec = f.do(t, http.MethodPost, "/api/sessions/"+id+"/execute", `{"source":"print 7 * 6;"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42\n", decode[runResponse](t, rec).Output)

	rec = f.do(t, http.MethodPost, "/api/sessions/"+id+"/bytecode", `{"source":"print 7 * 6;"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[runResponse](t, rec)
	assert.Equal(t, "bytecode", run.Mode)
	assert.Contains(t, run.Output, "OP_MULTIPLY")

	rec = f.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/sessions/"+id+"/execute", `{"source":""}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIBackendFailure(t *testing.T) {
	stub := &session.StubBackend{Errors: map[session.Mode]error{
		session.ModeExecute: errors.New("module exited"),
	}}
	f := setupTestServer(t, func(c *Config) {
		c.Backend = func() (session.Backend, error) { return stub, nil }
	})

	rec := f.do(t, http.MethodPost, "/api/execute", `{"source":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[runResponse](t, rec)
	assert.Equal(t, "internal", resp.ErrorKind)
	assert.Equal(t, "stub backend: module exited", resp.Error)
	assert.True(t, stub.Closed)
}

func TestAPIBackendFactoryFailure(t *testing.T) {
	f := setupTestServer(t, func(c *Config) {
		c.Backend = func() (session.Backend, error) { return nil, errors.New("boom") }
	})

	rec := f.do(t, http.MethodPost, "/api/execute", `{"source":""}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/sessions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAPIShare(t *testing.T) {
	f := setupTestServer(t)

	rec := f.do(t, http.MethodPost, "/api/share", `{"source":"print \"shared\";"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[shareResponse](t, rec)
	assert.Equal(t, snippets.ID(`print "shared";`), created.ID)
	assert.Equal(t, "/s/"+created.ID, created.URL)

	rec = f.do(t, http.MethodGet, "/api/share/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[shareResponse](t, rec)
	assert.Equal(t, `print "shared";`, got.Source)
	assert.Equal(t, 1, got.Views)
	_, err := time.Parse(time.RFC3339, got.CreatedAt)
	assert.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/api/share/abcdefabcdef", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/share/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIShareTooLarge(t *testing.T) {
	f := setupTestServer(t)
	body := fmt.Sprintf(`{"source":%q}`, strings.Repeat("a", snippets.MaxSourceSize+1))

	rec := f.do(t, http.MethodPost, "/api/share", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	n, err := f.snippets.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAPIShareCollision(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "snippets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, snippets.Migrate(db))
	_, err = db.Exec(`INSERT INTO snippets (id, source, created_at) VALUES (?, ?, ?)`,
		snippets.ID("print 1;"), "print 2;", time.Now().Unix())
	require.NoError(t, err)

	f := setupTestServer(t, func(c *Config) { c.Snippets = snippets.New(db) })
	rec := f.do(t, http.MethodPost, "/api/share", `{"source":"print 1;"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "snippet id collision")
}

func TestAPIShareDisabled(t *testing.T) {
	f := setupTestServer(t, func(c *Config) { c.Snippets = nil })

	rec := f.do(t, http.MethodPost, "/api/share", `{"source":""}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/share/abcdefabcdef", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&session.CompileError{Message: "x"}, "compile"},
		{&session.RuntimeError{Message: "x"}, "runtime"},
		{&session.RuntimeError{Message: "x", Err: session.ErrTimeout}, "timeout"},
		{errors.New("x"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorKind(tt.err), tt.err.Error())
	}
}
