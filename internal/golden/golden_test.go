package golden

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCase(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name+".lox")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeCase(t, dir, "b", "print 2;")
	writeCase(t, dir, "a", "print 1;")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a"), 0o755))

	cases, err := List(dir)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "a", cases[0].Name())
	assert.Equal(t, filepath.Join(dir, "a"), cases[0].Dir)
	assert.Equal(t, "print 1;", cases[0].Source)
	assert.Equal(t, "b", cases[1].Name())

	single, err := List(filepath.Join(dir, "b.lox"))
	require.NoError(t, err)
	require.Len(t, single, 1)

	_, err = List(filepath.Join(dir, "notes.txt"))
	assert.Error(t, err)
	_, err = List(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestBlessThenPass(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(writeCase(t, dir, "hello", "print 1 + 2;"))
	require.NoError(t, err)
	ctx := context.Background()

	blessed, err := (&Runner{Bless: true, Timeout: 5 * time.Second}).Run(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Blessed, blessed.Status)

	for _, name := range Files {
		assert.FileExists(t, filepath.Join(c.Dir, name))
	}
	out, err := os.ReadFile(filepath.Join(c.Dir, "output"))
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(out))
	diag, err := os.ReadFile(filepath.Join(c.Dir, "diagnostic"))
	require.NoError(t, err)
	assert.Empty(t, diag)
	bc, err := os.ReadFile(filepath.Join(c.Dir, "bytecode"))
	require.NoError(t, err)
	assert.Contains(t, string(bc), "OP_ADD")
	tok, err := os.ReadFile(filepath.Join(c.Dir, "token"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(tok), "'print' @1:1\nnumber \"1\" @1:7\n"), string(tok))

	res, err := (&Runner{Timeout: 5 * time.Second}).Run(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Passed, res.Status)
	assert.Empty(t, res.Mismatches)
}

func TestMismatch(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(writeCase(t, dir, "hello", "print 1 + 2;"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = (&Runner{Bless: true}).Run(ctx, c)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir, "output"), []byte("4\n"), 0o644))

	res, err := (&Runner{}).Run(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Status)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, "output", res.Mismatches[0].File)
	assert.Equal(t, "4\n", res.Mismatches[0].Want)
	assert.Equal(t, "3\n", res.Mismatches[0].Got)
}

func TestMissingExpectationsFail(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(writeCase(t, dir, "hello", "print 1;"))
	require.NoError(t, err)

	res, err := (&Runner{}).Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Status)

	var files []string
	for _, m := range res.Mismatches {
		files = append(files, m.File)
	}
	// diagnostic is legitimately empty for a clean program.
	assert.Equal(t, []string{"token", "syntax", "bytecode", "output"}, files)
}

func TestTokenMismatch(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(writeCase(t, dir, "hello", "print 1;"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = (&Runner{Bless: true}).Run(ctx, c)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir, "token"), []byte("'print' @1:1\n"), 0o644))

	res, err := (&Runner{}).Run(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Status)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, "token", res.Mismatches[0].File)
	assert.Contains(t, res.Mismatches[0].Got, "';' @1:8")
}

func TestIgnored(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(writeCase(t, dir, "slow", "// ignore: takes forever\nwhile (true) {}"))
	require.NoError(t, err)

	res, err := (&Runner{Bless: true}).Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, Ignored, res.Status)
	assert.NoDirExists(t, c.Dir)
}

func TestActual(t *testing.T) {
	r := &Runner{Timeout: 5 * time.Second}
	ctx := context.Background()

	t.Run("compile error", func(t *testing.T) {
		got, err := r.Actual(ctx, Case{Path: "bad.lox", Source: "print ;"})
		require.NoError(t, err)
		assert.Contains(t, got["diagnostic"], "error: ")
		assert.Contains(t, got["diagnostic"], "--> bad.lox:1:")
		assert.Empty(t, got["bytecode"])
		assert.Empty(t, got["output"])
	})

	t.Run("runtime error keeps output", func(t *testing.T) {
		got, err := r.Actual(ctx, Case{Path: "boom.lox", Source: "print 1;\nprint 1 + nil;"})
		require.NoError(t, err)
		assert.Empty(t, got["diagnostic"])
		assert.NotEmpty(t, got["bytecode"])
		assert.Contains(t, got["output"], "1\nerror: ")
	})

	t.Run("partial syntax tree", func(t *testing.T) {
		got, err := r.Actual(ctx, Case{Path: "half.lox", Source: "var a = 1;\nprint ;"})
		require.NoError(t, err)
		assert.NotEmpty(t, got["syntax"])
		assert.NotEmpty(t, got["diagnostic"])
	})
}

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	rep := NewReporter(&buf, false)

	rep.Add(Result{Case: Case{Path: "a.lox", Dir: "a"}, Status: Passed})
	rep.Add(Result{
		Case:   Case{Path: "b.lox", Dir: "b"},
		Status: Failed,
		Mismatches: []Mismatch{
			{File: "output", Want: "1\n2\n", Got: "1\n3\n"},
		},
	})
	rep.Add(Result{Case: Case{Path: "c.lox", Dir: "c"}, Status: Ignored})
	rep.Summary()

	out := buf.String()
	assert.Contains(t, out, "--- b/output")
	assert.Contains(t, out, " 1\n")
	assert.Contains(t, out, "-2\n")
	assert.Contains(t, out, "+3\n")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "1 passed, 1 failed, 1 ignored, 0 blessed")
	assert.NotContains(t, out, "\x1b[")
	assert.Equal(t, 1, rep.Failed())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", Passed.String())
	assert.Equal(t, "FAILED", Failed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
