package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/caffeineduck/loxpad/session"
	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(newRootCmd(), "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"loxpad",
		"WebAssembly",
		"run",
		"repl",
		"serve",
		"test",
		"watch",
		"lsp",
		"init",
		"--backend",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLISubcommandHelp(t *testing.T) {
	tests := []struct {
		args    []string
		phrases []string
	}{
		{[]string{"run", "--help"}, []string{"--code", "--mode", "--timeout", "--max-output", "--partial-output"}},
		{[]string{"repl", "--help"}, []string{"--history", "Command history", ":parse", "exit"}},
		{[]string{"serve", "--help"}, []string{"--addr", "--database", "--no-share", "/api/sessions", "/api/share", "/health"}},
		{[]string{"test", "--help"}, []string{"--bless", "syntax", "bytecode", "// ignore"}},
		{[]string{"watch", "--help"}, []string{"--mode", "--clear"}},
	}

	for _, tc := range tests {
		output, err := executeCommand(newRootCmd(), tc.args...)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", tc.args, err)
		}
		for _, phrase := range tc.phrases {
			if !strings.Contains(output, phrase) {
				t.Errorf("%v output should contain %q", tc.args, phrase)
			}
		}
	}
}

func TestCLIRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"execute", []string{"run", "-c", "print 1 + 2;"}, "3\n"},
		{"root runs code", []string{"-c", "print \"hi\";"}, "hi\n"},
		{"parse", []string{"run", "-m", "parse", "-c", "print 1;"}, "Print @1:1"},
		{"bytecode", []string{"run", "-m", "bytecode", "-c", "print 1;"}, "OP_PRINT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			output, err := executeCommand(newRootCmd(), tc.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(output, tc.want) {
				t.Errorf("output = %q, want it to contain %q", output, tc.want)
			}
		})
	}
}

func TestCLIRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.lox")
	if err := os.WriteFile(path, []byte("print \"hello lox!\";\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	output, err := executeCommand(newRootCmd(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "hello lox!\n" {
		t.Errorf("output = %q", output)
	}
}

func TestCLIRunStdin(t *testing.T) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader("print 6 * 7;"))
	root.SetArgs([]string{"run"})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "42\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCLIRunErrors(t *testing.T) {
	output, err := executeCommand(newRootCmd(), "run", "-c", "print ;")
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(output, "--> input:1:") {
		t.Errorf("output should contain the diagnostic location, got %q", output)
	}

	_, err = executeCommand(newRootCmd(), "run", "-m", "compile", "-c", "print 1;")
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Errorf("expected unknown mode error, got %v", err)
	}

	_, err = executeCommand(newRootCmd(), "run", "--backend", "ruby", "-c", "print 1;")
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("expected unknown backend error, got %v", err)
	}
}

func TestCLIRunWithoutSourceShowsHelp(t *testing.T) {
	output, err := executeCommand(newRootCmd(), "run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "Usage:") {
		t.Errorf("expected usage, got %q", output)
	}
}

func TestCLIVersion(t *testing.T) {
	output, err := executeCommand(newRootCmd(), "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "loxpad "+Version+"\n" {
		t.Errorf("output = %q", output)
	}
}

func TestCLIInit(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	output, err := executeCommand(newRootCmd(), "init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(output, "wrote loxpad.yaml") {
		t.Errorf("output = %q", output)
	}
	data, err := os.ReadFile(filepath.Join(dir, "loxpad.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "backend: lox") {
		t.Errorf("config should set the backend, got:\n%s", data)
	}

	if _, err := executeCommand(newRootCmd(), "init"); err == nil {
		t.Error("expected error when loxpad.yaml exists")
	}
	if _, err := executeCommand(newRootCmd(), "init", "--force"); err != nil {
		t.Errorf("--force: unexpected error: %v", err)
	}
}

func TestCLIConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile("loxpad.yaml", []byte("max_output: 4\npartial_output: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	output, err := executeCommand(newRootCmd(), "run", "-c", `print "abcdefgh";`)
	if err == nil || !strings.Contains(err.Error(), "output limit") {
		t.Errorf("expected output limit error, got %v", err)
	}
	if !strings.Contains(output, "abcd") {
		t.Errorf("partial_output from the config file should keep output, got %q", output)
	}
	if strings.Contains(output, "abcdefgh") {
		t.Errorf("max_output from the config file should truncate output, got %q", output)
	}
}

func TestCLITest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sum.lox"), []byte("print 1 + 2;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := executeCommand(newRootCmd(), "test", dir); err == nil {
		t.Error("expected failure without expectation files")
	}

	output, err := executeCommand(newRootCmd(), "test", "--bless", dir)
	if err != nil {
		t.Fatalf("bless: unexpected error: %v", err)
	}
	if !strings.Contains(output, "1 blessed") {
		t.Errorf("bless output = %q", output)
	}

	output, err = executeCommand(newRootCmd(), "test", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, output)
	}
	if !strings.Contains(output, "1 passed, 0 failed") {
		t.Errorf("output = %q", output)
	}
}

func TestServeBackendsPlainDiagnostics(t *testing.T) {
	backends, err := serveBackends(config.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer backends.Close()

	s, err := backends.Session(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	result := s.Submit(context.Background(), "fun hello() {", session.ModeParse)
	if result.Error == nil {
		t.Fatal("expected compile error")
	}
	msg := result.Error.Error()
	if strings.Contains(msg, "\x1b") || strings.Contains(msg, "[31;1m") {
		t.Errorf("diagnostic should be plain text, got %q", msg)
	}
	if !strings.Contains(msg, "expected '}'") {
		t.Errorf("diagnostic = %q", msg)
	}

	// Program output keeps its colour.
	result = s.Submit(context.Background(), `print color("x", "red");`, session.ModeExecute)
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if !strings.Contains(result.Output, "\x1b[") {
		t.Errorf("color() output should keep ANSI codes, got %q", result.Output)
	}
}

func TestCompletionCommandExists(t *testing.T) {
	root := newRootCmd()
	root.InitDefaultCompletionCmd()
	for _, cmd := range root.Commands() {
		if cmd.Name() == "completion" {
			return
		}
	}
	t.Error("completion command not found")
}

// scriptedReader feeds fixed lines to the REPL loop.
type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) SetPrompt(p string) {
	r.prompts = append(r.prompts, p)
}

func TestReplLoop(t *testing.T) {
	var out, errOut bytes.Buffer
	cfg := config.Default()
	r := newRepl(cfg, false, &out, &errOut)
	defer r.close()

	reader := &scriptedReader{lines: []string{
		"var a = 1;",
		"a + 1;",
		"print a +\\",
		" 10;",
		":parse print a;",
		":bytecode print a;",
		"print nope;",
		"exit",
		"print 99;",
	}}
	if err := r.loop(context.Background(), reader); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{"2\n", "11\n", "Print @1:1", "OP_GET_GLOBAL"} {
		if !strings.Contains(got, want) {
			t.Errorf("output should contain %q, got %q", want, got)
		}
	}
	if strings.Contains(got, "99") {
		t.Error("loop should stop at exit")
	}
	if !strings.Contains(errOut.String(), "Error:") {
		t.Errorf("undefined variable should be reported, got %q", errOut.String())
	}
	if len(reader.prompts) != 2 || reader.prompts[0] != continuePrompt || reader.prompts[1] != prompt {
		t.Errorf("prompts = %q", reader.prompts)
	}
}

func TestReplLoopEOF(t *testing.T) {
	var out bytes.Buffer
	r := newRepl(config.Default(), false, &out, io.Discard)
	defer r.close()

	if err := r.loop(context.Background(), &scriptedReader{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReplTimeout(t *testing.T) {
	var errOut bytes.Buffer
	cfg := config.Default()
	cfg.Timeout = 50 * time.Millisecond
	r := newRepl(cfg, false, io.Discard, &errOut)
	defer r.close()

	if err := r.loop(context.Background(), &scriptedReader{lines: []string{"while (true) {}"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(errOut.String(), "timed out") {
		t.Errorf("expected timeout, got %q", errOut.String())
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.lox")
	if err := os.WriteFile(path, []byte("print 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 10*time.Millisecond, slog.New(slog.DiscardHandler), func() error {
			changes <- struct{}{}
			return nil
		})
	}()

	// Writes to other files in the directory are ignored.
	other := filepath.Join(dir, "other.lox")

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-changes:
			break loop
		case <-tick.C:
			_ = os.WriteFile(other, []byte("print 3;"), 0o644)
			_ = os.WriteFile(path, []byte("print 2;"), 0o644)
		case <-deadline:
			t.Fatal("no change reported")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("watchFile returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not stop")
	}
}
