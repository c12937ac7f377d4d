// Package golden checks Lox programs against expectation files.
//
// For a program dir/name.lox the expectations live in dir/name/:
//
//	token       the token stream, one token per line
//	syntax      the syntax tree (parsed with error recovery)
//	diagnostic  compile diagnostics, without colour
//	bytecode    the disassembly, empty when compilation fails
//	output      what the program printed, followed by any runtime error
//
// A program containing a line that starts with "// ignore" is skipped.
// With Bless set, expectation files are rewritten instead of compared.
package golden

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caffeineduck/loxpad/internal/lox"
	loxbackend "github.com/caffeineduck/loxpad/language/lox"
	"github.com/caffeineduck/loxpad/session"
)

// Expectation file names, in the order they are checked.
var Files = []string{"token", "syntax", "diagnostic", "bytecode", "output"}

// Status is the outcome of one case.
type Status int

const (
	Passed Status = iota
	Failed
	Ignored
	Blessed
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "ok"
	case Failed:
		return "FAILED"
	case Ignored:
		return "ignored"
	case Blessed:
		return "blessed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Case is one Lox program under test.
type Case struct {
	// Path is the .lox file.
	Path string
	// Dir holds the expectation files.
	Dir    string
	Source string
}

// Name is the file name without its extension.
func (c Case) Name() string {
	return strings.TrimSuffix(filepath.Base(c.Path), ".lox")
}

// Mismatch is one expectation file whose content differs.
type Mismatch struct {
	File string
	Want string
	Got  string
}

// Result is the outcome of running one case.
type Result struct {
	Case       Case
	Status     Status
	Mismatches []Mismatch
	Duration   time.Duration
}

// Load returns the case for a single .lox file.
func Load(path string) (Case, error) {
	if filepath.Ext(path) != ".lox" {
		return Case{}, fmt.Errorf("expected a .lox file, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Case{}, err
	}
	return Case{
		Path:   path,
		Dir:    strings.TrimSuffix(path, ".lox"),
		Source: string(data),
	}, nil
}

// List returns the cases at path: the file itself, or every .lox file
// directly inside a directory, sorted by name.
func List(path string) ([]Case, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		c, err := Load(path)
		if err != nil {
			return nil, err
		}
		return []Case{c}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var cases []Case
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lox" {
			continue
		}
		c, err := Load(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Path < cases[j].Path })
	return cases, nil
}

// Runner runs cases.
type Runner struct {
	Bless   bool
	Timeout time.Duration
}

// Run checks one case, or rewrites its expectations when blessing.
func (r *Runner) Run(ctx context.Context, c Case) (Result, error) {
	start := time.Now()
	result := Result{Case: c}
	if ignored(c.Source) {
		result.Status = Ignored
		return result, nil
	}

	got, err := r.Actual(ctx, c)
	if err != nil {
		return result, err
	}

	if r.Bless {
		if err := os.MkdirAll(c.Dir, 0o755); err != nil {
			return result, err
		}
		for _, name := range Files {
			if err := os.WriteFile(filepath.Join(c.Dir, name), []byte(got[name]), 0o644); err != nil {
				return result, err
			}
		}
		result.Status = Blessed
		result.Duration = time.Since(start)
		return result, nil
	}

	for _, name := range Files {
		want, err := os.ReadFile(filepath.Join(c.Dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return result, err
		}
		if string(want) != got[name] {
			result.Mismatches = append(result.Mismatches, Mismatch{File: name, Want: string(want), Got: got[name]})
		}
	}
	result.Status = Passed
	if len(result.Mismatches) > 0 {
		result.Status = Failed
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Actual produces the content of every expectation file for c.
func (r *Runner) Actual(ctx context.Context, c Case) (map[string]string, error) {
	got := make(map[string]string, len(Files))
	file := filepath.Base(c.Path)

	tokens, _ := lox.Lex(c.Source)
	got["token"] = lox.FormatTokens(tokens)

	stmts, diags := lox.Parse(c.Source)
	got["syntax"] = lox.FormatTree(stmts)

	if len(diags) == 0 {
		if _, err := lox.CompileAST(file, stmts); err != nil {
			var cerr *lox.CompileError
			if !errors.As(err, &cerr) {
				return nil, err
			}
			diags = cerr.Diagnostics
		}
	}
	if len(diags) > 0 {
		got["diagnostic"] = lox.FormatDiagnostics(file, c.Source, diags, lox.FormatOptions{})
	}

	s := session.New(
		loxbackend.New(loxbackend.WithFile(file)),
		session.WithTimeout(r.Timeout),
		session.WithPartialOutput(true),
	)
	defer s.Close()

	s.SetSource(c.Source)
	if bc := s.Bytecode(ctx); bc.Error == nil {
		got["bytecode"] = bc.Output
	}
	if len(diags) == 0 {
		exec := s.Execute(ctx)
		out := exec.Output
		if exec.Error != nil {
			if !session.IsGuestError(exec.Error) {
				return nil, exec.Error
			}
			out += "error: " + strings.TrimRight(exec.Error.Error(), "\n") + "\n"
		}
		got["output"] = out
	}
	return got, nil
}

func ignored(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "// ignore") {
			return true
		}
	}
	return false
}
