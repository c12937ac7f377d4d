package lox

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muesli/termenv"
)

// Diagnostic is a compile-time problem at a source position.
type Diagnostic struct {
	Pos     Pos
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Pos.Line, d.Pos.Column, d.Message)
}

// CompileError reports that a source file could not be parsed or compiled.
// Diagnostics are ordered by position and never empty.
type CompileError struct {
	File        string
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	var b strings.Builder
	for i, d := range e.Diagnostics {
		if i > 0 {
			b.WriteByte('\n')
		}
		if e.File != "" {
			b.WriteString(e.File)
			b.WriteByte(':')
		}
		b.WriteString(d.String())
	}
	return b.String()
}

// First returns the first diagnostic.
func (e *CompileError) First() Diagnostic {
	if len(e.Diagnostics) == 0 {
		return Diagnostic{}
	}
	return e.Diagnostics[0]
}

// FrameInfo describes one call frame of a runtime error.
type FrameInfo struct {
	Function string
	Line     int
}

func (f FrameInfo) String() string {
	name := f.Function
	if name == "" {
		name = "script"
	} else {
		name += "()"
	}
	return fmt.Sprintf("[line %d] in %s", f.Line, name)
}

// RuntimeError carries the failing line and call stack of a VM failure.
type RuntimeError struct {
	Message string
	Line    int
	Stack   []FrameInfo
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// traceRepeats is how many identical consecutive frames Trace prints
// before folding the rest of the run into a count.
const traceRepeats = 3

// Trace renders the message followed by one line per frame, innermost first.
// Runs of identical frames, as left by deep recursion, are shortened:
//
//	stack overflow
//	[line 1] in f()
//	[line 1] in f()
//	[line 1] in f()
//	... 252 more
//	[line 1] in script
func (e *RuntimeError) Trace() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for i := 0; i < len(e.Stack); {
		j := i + 1
		for j < len(e.Stack) && e.Stack[j] == e.Stack[i] {
			j++
		}
		run := j - i
		for k := 0; k < min(run, traceRepeats); k++ {
			b.WriteByte('\n')
			b.WriteString(e.Stack[i].String())
		}
		if run > traceRepeats {
			fmt.Fprintf(&b, "\n... %d more", run-traceRepeats)
		}
		i = j
	}
	return b.String()
}

// FormatOptions controls FormatDiagnostics.
type FormatOptions struct {
	// Color emits ANSI SGR sequences.
	Color bool
}

// FormatDiagnostics renders diagnostics with the offending source line and
// a caret under the reported column:
//
//	error: expected ';' after value
//	  --> main.lox:2:9
//	   |
//	 2 | print 1
//	   |         ^
func FormatDiagnostics(file, src string, diags []Diagnostic, opts FormatOptions) string {
	lines := strings.Split(src, "\n")
	if file == "" {
		file = "input"
	}

	paint := func(s string, color string, bold bool) string {
		if !opts.Color {
			return s
		}
		style := termenv.String(s).Foreground(termenv.ANSI.Color(color))
		if bold {
			style = style.Bold()
		}
		return style.String()
	}

	var b strings.Builder
	for i, d := range diags {
		if i > 0 {
			b.WriteByte('\n')
		}
		gutter := len(fmt.Sprint(d.Pos.Line))
		pad := strings.Repeat(" ", gutter)

		b.WriteString(paint("error", "1", true))
		b.WriteString(paint(": "+d.Message, "15", true))
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s%s %s:%d:%d\n", pad, paint("-->", "4", true), file, d.Pos.Line, d.Pos.Column)

		if d.Pos.Line < 1 || d.Pos.Line > len(lines) {
			continue
		}
		text := strings.TrimRight(lines[d.Pos.Line-1], "\r")
		bar := paint("|", "4", true)
		fmt.Fprintf(&b, "%s %s\n", pad, bar)
		fmt.Fprintf(&b, "%s %s %s\n", paint(fmt.Sprint(d.Pos.Line), "4", true), bar, text)
		col := d.Pos.Column
		if col < 1 {
			col = 1
		}
		fmt.Fprintf(&b, "%s %s %s%s\n", pad, bar, strings.Repeat(" ", col-1), paint("^", "1", true))
	}
	return b.String()
}

func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Pos, diags[j].Pos
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}
