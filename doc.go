// Package loxpad is a playground and toolchain for the Lox language.
//
// # Overview
//
// A [session.Session] owns one compiler backend and the source it last
// received. It parses, disassembles or runs that source on request, with a
// timeout and an output limit. Two backends implement [session.Backend]:
// the in-process VM in language/lox, and language/wasm, which drives an
// external WASI module over a line protocol.
//
// A [playground.Controller] connects an editor, a session and a display:
// it reads the editor text, runs it in the requested mode, and shows either
// the output rendered from ANSI styling into HTML by [render] or plain
// error text.
//
// # Basic Usage
//
//	s := session.New(lox.New(), session.WithTimeout(5*time.Second))
//	defer s.Close()
//
//	result := s.Submit(ctx, `print "hello";`, session.ModeExecute)
//	fmt.Print(result.Output) // hello
//
//	// The source is kept, so other modes need no resubmission.
//	fmt.Print(s.Bytecode(ctx).Output)
//
// # Browser Playground
//
//	ctrl := playground.New(playground.StaticText(src), s, display,
//	    playground.WithRenderer(render.New()))
//	result, err := ctrl.Handle(ctx, session.ModeExecute)
//
// The loxpad command serves the playground over HTTP, runs files, offers a
// REPL, checks golden tests and speaks the Language Server Protocol.
package loxpad
