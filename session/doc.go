// Package session provides the compiler session behind the Lox
// playground.
//
// # Overview
//
// A [Session] owns one [Backend] and the most recently set source text.
// Three modes operate on that source: [ModeExecute] runs the program,
// [ModeParse] renders its syntax tree and [ModeBytecode] renders its
// compiled form.
//
// # Basic Usage
//
//	s := session.New(lox.New(), session.WithTimeout(5*time.Second))
//	defer s.Close()
//
//	result := s.Submit(ctx, `print "hello lox!";`, session.ModeExecute)
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
//	fmt.Print(result.Output) // hello lox!
//
// # Errors
//
// Invalid source fails every mode with [*CompileError] and executes
// nothing. A program that fails while running returns [*RuntimeError].
// A call that exceeds the session timeout fails with a RuntimeError
// wrapping [ErrTimeout]. A failed call has empty output unless the session
// was created with [WithPartialOutput].
//
// # Concurrency
//
// Calls on one Session are serialized. [Session.Submit] sets the source
// and runs a mode under the same lock, so concurrent submissions never
// interleave. Use one Session per user.
package session
