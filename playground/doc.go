// Package playground wires an editor, a compiler session and an output
// display together.
//
// A [Controller] handles one user action at a time: it reads the editor,
// submits the text and mode to the session, and shows either rendered
// output (via [render.Render]) or the error message as literal text.
// Error messages never pass through the ANSI renderer.
//
//	c := playground.New(playground.StaticText(src), s, &playground.Recorder{})
//	result, err := c.Handle(ctx, session.ModeExecute)
package playground
