// Package render turns terminal-styled program output into HTML that can be
// assigned to innerHTML without further escaping.
//
// # Overview
//
// Guest programs may emit ANSI SGR escape sequences (ESC [ ... m) to colour
// their output. [Render] escapes every character of the text and maps each
// styled run to a <span style="..."> element. Line breaks become <br/>.
// Sequences that are not well-formed SGR are not interpreted: their ESC
// byte is dropped and the remaining characters are shown as text.
//
//	frag := render.Render("\x1b[1;31merror\x1b[0m: oops\n")
//	// <span style="color:#A00;font-weight:bold">error</span>: oops<br/>
//
// Supported attributes are bold, faint, italic, underline, strikethrough,
// inverse and hidden, the 16 standard and bright colours, xterm 256-colour
// (38;5;n / 48;5;n) and 24-bit colour (38;2;r;g;b / 48;2;r;g;b).
//
// [Literal] escapes text without any interpretation and is used for error
// reports. [Strip] returns the plain text a fragment would display.
package render
