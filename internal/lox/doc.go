// Package lox is the reference Lox toolchain behind the playground: a
// lexer, a recursive-descent parser, a bytecode compiler with a
// disassembler, and a stack VM that prints through a Kernel.
//
// Functions are first class but do not close over enclosing locals, and
// classes are rejected at parse time.
package lox
