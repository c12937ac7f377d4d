// Package wasm runs a Lox toolchain compiled to WebAssembly (WASI preview 1)
// as a session backend.
//
// # Overview
//
// A [Runtime] wraps a wazero runtime with a compiled-module cache and an
// optional on-disk compilation cache. A [Backend] keeps one module
// instance alive and drives it with line-delimited JSON commands on stdin:
//
//	{"type":"set_source","source":"print 1;"}
//	{"type":"parse"}
//	{"type":"bytecode"}
//	{"type":"execute"}
//
// The module writes program output to stdout and stderr and completes
// every command with a signal on stderr:
//
//	\x00LOX_READY\x00              once, after startup
//	\x00LOX_DONE\x00               command succeeded
//	\x00LOX_ERROR:<kind>:<msg>\x00 command failed; kind is compile or runtime
//
// Guests may call host functions (see [github.com/caffeineduck/loxpad/hostfunc])
// by writing \x00LOX_CALL:{"id":..,"fn":..,"args":[..]}\x00 and reading one
// JSON response line from stdin.
//
// # Usage
//
//	rt, err := wasm.NewRuntime(wasm.WithDiskCache())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	mod, err := wasm.LoadModule("lox.wasm")
//	...
//	backend, err := wasm.New(rt, mod)
//	s := session.New(backend)
//
// When a call's context ends, the instance is terminated and the next call
// starts a fresh one.
package wasm
