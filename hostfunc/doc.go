// Package hostfunc provides the Go-implemented builtins that guest Lox
// programs can call.
//
// # Overview
//
// Guest code has no implicit access to the host. Every builtin is a [Func]
// registered by name on a [Registry]; the Lox backend turns each entry into
// a global native function.
//
// # Registry
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("twice", func(ctx context.Context, args []any) (any, error) {
//	    n, _ := args[0].(float64)
//	    return n * 2, nil
//	})
//
// # Built-in Functions
//
// [RegisterBuiltins] installs clock, color, str and len. The color builtin
// wraps text in ANSI SGR sequences, which the playground renders as styled
// HTML.
//
// Key-Value Store: per-session storage via [KV] and [KVConfig].
//
//	kv := hostfunc.NewKV(hostfunc.DefaultKVConfig())
//	kv.Register(registry)
//
// All builtins validate their argument lists and fail with [ArgError].
package hostfunc
