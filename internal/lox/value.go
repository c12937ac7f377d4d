package lox

import (
	"context"
	"strconv"
)

// Value is a Lox runtime value: nil, bool, float64, string, *Function or
// *Native.
type Value = any

// Function is a compiled Lox function. The top-level script is a Function
// with an empty Name.
type Function struct {
	Name  string
	Arity int
	Chunk Chunk
}

func (f *Function) String() string {
	if f.Name == "" {
		return "<script>"
	}
	return "<fn " + f.Name + ">"
}

// NativeFunc implements a built-in. The context is the one passed to
// VM.Run.
type NativeFunc func(ctx context.Context, args []Value) (Value, error)

// Native is a built-in function. Arity -1 accepts any argument count.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFunc
}

func (n *Native) String() string {
	return "<native fn " + n.Name + ">"
}

// FormatValue renders a value the way 'print' does.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return FormatNumber(v)
	case string:
		return v
	case *Function:
		return v.String()
	case *Native:
		return v.String()
	}
	return "<unknown>"
}

// FormatNumber prints integral numbers without a fractional part.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// TypeName names the dynamic type of v for error messages.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *Function, *Native:
		return "function"
	}
	return "unknown"
}

func isFalsey(v Value) bool {
	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	}
	return false
}

func valuesEqual(a, b Value) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && a == bv
	case float64:
		bv, ok := b.(float64)
		return ok && a == bv
	case string:
		bv, ok := b.(string)
		return ok && a == bv
	case *Function:
		bv, ok := b.(*Function)
		return ok && a == bv
	case *Native:
		bv, ok := b.(*Native)
		return ok && a == bv
	}
	return false
}
