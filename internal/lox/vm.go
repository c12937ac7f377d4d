package lox

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultMaxFrames bounds call depth.
	DefaultMaxFrames = 256

	// checkInterval is how many instructions run between context checks.
	checkInterval = 1024
)

type frame struct {
	fn   *Function
	ip   int
	base int
}

// VM executes compiled functions. Globals persist across Run calls, so a
// single VM can back a REPL. A VM is not safe for concurrent use.
type VM struct {
	kernel    Kernel
	globals   map[string]Value
	stack     []Value
	frames    []frame
	maxFrames int
}

// NewVM creates a VM that prints through kernel and has natives defined as
// globals.
func NewVM(kernel Kernel, natives ...*Native) *VM {
	vm := &VM{
		kernel:    kernel,
		globals:   make(map[string]Value),
		maxFrames: DefaultMaxFrames,
	}
	for _, n := range natives {
		vm.Define(n)
	}
	return vm
}

// Define binds a native function as a global.
func (vm *VM) Define(n *Native) {
	vm.globals[n.Name] = n
}

// SetKernel replaces the print destination.
func (vm *VM) SetKernel(k Kernel) {
	vm.kernel = k
}

// SetMaxFrames overrides DefaultMaxFrames.
func (vm *VM) SetMaxFrames(n int) {
	if n > 0 {
		vm.maxFrames = n
	}
}

// Global returns the value of a global variable.
func (vm *VM) Global(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// Run executes a script function and returns its result. Failures are
// *RuntimeError; cancellation of ctx is reported as a RuntimeError
// wrapping ctx.Err().
func (vm *VM) Run(ctx context.Context, fn *Function) (result Value, err error) {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.push(fn)
	vm.frames = append(vm.frames, frame{fn: fn, base: 0})

	defer func() {
		if err != nil {
			vm.stack = vm.stack[:0]
			vm.frames = vm.frames[:0]
		}
	}()

	steps := 0
	for {
		steps++
		if steps%checkInterval == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return nil, vm.fail(cerr, "execution interrupted: %v", cerr)
			}
		}

		fr := &vm.frames[len(vm.frames)-1]
		in := fr.fn.Chunk.Code[fr.ip]
		fr.ip++

		switch in.Op {
		case OpConstant:
			vm.push(fr.fn.Chunk.Constants[in.Arg])
		case OpNil:
			vm.push(nil)
		case OpTrue:
			vm.push(true)
		case OpFalse:
			vm.push(false)
		case OpPop:
			vm.pop()
		case OpGetLocal:
			vm.push(vm.stack[fr.base+in.Arg])
		case OpSetLocal:
			vm.stack[fr.base+in.Arg] = vm.peek(0)
		case OpGetGlobal:
			name := fr.fn.Chunk.Constants[in.Arg].(string)
			v, ok := vm.globals[name]
			if !ok {
				return nil, vm.fail(nil, "undefined variable '%s'", name)
			}
			vm.push(v)
		case OpDefineGlobal:
			name := fr.fn.Chunk.Constants[in.Arg].(string)
			vm.globals[name] = vm.pop()
		case OpSetGlobal:
			name := fr.fn.Chunk.Constants[in.Arg].(string)
			if _, ok := vm.globals[name]; !ok {
				return nil, vm.fail(nil, "undefined variable '%s'", name)
			}
			vm.globals[name] = vm.peek(0)
		case OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(valuesEqual(a, b))
		case OpGreater, OpLess, OpSubtract, OpMultiply, OpDivide:
			b, ok1 := vm.peek(0).(float64)
			a, ok2 := vm.peek(1).(float64)
			if !ok1 || !ok2 {
				return nil, vm.fail(nil, "operands must be numbers")
			}
			vm.pop()
			vm.pop()
			switch in.Op {
			case OpGreater:
				vm.push(a > b)
			case OpLess:
				vm.push(a < b)
			case OpSubtract:
				vm.push(a - b)
			case OpMultiply:
				vm.push(a * b)
			case OpDivide:
				vm.push(a / b)
			}
		case OpAdd:
			switch b := vm.peek(0).(type) {
			case float64:
				a, ok := vm.peek(1).(float64)
				if !ok {
					return nil, vm.fail(nil, "operands must be two numbers or two strings")
				}
				vm.pop()
				vm.pop()
				vm.push(a + b)
			case string:
				a, ok := vm.peek(1).(string)
				if !ok {
					return nil, vm.fail(nil, "operands must be two numbers or two strings")
				}
				vm.pop()
				vm.pop()
				vm.push(a + b)
			default:
				return nil, vm.fail(nil, "operands must be two numbers or two strings")
			}
		case OpNot:
			vm.push(isFalsey(vm.pop()))
		case OpNegate:
			n, ok := vm.peek(0).(float64)
			if !ok {
				return nil, vm.fail(nil, "operand must be a number")
			}
			vm.pop()
			vm.push(-n)
		case OpPrint:
			if perr := vm.kernel.Print(FormatValue(vm.pop())); perr != nil {
				return nil, vm.fail(perr, "%v", perr)
			}
		case OpJump, OpLoop:
			fr.ip = in.Arg
		case OpJumpIfFalse:
			if isFalsey(vm.peek(0)) {
				fr.ip = in.Arg
			}
		case OpCall:
			if cerr := vm.call(ctx, in.Arg); cerr != nil {
				return nil, cerr
			}
		case OpReturn:
			ret := vm.pop()
			base := fr.base
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.stack = vm.stack[:0]
				return ret, nil
			}
			vm.stack = vm.stack[:base]
			vm.push(ret)
		default:
			return nil, vm.fail(nil, "unknown opcode %s", in.Op)
		}
	}
}

func (vm *VM) call(ctx context.Context, argc int) error {
	calleeAt := len(vm.stack) - 1 - argc
	switch callee := vm.stack[calleeAt].(type) {
	case *Function:
		if argc != callee.Arity {
			return vm.fail(nil, "expected %d arguments but got %d", callee.Arity, argc)
		}
		if len(vm.frames) >= vm.maxFrames {
			return vm.fail(nil, "stack overflow")
		}
		vm.frames = append(vm.frames, frame{fn: callee, base: calleeAt})
		return nil
	case *Native:
		if callee.Arity >= 0 && argc != callee.Arity {
			return vm.fail(nil, "expected %d arguments but got %d", callee.Arity, argc)
		}
		args := make([]Value, argc)
		copy(args, vm.stack[calleeAt+1:])
		ret, err := callee.Fn(ctx, args)
		if err != nil {
			var rerr *RuntimeError
			if errors.As(err, &rerr) {
				return rerr
			}
			return vm.fail(err, "%s: %v", callee.Name, err)
		}
		vm.stack = vm.stack[:calleeAt]
		vm.push(ret)
		return nil
	default:
		return vm.fail(nil, "can only call functions, not %s", TypeName(callee))
	}
}

// fail builds a RuntimeError located at the instruction just executed.
func (vm *VM) fail(cause error, format string, args ...any) *RuntimeError {
	err := &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		line := 0
		if ip := fr.ip - 1; ip >= 0 && ip < len(fr.fn.Chunk.Lines) {
			line = fr.fn.Chunk.Lines[ip]
		}
		err.Stack = append(err.Stack, FrameInfo{Function: fr.fn.Name, Line: line})
	}
	if len(err.Stack) > 0 {
		err.Line = err.Stack[0].Line
	}
	return err
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[len(vm.stack)-1-distance]
}
