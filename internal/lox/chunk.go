package lox

import (
	"fmt"
	"io"
	"strings"
)

// OpCode is a VM instruction.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpReturn
)

var opNames = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpReturn:       "OP_RETURN",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}

// Instruction is one decoded operation. Arg is a constant index, local
// slot, argument count or absolute jump target depending on Op.
type Instruction struct {
	Op  OpCode
	Arg int
}

// Chunk is a function body: instructions, their source lines and a
// constant pool.
type Chunk struct {
	Code      []Instruction
	Lines     []int
	Constants []Value
}

func (c *Chunk) write(op OpCode, arg, line int) int {
	c.Code = append(c.Code, Instruction{Op: op, Arg: arg})
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

func (c *Chunk) addConstant(v Value) int {
	for i, existing := range c.Constants {
		if valuesEqual(existing, v) {
			return i
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Disassemble renders fn and every function nested in its constant pool,
// each under a "== name ==" header.
func Disassemble(fn *Function) string {
	var b strings.Builder
	d := &disassembler{w: &b, visited: make(map[*Function]bool)}
	d.function(fn)
	return b.String()
}

type disassembler struct {
	w       io.Writer
	visited map[*Function]bool
	printed bool
}

func (d *disassembler) function(fn *Function) {
	if d.visited[fn] {
		return
	}
	d.visited[fn] = true
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true

	fmt.Fprintf(d.w, "== %s ==\n", fn)
	c := &fn.Chunk
	for i, in := range c.Code {
		d.instruction(c, i, in)
	}
	for _, k := range c.Constants {
		if nested, ok := k.(*Function); ok {
			d.function(nested)
		}
	}
}

func (d *disassembler) instruction(c *Chunk, offset int, in Instruction) {
	fmt.Fprintf(d.w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(d.w, "   | ")
	} else {
		fmt.Fprintf(d.w, "%4d ", c.Lines[offset])
	}

	switch in.Op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		fmt.Fprintf(d.w, "%-16s %4d '%s'\n", in.Op, in.Arg, FormatValue(c.Constants[in.Arg]))
	case OpGetLocal, OpSetLocal, OpCall:
		fmt.Fprintf(d.w, "%-16s %4d\n", in.Op, in.Arg)
	case OpJump, OpJumpIfFalse, OpLoop:
		fmt.Fprintf(d.w, "%-16s %4d -> %d\n", in.Op, offset, in.Arg)
	default:
		fmt.Fprintf(d.w, "%s\n", in.Op)
	}
}
