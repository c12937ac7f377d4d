package lox

import "fmt"

type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
)

type local struct {
	name string
	// depth is -1 while the initializer is being compiled.
	depth int
}

type funcCompiler struct {
	enclosing  *funcCompiler
	fn         *Function
	kind       funcKind
	locals     []local
	scopeDepth int
}

type compiler struct {
	fc    *funcCompiler
	diags []Diagnostic
}

// Compile parses and compiles src into the top-level script function.
// The script returns the value of its final statement when that statement
// is an expression statement, and nil otherwise.
func Compile(file, src string) (*Function, error) {
	stmts, diags := Parse(src)
	if len(diags) > 0 {
		return nil, &CompileError{File: file, Diagnostics: diags}
	}
	return CompileAST(file, stmts)
}

// CompileAST compiles already-parsed statements.
func CompileAST(file string, stmts []Stmt) (*Function, error) {
	c := &compiler{}
	c.begin(kindScript, "")

	returned := false
	for i, s := range stmts {
		if es, ok := s.(*ExprStmt); ok && i == len(stmts)-1 {
			c.expr(es.Expr)
			c.emit(OpReturn, 0, es.Position())
			returned = true
			continue
		}
		c.stmt(s)
	}
	if !returned {
		c.emitReturnNil(endPos(stmts))
	}

	fn := c.end()
	if len(c.diags) > 0 {
		sortDiagnostics(c.diags)
		return nil, &CompileError{File: file, Diagnostics: c.diags}
	}
	return fn, nil
}

func endPos(stmts []Stmt) Pos {
	if len(stmts) == 0 {
		return Pos{Line: 1, Column: 1}
	}
	return stmts[len(stmts)-1].Position()
}

func (c *compiler) begin(kind funcKind, name string) {
	fc := &funcCompiler{
		enclosing: c.fc,
		fn:        &Function{Name: name},
		kind:      kind,
	}
	// Slot zero holds the callee.
	fc.locals = append(fc.locals, local{name: "", depth: 0})
	c.fc = fc
}

func (c *compiler) end() *Function {
	fn := c.fc.fn
	c.fc = c.fc.enclosing
	return fn
}

func (c *compiler) chunk() *Chunk {
	return &c.fc.fn.Chunk
}

func (c *compiler) emit(op OpCode, arg int, pos Pos) int {
	return c.chunk().write(op, arg, pos.Line)
}

func (c *compiler) emitReturnNil(pos Pos) {
	c.emit(OpNil, 0, pos)
	c.emit(OpReturn, 0, pos)
}

func (c *compiler) emitConstant(v Value, pos Pos) {
	c.emit(OpConstant, c.chunk().addConstant(v), pos)
}

// patch points the jump at index i to the next instruction.
func (c *compiler) patch(i int) {
	c.chunk().Code[i].Arg = len(c.chunk().Code)
}

func (c *compiler) errorf(pos Pos, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (c *compiler) stmt(s Stmt) {
	switch s := s.(type) {
	case *ExprStmt:
		c.expr(s.Expr)
		c.emit(OpPop, 0, s.Position())
	case *PrintStmt:
		c.expr(s.Expr)
		c.emit(OpPrint, 0, s.Keyword.Pos)
	case *VarStmt:
		c.varStmt(s)
	case *BlockStmt:
		c.beginScope()
		for _, inner := range s.Stmts {
			c.stmt(inner)
		}
		c.endScope(s.Pos)
	case *IfStmt:
		c.expr(s.Cond)
		thenJump := c.emit(OpJumpIfFalse, -1, s.Keyword.Pos)
		c.emit(OpPop, 0, s.Keyword.Pos)
		c.stmt(s.Then)
		elseJump := c.emit(OpJump, -1, s.Keyword.Pos)
		c.patch(thenJump)
		c.emit(OpPop, 0, s.Keyword.Pos)
		if s.Else != nil {
			c.stmt(s.Else)
		}
		c.patch(elseJump)
	case *WhileStmt:
		loopStart := len(c.chunk().Code)
		c.expr(s.Cond)
		exit := c.emit(OpJumpIfFalse, -1, s.Keyword.Pos)
		c.emit(OpPop, 0, s.Keyword.Pos)
		c.stmt(s.Body)
		c.emit(OpLoop, loopStart, s.Keyword.Pos)
		c.patch(exit)
		c.emit(OpPop, 0, s.Keyword.Pos)
	case *FunStmt:
		c.funStmt(s)
	case *ReturnStmt:
		if c.fc.kind == kindScript {
			c.errorf(s.Keyword.Pos, "can't return from top-level code")
		}
		if s.Value == nil {
			c.emit(OpNil, 0, s.Keyword.Pos)
		} else {
			c.expr(s.Value)
		}
		c.emit(OpReturn, 0, s.Keyword.Pos)
	default:
		panic(fmt.Sprintf("lox: unexpected statement %T", s))
	}
}

func (c *compiler) varStmt(s *VarStmt) {
	if c.fc.scopeDepth > 0 {
		c.declareLocal(s.Name)
		if s.Init != nil {
			c.expr(s.Init)
		} else {
			c.emit(OpNil, 0, s.Name.Pos)
		}
		c.markInitialized()
		return
	}
	if s.Init != nil {
		c.expr(s.Init)
	} else {
		c.emit(OpNil, 0, s.Name.Pos)
	}
	c.emit(OpDefineGlobal, c.chunk().addConstant(s.Name.Lexeme), s.Name.Pos)
}

func (c *compiler) funStmt(s *FunStmt) {
	global := c.fc.scopeDepth == 0
	if !global {
		c.declareLocal(s.Name)
		c.markInitialized()
	}

	c.begin(kindFunction, s.Name.Lexeme)
	c.fc.fn.Arity = len(s.Params)
	c.beginScope()
	for _, p := range s.Params {
		c.declareLocal(p)
		c.markInitialized()
	}
	for _, inner := range s.Body {
		c.stmt(inner)
	}
	c.emitReturnNil(endPos(s.Body))
	fn := c.end()

	c.emitConstant(fn, s.Name.Pos)
	if global {
		c.emit(OpDefineGlobal, c.chunk().addConstant(s.Name.Lexeme), s.Name.Pos)
	}
}

func (c *compiler) beginScope() {
	c.fc.scopeDepth++
}

func (c *compiler) endScope(pos Pos) {
	fc := c.fc
	fc.scopeDepth--
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].depth > fc.scopeDepth {
		c.emit(OpPop, 0, pos)
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

func (c *compiler) declareLocal(name Token) {
	fc := c.fc
	for i := len(fc.locals) - 1; i >= 0; i-- {
		l := fc.locals[i]
		if l.depth != -1 && l.depth < fc.scopeDepth {
			break
		}
		if l.name == name.Lexeme {
			c.errorf(name.Pos, "already a variable named '%s' in this scope", name.Lexeme)
			return
		}
	}
	fc.locals = append(fc.locals, local{name: name.Lexeme, depth: -1})
}

func (c *compiler) markInitialized() {
	fc := c.fc
	if len(fc.locals) > 0 {
		fc.locals[len(fc.locals)-1].depth = fc.scopeDepth
	}
}

// resolve returns the slot of a local in the current function, or -1 for
// a global.
func (c *compiler) resolve(name Token) int {
	if slot, ok := findLocal(c.fc, name.Lexeme); ok {
		if c.fc.locals[slot].depth == -1 {
			c.errorf(name.Pos, "can't read local variable '%s' in its own initializer", name.Lexeme)
		}
		return slot
	}
	for fc := c.fc.enclosing; fc != nil; fc = fc.enclosing {
		if _, ok := findLocal(fc, name.Lexeme); ok {
			c.errorf(name.Pos, "can't capture local variable '%s' from an enclosing function", name.Lexeme)
			return -1
		}
	}
	return -1
}

func findLocal(fc *funcCompiler, name string) (int, bool) {
	for i := len(fc.locals) - 1; i > 0; i-- {
		if fc.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

func (c *compiler) expr(e Expr) {
	switch e := e.(type) {
	case *LiteralExpr:
		switch v := e.Value.(type) {
		case nil:
			c.emit(OpNil, 0, e.Pos)
		case bool:
			if v {
				c.emit(OpTrue, 0, e.Pos)
			} else {
				c.emit(OpFalse, 0, e.Pos)
			}
		default:
			c.emitConstant(v, e.Pos)
		}
	case *GroupingExpr:
		c.expr(e.Expr)
	case *UnaryExpr:
		c.expr(e.Right)
		if e.Op.Kind == TokenMinus {
			c.emit(OpNegate, 0, e.Op.Pos)
		} else {
			c.emit(OpNot, 0, e.Op.Pos)
		}
	case *BinaryExpr:
		c.expr(e.Left)
		c.expr(e.Right)
		c.binaryOp(e.Op)
	case *LogicalExpr:
		c.expr(e.Left)
		if e.Op.Kind == TokenAnd {
			end := c.emit(OpJumpIfFalse, -1, e.Op.Pos)
			c.emit(OpPop, 0, e.Op.Pos)
			c.expr(e.Right)
			c.patch(end)
			return
		}
		elseJump := c.emit(OpJumpIfFalse, -1, e.Op.Pos)
		end := c.emit(OpJump, -1, e.Op.Pos)
		c.patch(elseJump)
		c.emit(OpPop, 0, e.Op.Pos)
		c.expr(e.Right)
		c.patch(end)
	case *VariableExpr:
		if slot := c.resolve(e.Name); slot >= 0 {
			c.emit(OpGetLocal, slot, e.Name.Pos)
		} else {
			c.emit(OpGetGlobal, c.chunk().addConstant(e.Name.Lexeme), e.Name.Pos)
		}
	case *AssignExpr:
		c.expr(e.Value)
		if slot := c.resolve(e.Name); slot >= 0 {
			c.emit(OpSetLocal, slot, e.Name.Pos)
		} else {
			c.emit(OpSetGlobal, c.chunk().addConstant(e.Name.Lexeme), e.Name.Pos)
		}
	case *CallExpr:
		c.expr(e.Callee)
		for _, a := range e.Args {
			c.expr(a)
		}
		c.emit(OpCall, len(e.Args), e.Paren.Pos)
	default:
		panic(fmt.Sprintf("lox: unexpected expression %T", e))
	}
}

func (c *compiler) binaryOp(op Token) {
	pos := op.Pos
	switch op.Kind {
	case TokenPlus:
		c.emit(OpAdd, 0, pos)
	case TokenMinus:
		c.emit(OpSubtract, 0, pos)
	case TokenStar:
		c.emit(OpMultiply, 0, pos)
	case TokenSlash:
		c.emit(OpDivide, 0, pos)
	case TokenEqualEqual:
		c.emit(OpEqual, 0, pos)
	case TokenBangEqual:
		c.emit(OpEqual, 0, pos)
		c.emit(OpNot, 0, pos)
	case TokenGreater:
		c.emit(OpGreater, 0, pos)
	case TokenGreaterEqual:
		c.emit(OpLess, 0, pos)
		c.emit(OpNot, 0, pos)
	case TokenLess:
		c.emit(OpLess, 0, pos)
	case TokenLessEqual:
		c.emit(OpGreater, 0, pos)
		c.emit(OpNot, 0, pos)
	}
}
