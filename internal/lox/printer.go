package lox

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTree renders statements as an indented syntax tree, one node per
// line:
//
//	Print @1:1
//	  Binary '+' @1:9
//	    Literal 1 @1:7
//	    Literal 2 @1:11
func FormatTree(stmts []Stmt) string {
	p := &treePrinter{}
	for _, s := range stmts {
		p.stmt(s)
	}
	return p.b.String()
}

// FormatTokens renders a token stream one token per line:
//
//	'print' @1:1
//	number "1" @1:7
func FormatTokens(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		fmt.Fprintf(&b, "%s @%d:%d\n", t, t.Pos.Line, t.Pos.Column)
	}
	return b.String()
}

type treePrinter struct {
	b     strings.Builder
	depth int
}

func (p *treePrinter) line(pos Pos, format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", p.depth))
	fmt.Fprintf(&p.b, format, args...)
	fmt.Fprintf(&p.b, " @%d:%d\n", pos.Line, pos.Column)
}

func (p *treePrinter) label(text string) {
	p.b.WriteString(strings.Repeat("  ", p.depth))
	p.b.WriteString(text)
	p.b.WriteByte('\n')
}

func (p *treePrinter) nested(fn func()) {
	p.depth++
	fn()
	p.depth--
}

func (p *treePrinter) stmt(s Stmt) {
	switch s := s.(type) {
	case *ExprStmt:
		p.line(s.Position(), "Expression")
		p.nested(func() { p.expr(s.Expr) })
	case *PrintStmt:
		p.line(s.Keyword.Pos, "Print")
		p.nested(func() { p.expr(s.Expr) })
	case *VarStmt:
		p.line(s.Name.Pos, "Var %s", s.Name.Lexeme)
		if s.Init != nil {
			p.nested(func() { p.expr(s.Init) })
		}
	case *BlockStmt:
		p.line(s.Pos, "Block")
		p.nested(func() {
			for _, inner := range s.Stmts {
				p.stmt(inner)
			}
		})
	case *IfStmt:
		p.line(s.Keyword.Pos, "If")
		p.nested(func() {
			p.expr(s.Cond)
			p.label("then:")
			p.nested(func() { p.stmt(s.Then) })
			if s.Else != nil {
				p.label("else:")
				p.nested(func() { p.stmt(s.Else) })
			}
		})
	case *WhileStmt:
		p.line(s.Keyword.Pos, "While")
		p.nested(func() {
			p.expr(s.Cond)
			p.stmt(s.Body)
		})
	case *FunStmt:
		params := make([]string, len(s.Params))
		for i, t := range s.Params {
			params[i] = t.Lexeme
		}
		p.line(s.Name.Pos, "Fun %s(%s)", s.Name.Lexeme, strings.Join(params, ", "))
		p.nested(func() {
			for _, inner := range s.Body {
				p.stmt(inner)
			}
		})
	case *ReturnStmt:
		p.line(s.Keyword.Pos, "Return")
		if s.Value != nil {
			p.nested(func() { p.expr(s.Value) })
		}
	}
}

func (p *treePrinter) expr(e Expr) {
	switch e := e.(type) {
	case *LiteralExpr:
		if s, ok := e.Value.(string); ok {
			p.line(e.Pos, "Literal %s", strconv.Quote(s))
		} else {
			p.line(e.Pos, "Literal %s", FormatValue(e.Value))
		}
	case *GroupingExpr:
		p.line(e.Pos, "Grouping")
		p.nested(func() { p.expr(e.Expr) })
	case *UnaryExpr:
		p.line(e.Op.Pos, "Unary '%s'", e.Op.Lexeme)
		p.nested(func() { p.expr(e.Right) })
	case *BinaryExpr:
		p.line(e.Op.Pos, "Binary '%s'", e.Op.Lexeme)
		p.nested(func() {
			p.expr(e.Left)
			p.expr(e.Right)
		})
	case *LogicalExpr:
		p.line(e.Op.Pos, "Logical '%s'", e.Op.Lexeme)
		p.nested(func() {
			p.expr(e.Left)
			p.expr(e.Right)
		})
	case *VariableExpr:
		p.line(e.Name.Pos, "Variable %s", e.Name.Lexeme)
	case *AssignExpr:
		p.line(e.Name.Pos, "Assign %s", e.Name.Lexeme)
		p.nested(func() { p.expr(e.Value) })
	case *CallExpr:
		p.line(e.Paren.Pos, "Call")
		p.nested(func() {
			p.expr(e.Callee)
			for _, a := range e.Args {
				p.expr(a)
			}
		})
	}
}
