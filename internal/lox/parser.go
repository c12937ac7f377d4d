package lox

import (
	"fmt"
	"strconv"
)

// MaxArgs bounds parameters per function and arguments per call.
const MaxArgs = 255

type parser struct {
	tokens  []Token
	current int
	diags   []Diagnostic
}

// bailout unwinds the parser to the nearest declaration boundary.
type bailout struct{}

// Parse lexes and parses src. All lexical and syntax diagnostics are
// collected; the returned statements are whatever parsed cleanly.
func Parse(src string) ([]Stmt, []Diagnostic) {
	tokens, diags := Lex(src)
	p := &parser{tokens: tokens, diags: diags}
	var stmts []Stmt
	for !p.check(TokenEOF) {
		if s := p.declarationSafe(); s != nil {
			stmts = append(stmts, s)
		}
	}
	sortDiagnostics(p.diags)
	return stmts, p.diags
}

// ParseFile is Parse with diagnostics folded into a *CompileError.
func ParseFile(file, src string) ([]Stmt, error) {
	stmts, diags := Parse(src)
	if len(diags) > 0 {
		return nil, &CompileError{File: file, Diagnostics: diags}
	}
	return stmts, nil
}

func (p *parser) declarationSafe() (stmt Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.synchronize()
			stmt = nil
		}
	}()
	return p.declaration()
}

func (p *parser) declaration() Stmt {
	switch {
	case p.match(TokenFun):
		return p.function()
	case p.match(TokenVar):
		return p.varDeclaration()
	case p.check(TokenClass):
		p.fail(p.peek(), "classes are not supported")
	}
	return p.statement()
}

func (p *parser) function() Stmt {
	name := p.consume(TokenIdentifier, "expected function name")
	p.consume(TokenLeftParen, "expected '(' after function name")
	var params []Token
	if !p.check(TokenRightParen) {
		for {
			if len(params) >= MaxArgs {
				p.report(p.peek(), fmt.Sprintf("can't have more than %d parameters", MaxArgs))
			}
			params = append(params, p.consume(TokenIdentifier, "expected parameter name"))
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.consume(TokenRightParen, "expected ')' after parameters")
	p.consume(TokenLeftBrace, "expected '{' before function body")
	body := p.block()
	return &FunStmt{Name: name, Params: params, Body: body}
}

func (p *parser) varDeclaration() Stmt {
	name := p.consume(TokenIdentifier, "expected variable name")
	var init Expr
	if p.match(TokenEqual) {
		init = p.expression()
	}
	p.consume(TokenSemicolon, "expected ';' after variable declaration")
	return &VarStmt{Name: name, Init: init}
}

func (p *parser) statement() Stmt {
	switch {
	case p.match(TokenPrint):
		kw := p.previous()
		value := p.expression()
		p.consume(TokenSemicolon, "expected ';' after value")
		return &PrintStmt{Keyword: kw, Expr: value}
	case p.match(TokenLeftBrace):
		pos := p.previous().Pos
		return &BlockStmt{Pos: pos, Stmts: p.block()}
	case p.match(TokenIf):
		return p.ifStatement()
	case p.match(TokenWhile):
		kw := p.previous()
		p.consume(TokenLeftParen, "expected '(' after 'while'")
		cond := p.expression()
		p.consume(TokenRightParen, "expected ')' after condition")
		return &WhileStmt{Keyword: kw, Cond: cond, Body: p.statement()}
	case p.match(TokenFor):
		return p.forStatement()
	case p.match(TokenReturn):
		kw := p.previous()
		var value Expr
		if !p.check(TokenSemicolon) {
			value = p.expression()
		}
		p.consume(TokenSemicolon, "expected ';' after return value")
		return &ReturnStmt{Keyword: kw, Value: value}
	}
	expr := p.expression()
	p.consume(TokenSemicolon, "expected ';' after expression")
	return &ExprStmt{Expr: expr}
}

func (p *parser) ifStatement() Stmt {
	kw := p.previous()
	p.consume(TokenLeftParen, "expected '(' after 'if'")
	cond := p.expression()
	p.consume(TokenRightParen, "expected ')' after if condition")
	then := p.statement()
	var els Stmt
	if p.match(TokenElse) {
		els = p.statement()
	}
	return &IfStmt{Keyword: kw, Cond: cond, Then: then, Else: els}
}

// forStatement desugars 'for' into an optional initializer followed by a
// while loop whose body runs the increment after the original body.
func (p *parser) forStatement() Stmt {
	kw := p.previous()
	p.consume(TokenLeftParen, "expected '(' after 'for'")

	var init Stmt
	switch {
	case p.match(TokenSemicolon):
	case p.match(TokenVar):
		init = p.varDeclaration()
	default:
		expr := p.expression()
		p.consume(TokenSemicolon, "expected ';' after loop initializer")
		init = &ExprStmt{Expr: expr}
	}

	var cond Expr
	if !p.check(TokenSemicolon) {
		cond = p.expression()
	}
	p.consume(TokenSemicolon, "expected ';' after loop condition")

	var incr Expr
	if !p.check(TokenRightParen) {
		incr = p.expression()
	}
	p.consume(TokenRightParen, "expected ')' after for clauses")

	body := p.statement()
	if incr != nil {
		body = &BlockStmt{Pos: body.Position(), Stmts: []Stmt{body, &ExprStmt{Expr: incr}}}
	}
	if cond == nil {
		cond = &LiteralExpr{Pos: kw.Pos, Value: true}
	}
	var loop Stmt = &WhileStmt{Keyword: kw, Cond: cond, Body: body}
	if init != nil {
		loop = &BlockStmt{Pos: kw.Pos, Stmts: []Stmt{init, loop}}
	}
	return loop
}

func (p *parser) block() []Stmt {
	var stmts []Stmt
	for !p.check(TokenRightBrace) && !p.check(TokenEOF) {
		if s := p.declarationSafe(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.consume(TokenRightBrace, "expected '}' after block")
	return stmts
}

func (p *parser) expression() Expr {
	return p.assignment()
}

func (p *parser) assignment() Expr {
	expr := p.or()
	if p.match(TokenEqual) {
		equals := p.previous()
		value := p.assignment()
		if v, ok := expr.(*VariableExpr); ok {
			return &AssignExpr{Name: v.Name, Value: value}
		}
		p.report(equals, "invalid assignment target")
	}
	return expr
}

func (p *parser) or() Expr {
	expr := p.and()
	for p.match(TokenOr) {
		op := p.previous()
		expr = &LogicalExpr{Left: expr, Op: op, Right: p.and()}
	}
	return expr
}

func (p *parser) and() Expr {
	expr := p.equality()
	for p.match(TokenAnd) {
		op := p.previous()
		expr = &LogicalExpr{Left: expr, Op: op, Right: p.equality()}
	}
	return expr
}

func (p *parser) equality() Expr {
	return p.binary(p.comparison, TokenBangEqual, TokenEqualEqual)
}

func (p *parser) comparison() Expr {
	return p.binary(p.term, TokenGreater, TokenGreaterEqual, TokenLess, TokenLessEqual)
}

func (p *parser) term() Expr {
	return p.binary(p.factor, TokenMinus, TokenPlus)
}

func (p *parser) factor() Expr {
	return p.binary(p.unary, TokenSlash, TokenStar)
}

func (p *parser) binary(operand func() Expr, ops ...TokenKind) Expr {
	expr := operand()
	for p.match(ops...) {
		op := p.previous()
		expr = &BinaryExpr{Left: expr, Op: op, Right: operand()}
	}
	return expr
}

func (p *parser) unary() Expr {
	if p.match(TokenBang, TokenMinus) {
		op := p.previous()
		return &UnaryExpr{Op: op, Right: p.unary()}
	}
	return p.call()
}

func (p *parser) call() Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(TokenLeftParen):
			expr = p.finishCall(expr)
		case p.check(TokenDot):
			p.fail(p.peek(), "properties are not supported")
		default:
			return expr
		}
	}
}

func (p *parser) finishCall(callee Expr) Expr {
	var args []Expr
	if !p.check(TokenRightParen) {
		for {
			if len(args) >= MaxArgs {
				p.report(p.peek(), fmt.Sprintf("can't have more than %d arguments", MaxArgs))
			}
			args = append(args, p.expression())
			if !p.match(TokenComma) {
				break
			}
		}
	}
	paren := p.consume(TokenRightParen, "expected ')' after arguments")
	return &CallExpr{Callee: callee, Paren: paren, Args: args}
}

func (p *parser) primary() Expr {
	tok := p.peek()
	switch tok.Kind {
	case TokenFalse:
		p.advance()
		return &LiteralExpr{Pos: tok.Pos, Value: false}
	case TokenTrue:
		p.advance()
		return &LiteralExpr{Pos: tok.Pos, Value: true}
	case TokenNil:
		p.advance()
		return &LiteralExpr{Pos: tok.Pos, Value: nil}
	case TokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.report(tok, "invalid number literal")
		}
		return &LiteralExpr{Pos: tok.Pos, Value: n}
	case TokenString:
		p.advance()
		return &LiteralExpr{Pos: tok.Pos, Value: tok.Lexeme}
	case TokenIdentifier:
		p.advance()
		return &VariableExpr{Name: tok}
	case TokenLeftParen:
		p.advance()
		expr := p.expression()
		p.consume(TokenRightParen, "expected ')' after expression")
		return &GroupingExpr{Pos: tok.Pos, Expr: expr}
	case TokenThis, TokenSuper:
		p.fail(tok, "classes are not supported")
	}
	p.fail(tok, "expected expression")
	return nil
}

// synchronize skips tokens until a likely statement boundary.
func (p *parser) synchronize() {
	p.advance()
	for !p.check(TokenEOF) {
		if p.previousIs(TokenSemicolon) {
			return
		}
		switch p.peek().Kind {
		case TokenClass, TokenFun, TokenVar, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
			return
		}
		p.advance()
	}
}

func (p *parser) consume(kind TokenKind, msg string) Token {
	if p.check(kind) {
		return p.advance()
	}
	p.fail(p.peek(), msg)
	return Token{}
}

func (p *parser) match(kinds ...TokenKind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *parser) advance() Token {
	tok := p.peek()
	if tok.Kind != TokenEOF {
		p.current++
	}
	return tok
}

func (p *parser) peek() Token {
	return p.tokens[p.current]
}

func (p *parser) previous() Token {
	return p.tokens[p.current-1]
}

func (p *parser) previousIs(kind TokenKind) bool {
	return p.current > 0 && p.tokens[p.current-1].Kind == kind
}

func (p *parser) report(tok Token, msg string) {
	if tok.Kind == TokenEOF {
		msg += " at end of input"
	} else {
		msg = fmt.Sprintf("%s, found %s", msg, tok)
	}
	p.diags = append(p.diags, Diagnostic{Pos: tok.Pos, Message: msg})
}

func (p *parser) fail(tok Token, msg string) {
	p.report(tok, msg)
	panic(bailout{})
}
