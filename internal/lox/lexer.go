package lox

import (
	"fmt"
	"unicode/utf8"
)

type lexer struct {
	src    string
	start  int
	offset int
	pos    Pos
	begin  Pos

	tokens []Token
	diags  []Diagnostic
}

// Lex splits source into tokens. Lexical errors are reported as
// diagnostics; the token stream always ends with TokenEOF.
func Lex(src string) ([]Token, []Diagnostic) {
	l := &lexer{src: src, pos: Pos{Line: 1, Column: 1}}
	l.run()
	return l.tokens, l.diags
}

func (l *lexer) run() {
	for {
		l.skipTrivia()
		l.start = l.offset
		l.begin = l.pos
		if l.atEnd() {
			l.tokens = append(l.tokens, Token{Kind: TokenEOF, Pos: l.pos})
			return
		}
		l.scan()
	}
}

func (l *lexer) scan() {
	r := l.next()
	switch {
	case isAlpha(r):
		for isAlpha(l.peek()) || isDigit(l.peek()) {
			l.next()
		}
		text := l.src[l.start:l.offset]
		if kind, ok := Keywords[text]; ok {
			l.emit(kind)
		} else {
			l.emit(TokenIdentifier)
		}
		return
	case isDigit(r):
		l.number()
		return
	}

	switch r {
	case '(':
		l.emit(TokenLeftParen)
	case ')':
		l.emit(TokenRightParen)
	case '{':
		l.emit(TokenLeftBrace)
	case '}':
		l.emit(TokenRightBrace)
	case ',':
		l.emit(TokenComma)
	case '.':
		l.emit(TokenDot)
	case '-':
		l.emit(TokenMinus)
	case '+':
		l.emit(TokenPlus)
	case ';':
		l.emit(TokenSemicolon)
	case '/':
		l.emit(TokenSlash)
	case '*':
		l.emit(TokenStar)
	case '!':
		l.emit(l.pick('=', TokenBangEqual, TokenBang))
	case '=':
		l.emit(l.pick('=', TokenEqualEqual, TokenEqual))
	case '<':
		l.emit(l.pick('=', TokenLessEqual, TokenLess))
	case '>':
		l.emit(l.pick('=', TokenGreaterEqual, TokenGreater))
	case '"':
		l.string()
	default:
		l.errorf(l.begin, "unexpected character %q", r)
	}
}

func (l *lexer) string() {
	for !l.atEnd() && l.peek() != '"' {
		l.next()
	}
	if l.atEnd() {
		l.errorf(l.begin, "unterminated string")
		return
	}
	l.next()
	l.tokens = append(l.tokens, Token{
		Kind:   TokenString,
		Lexeme: l.src[l.start+1 : l.offset-1],
		Pos:    l.begin,
	})
}

func (l *lexer) number() {
	for isDigit(l.peek()) {
		l.next()
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.next()
		for isDigit(l.peek()) {
			l.next()
		}
	}
	l.emit(TokenNumber)
}

func (l *lexer) skipTrivia() {
	for !l.atEnd() {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.next()
		case '/':
			if l.peekNext() != '/' {
				return
			}
			for !l.atEnd() && l.peek() != '\n' {
				l.next()
			}
		default:
			return
		}
	}
}

func (l *lexer) pick(want rune, yes, no TokenKind) TokenKind {
	if l.peek() == want {
		l.next()
		return yes
	}
	return no
}

func (l *lexer) emit(kind TokenKind) {
	l.tokens = append(l.tokens, Token{Kind: kind, Lexeme: l.src[l.start:l.offset], Pos: l.begin})
}

func (l *lexer) errorf(pos Pos, format string, args ...any) {
	l.diags = append(l.diags, Diagnostic{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (l *lexer) atEnd() bool {
	return l.offset >= len(l.src)
}

func (l *lexer) next() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.offset:])
	l.offset += size
	if r == '\n' {
		l.pos.Line++
		l.pos.Column = 1
	} else {
		l.pos.Column++
	}
	return r
}

func (l *lexer) peek() rune {
	if l.atEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.offset:])
	return r
}

func (l *lexer) peekNext() rune {
	if l.atEnd() {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.src[l.offset:])
	if l.offset+size >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.offset+size:])
	return r
}

func isAlpha(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
