package lox

import "fmt"

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenEOF TokenKind = iota

	// Single-character tokens.
	TokenLeftParen
	TokenRightParen
	TokenLeftBrace
	TokenRightBrace
	TokenComma
	TokenDot
	TokenMinus
	TokenPlus
	TokenSemicolon
	TokenSlash
	TokenStar

	// One or two character tokens.
	TokenBang
	TokenBangEqual
	TokenEqual
	TokenEqualEqual
	TokenGreater
	TokenGreaterEqual
	TokenLess
	TokenLessEqual

	// Literals.
	TokenIdentifier
	TokenString
	TokenNumber

	// Keywords.
	TokenAnd
	TokenClass
	TokenElse
	TokenFalse
	TokenFor
	TokenFun
	TokenIf
	TokenNil
	TokenOr
	TokenPrint
	TokenReturn
	TokenSuper
	TokenThis
	TokenTrue
	TokenVar
	TokenWhile
)

var tokenNames = [...]string{
	TokenEOF:          "end of input",
	TokenLeftParen:    "'('",
	TokenRightParen:   "')'",
	TokenLeftBrace:    "'{'",
	TokenRightBrace:   "'}'",
	TokenComma:        "','",
	TokenDot:          "'.'",
	TokenMinus:        "'-'",
	TokenPlus:         "'+'",
	TokenSemicolon:    "';'",
	TokenSlash:        "'/'",
	TokenStar:         "'*'",
	TokenBang:         "'!'",
	TokenBangEqual:    "'!='",
	TokenEqual:        "'='",
	TokenEqualEqual:   "'=='",
	TokenGreater:      "'>'",
	TokenGreaterEqual: "'>='",
	TokenLess:         "'<'",
	TokenLessEqual:    "'<='",
	TokenIdentifier:   "identifier",
	TokenString:       "string",
	TokenNumber:       "number",
	TokenAnd:          "'and'",
	TokenClass:        "'class'",
	TokenElse:         "'else'",
	TokenFalse:        "'false'",
	TokenFor:          "'for'",
	TokenFun:          "'fun'",
	TokenIf:           "'if'",
	TokenNil:          "'nil'",
	TokenOr:           "'or'",
	TokenPrint:        "'print'",
	TokenReturn:       "'return'",
	TokenSuper:        "'super'",
	TokenThis:         "'this'",
	TokenTrue:         "'true'",
	TokenVar:          "'var'",
	TokenWhile:        "'while'",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Keywords maps reserved words to their token kinds.
var Keywords = map[string]TokenKind{
	"and":    TokenAnd,
	"class":  TokenClass,
	"else":   TokenElse,
	"false":  TokenFalse,
	"for":    TokenFor,
	"fun":    TokenFun,
	"if":     TokenIf,
	"nil":    TokenNil,
	"or":     TokenOr,
	"print":  TokenPrint,
	"return": TokenReturn,
	"super":  TokenSuper,
	"this":   TokenThis,
	"true":   TokenTrue,
	"var":    TokenVar,
	"while":  TokenWhile,
}

// Pos is a 1-based line and column (in runes) within a source file.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexeme with its kind and starting position.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Pos    Pos
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdentifier, TokenNumber, TokenString:
		return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
	}
	return t.Kind.String()
}
