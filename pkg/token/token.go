// Package token defines the lexical tokens of the wew language.
package token

import "fmt"

// Type represents the type of a lexical token.
type Type int32

const (
	// Special tokens
	EOF Type = iota
	ILLEGAL

	// Literals
	IDENT  // identifier
	INT    // 123, 0xFF
	CHAR   // 'a'
	STRING // "hello"

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	AMP      // &
	PIPE     // |
	CARET    // ^
	TILDE    // ~
	BANG     // !
	ASSIGN   // =
	EQ       // ==
	NE       // !=
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	SHL      // <<
	SHR      // >>
	LOR      // ||
	LAND     // &&
	INC      // ++
	DEC      // --
	COLONCOL // :: (extending cast)
	AT       // @  (reinterpret cast, array length)
	ARROW    // ->
	WALRUS   // :=
	COLON    // :
	SEMI     // ;
	COMMA    // ,
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]

	// Keywords
	FN
	VAR
	RETURN
	IF
	ELIF
	ELSE
	WHILE
)

var keywords = map[string]Type{
	"fn":     FN,
	"var":    VAR,
	"return": RETURN,
	"if":     IF,
	"elif":   ELIF,
	"else":   ELSE,
	"while":  WHILE,
}

// LookupIdent returns the keyword token type for ident, or IDENT.
func LookupIdent(ident string) Type {
	if t, ok := keywords[ident]; ok {
		return t
	}
	return IDENT
}

var names = map[Type]string{
	EOF:      "EOF",
	ILLEGAL:  "ILLEGAL",
	IDENT:    "IDENT",
	INT:      "INT",
	CHAR:     "CHAR",
	STRING:   "STRING",
	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	AMP:      "&",
	PIPE:     "|",
	CARET:    "^",
	TILDE:    "~",
	BANG:     "!",
	ASSIGN:   "=",
	EQ:       "==",
	NE:       "!=",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	SHL:      "<<",
	SHR:      ">>",
	LOR:      "||",
	LAND:     "&&",
	INC:      "++",
	DEC:      "--",
	COLONCOL: "::",
	AT:       "@",
	ARROW:    "->",
	WALRUS:   ":=",
	COLON:    ":",
	SEMI:     ";",
	COMMA:    ",",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACE:   "{",
	RBRACE:   "}",
	LBRACKET: "[",
	RBRACKET: "]",
	FN:       "fn",
	VAR:      "var",
	RETURN:   "return",
	IF:       "if",
	ELIF:     "elif",
	ELSE:     "else",
	WHILE:    "while",
}

// String returns a human-readable name for the token type.
func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// Token is a lexical token with its literal text and source position.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %s", t.Type, t.Literal, t.Pos)
}
