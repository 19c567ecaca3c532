package parser

import (
	"fmt"
	"strconv"

	"github.com/wewlang/wewc/pkg/token"
)

// Lexer tokenizes wew source text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// lastType is the type of the most recent token, used to decide
	// whether a line break separates statements.
	lastType token.Type

	err *LexError // first error encountered, if any
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// Err returns the first lexing error encountered, or nil.
func (l *Lexer) Err() error {
	if l.err == nil {
		return nil
	}
	return l.err
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token. A line break acts as a statement
// separator when the token before it can end a statement, so semicolons
// are only needed between statements on one line.
func (l *Lexer) NextToken() token.Token {
	tok := l.scan()
	l.lastType = tok.Type
	return tok
}

// endsStatement reports whether a token type may be the last token of a
// statement, making a following line break a separator.
func endsStatement(t token.Type) bool {
	switch t {
	case token.IDENT, token.INT, token.CHAR, token.STRING,
		token.RPAREN, token.RBRACKET, token.RBRACE,
		token.INC, token.DEC, token.PIPE, token.RETURN:
		return true
	}
	return false
}

func (l *Lexer) scan() token.Token {
	l.skipWhitespaceAndComments()

	if l.ch == '\n' {
		pos := l.currentPos()
		l.readChar()
		return token.Token{Type: token.SEMI, Literal: "\n", Pos: pos}
	}

	pos := l.currentPos()

	var tok token.Token
	tok.Pos = pos

	switch l.ch {
	case 0:
		tok.Type = token.EOF
		tok.Literal = ""
		return tok
	case '+':
		if l.peekChar() == '+' {
			l.readChar()
			tok = token.Token{Type: token.INC, Literal: "++", Pos: pos}
		} else {
			tok = l.newToken(token.PLUS, "+")
		}
	case '-':
		switch l.peekChar() {
		case '-':
			l.readChar()
			tok = token.Token{Type: token.DEC, Literal: "--", Pos: pos}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.ARROW, Literal: "->", Pos: pos}
		default:
			tok = l.newToken(token.MINUS, "-")
		}
	case '*':
		tok = l.newToken(token.STAR, "*")
	case '/':
		tok = l.newToken(token.SLASH, "/")
	case '~':
		tok = l.newToken(token.TILDE, "~")
	case '^':
		tok = l.newToken(token.CARET, "^")
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok = token.Token{Type: token.LAND, Literal: "&&", Pos: pos}
		} else {
			tok = l.newToken(token.AMP, "&")
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = token.Token{Type: token.LOR, Literal: "||", Pos: pos}
		} else {
			tok = l.newToken(token.PIPE, "|")
		}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "==", Pos: pos}
		} else {
			tok = l.newToken(token.ASSIGN, "=")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.newToken(token.BANG, "!")
		}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<=", Pos: pos}
		case '<':
			l.readChar()
			tok = token.Token{Type: token.SHL, Literal: "<<", Pos: pos}
		default:
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">=", Pos: pos}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.SHR, Literal: ">>", Pos: pos}
		default:
			tok = l.newToken(token.GT, ">")
		}
	case ':':
		switch l.peekChar() {
		case ':':
			l.readChar()
			tok = token.Token{Type: token.COLONCOL, Literal: "::", Pos: pos}
		case '=':
			l.readChar()
			tok = token.Token{Type: token.WALRUS, Literal: ":=", Pos: pos}
		default:
			tok = l.newToken(token.COLON, ":")
		}
	case '@':
		tok = l.newToken(token.AT, "@")
	case ';':
		tok = l.newToken(token.SEMI, ";")
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case '(':
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		tok = l.newToken(token.RPAREN, ")")
	case '[':
		tok = l.newToken(token.LBRACKET, "[")
	case ']':
		tok = l.newToken(token.RBRACKET, "]")
	case '{':
		tok = l.newToken(token.LBRACE, "{")
	case '}':
		tok = l.newToken(token.RBRACE, "}")
	case '"':
		return l.readString(pos)
	case '\'':
		return l.readCharLit(pos)
	default:
		if isLetter(l.ch) {
			lit := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(lit), Literal: lit, Pos: pos}
		}
		if isDigit(l.ch) {
			return l.readNumber(pos)
		}
		tok = l.newToken(token.ILLEGAL, string(l.ch))
		l.setErr(pos, fmt.Sprintf("unexpected character %q", l.ch))
	}

	l.readChar()
	return tok
}

// newToken creates a single-position token without advancing.
func (l *Lexer) newToken(t token.Type, literal string) token.Token {
	return token.Token{Type: t, Literal: literal, Pos: l.currentPos()}
}

// skipWhitespaceAndComments skips spaces, `// line` and `{~ block ~}`
// comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == '\n':
			if endsStatement(l.lastType) {
				return
			}
			l.readChar()
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '{' && l.peekChar() == '~':
			pos := l.currentPos()
			l.readChar() // {
			l.readChar() // ~
			for {
				if l.ch == 0 {
					l.setErr(pos, "unterminated block comment")
					return
				}
				if l.ch == '~' && l.peekChar() == '}' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
		default:
			return
		}
	}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a decimal or hex integer literal.
func (l *Lexer) readNumber(pos token.Position) token.Token {
	start := l.pos
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	lit := l.input[start:l.pos]
	if _, err := strconv.ParseUint(lit, 0, 64); err != nil {
		l.setErr(pos, fmt.Sprintf("invalid number literal %q", lit))
		return token.Token{Type: token.ILLEGAL, Literal: lit, Pos: pos}
	}
	return token.Token{Type: token.INT, Literal: lit, Pos: pos}
}

// readString reads a double-quoted string literal with escapes.
func (l *Lexer) readString(pos token.Position) token.Token {
	var out []byte
	l.readChar() // opening quote
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			l.setErr(pos, "unterminated string literal")
			return token.Token{Type: token.ILLEGAL, Literal: string(out), Pos: pos}
		}
		if l.ch == '\\' {
			l.readChar()
			out = append(out, unescape(l.ch))
		} else {
			out = append(out, l.ch)
		}
		l.readChar()
	}
	l.readChar() // closing quote
	return token.Token{Type: token.STRING, Literal: string(out), Pos: pos}
}

// readCharLit reads a single-quoted character literal.
func (l *Lexer) readCharLit(pos token.Position) token.Token {
	l.readChar() // opening quote
	if l.ch == 0 || l.ch == '\n' {
		l.setErr(pos, "unterminated character literal")
		return token.Token{Type: token.ILLEGAL, Pos: pos}
	}
	ch := l.ch
	if ch == '\\' {
		l.readChar()
		ch = unescape(l.ch)
	}
	l.readChar()
	if l.ch != '\'' {
		l.setErr(pos, "unterminated character literal")
		return token.Token{Type: token.ILLEGAL, Literal: string(ch), Pos: pos}
	}
	l.readChar() // closing quote
	return token.Token{Type: token.CHAR, Literal: string(ch), Pos: pos}
}

func (l *Lexer) setErr(pos token.Position, msg string) {
	if l.err == nil {
		l.err = &LexError{Pos: pos, Message: msg}
	}
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return ch
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool { return '0' <= ch && ch <= '9' }

func isHexDigit(ch byte) bool {
	return isDigit(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
