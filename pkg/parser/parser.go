// Package parser provides lexing and parsing for wew source files.
//
// # Usage
//
//	prog, err := parser.Parse(src)
//	if err != nil {
//	    // handle error
//	}
//
// # Grammar Overview
//
// The parser is a recursive descent parser with precedence climbing for
// expressions:
//
//	program    → statement* EOF
//	statement  → fn_decl | var_decl sep | return sep | if | while
//	           | block | expr sep
//
// A separator is a semicolon or a line break after a token that can end a
// statement, so semicolons are only written between statements sharing a
// line.
//	fn_decl    → 'fn' ident '(' params ')' '->' type block
//	var_decl   → 'var' ident (':=' expr | ':' type ('=' expr)?)
//	if         → 'if' expr block ('elif' expr block)* ('else' block)?
//	while      → 'while' expr block
//
// See parser_expr.go for the expression ladder and parser_type.go for types.
package parser

import (
	"fmt"

	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/token"
)

// Parser parses wew source into an AST.
type Parser struct {
	lexer  *Lexer
	token  token.Token // current token
	peek   token.Token // lookahead token
	errors []error
}

// NewParser creates a new parser for the given input.
func NewParser(src string) *Parser {
	p := &Parser{lexer: NewLexer(src)}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole source file and returns the program AST.
func Parse(src string) (*ast.Program, error) {
	p := NewParser(src)
	prog := p.parseProgram()
	if err := p.lexer.Err(); err != nil {
		return nil, err
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return prog, nil
}

// ParseExpr parses a single expression, for REPL use.
func ParseExpr(src string) (ast.Expr, error) {
	p := NewParser(src)
	expr := p.parseExpression()
	if err := p.lexer.Err(); err != nil {
		return nil, err
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return expr, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.Type) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.Type) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.Type) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise records an
// error. Returns the consumed token.
func (p *Parser) expect(t token.Type) token.Token {
	tok := p.token
	if !p.check(t) {
		p.errorf(errUnexpectedToken, p.token.Type, t)
		return tok
	}
	p.nextToken()
	return tok
}

// expectSemi consumes a statement separator. A closing brace or the end of
// input also terminates a statement.
func (p *Parser) expectSemi() {
	if p.check(token.RBRACE) || p.check(token.EOF) {
		return
	}
	p.expect(token.SEMI)
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// spanFrom builds a node base spanning from start to the current token.
func (p *Parser) spanFrom(start token.Position) ast.Base {
	return ast.NewBase(start, p.token.Pos)
}

// ---------- Program ----------

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.check(token.EOF) {
		before := p.token
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if len(p.errors) > 0 {
			break
		}
		// guard against a wedged parse
		if p.token == before {
			p.errorf("unexpected token %s", p.token.Type)
			break
		}
	}
	return prog
}
