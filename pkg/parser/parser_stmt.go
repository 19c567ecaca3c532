package parser

import (
	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/token"
	"github.com/wewlang/wewc/pkg/types"
)

// parseStatement parses one statement. Declarations may omit a trailing
// semicolon after a closing brace.
func (p *Parser) parseStatement() ast.Stmt {
	switch p.token.Type {
	case token.FN:
		return p.parseFuncDecl()
	case token.VAR:
		decl := p.parseVarDecl()
		p.expectSemi()
		return decl
	case token.RETURN:
		return p.parseReturnStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.LBRACE:
		return p.parseBlock()
	case token.SEMI:
		// stray semicolon
		p.nextToken()
		return nil
	default:
		start := p.token.Pos
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		stmt := &ast.ExprStmt{Base: p.spanFrom(start), X: expr}
		p.expectSemi()
		return stmt
	}
}

// parseFuncDecl parses `fn name(a: T, ...) -> R { body }`.
// The return type may be omitted for a void function.
func (p *Parser) parseFuncDecl() *ast.FuncDecl {
	start := p.token.Pos
	p.expect(token.FN)
	name := p.expect(token.IDENT)

	p.expect(token.LPAREN)
	var params []ast.Param
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		pname := p.expect(token.IDENT)
		p.expect(token.COLON)
		ptype := p.parseType()
		params = append(params, ast.Param{Name: pname.Literal, Type: ptype})
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)

	var ret types.Type
	if p.match(token.ARROW) {
		ret = p.parseType()
	}

	body := p.parseBlock()

	return &ast.FuncDecl{
		Base:    p.spanFrom(start),
		Name:    name.Literal,
		Params:  params,
		Returns: ret,
		Body:    body,
	}
}

// parseVarDecl parses the declaration forms
// `var x := e`, `var x: T` and `var x: T = e`.
func (p *Parser) parseVarDecl() *ast.VarDecl {
	start := p.token.Pos
	p.expect(token.VAR)
	name := p.expect(token.IDENT)

	decl := &ast.VarDecl{Name: name.Literal}

	switch p.token.Type {
	case token.WALRUS:
		p.nextToken()
		decl.Value = p.parseExpression()
	case token.COLON:
		p.nextToken()
		decl.Type = p.parseType()
		if p.match(token.ASSIGN) {
			decl.Value = p.parseExpression()
		}
	default:
		p.errorf(errUnexpectedToken, p.token.Type, "':' or ':='")
	}

	decl.Base = p.spanFrom(start)
	return decl
}

// parseBlock parses `{ stmts }`.
func (p *Parser) parseBlock() *ast.BlockStmt {
	start := p.token.Pos
	p.expect(token.LBRACE)
	block := &ast.BlockStmt{}
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		if len(p.errors) > 0 {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	p.expect(token.RBRACE)
	block.Base = p.spanFrom(start)
	return block
}

// parseReturnStmt parses `return e;`. The value is omitted in void
// functions.
func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	start := p.token.Pos
	p.expect(token.RETURN)
	var value ast.Expr
	if !p.check(token.SEMI) && !p.check(token.RBRACE) && !p.check(token.EOF) {
		value = p.parseExpression()
	}
	stmt := &ast.ReturnStmt{Base: p.spanFrom(start), Value: value}
	p.expectSemi()
	return stmt
}

// parseIfStmt parses `if e { } elif e { } else { }`. An elif chain becomes
// a nested IfStmt in the Else slot.
func (p *Parser) parseIfStmt() *ast.IfStmt {
	start := p.token.Pos
	p.nextToken() // if or elif
	cond := p.parseExpression()
	body := p.parseBlock()

	stmt := &ast.IfStmt{Cond: cond, Body: body}

	// a line break before elif or else does not end the statement
	if p.check(token.SEMI) && (p.checkPeek(token.ELIF) || p.checkPeek(token.ELSE)) {
		p.nextToken()
	}

	switch p.token.Type {
	case token.ELIF:
		stmt.Else = p.parseIfStmt()
	case token.ELSE:
		p.nextToken()
		stmt.Else = p.parseBlock()
	}

	stmt.Base = p.spanFrom(start)
	return stmt
}

// parseWhileStmt parses `while e { }`.
func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	start := p.token.Pos
	p.expect(token.WHILE)
	cond := p.parseExpression()
	body := p.parseBlock()
	return &ast.WhileStmt{Base: p.spanFrom(start), Cond: cond, Body: body}
}
