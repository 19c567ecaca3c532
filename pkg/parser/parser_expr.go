package parser

import (
	"strconv"

	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/token"
	"github.com/wewlang/wewc/pkg/types"
)

// Expression precedence parsing using precedence climbing.
//
// Precedence levels, loosest binding first:
//
//	precAssign   =  (right associative)
//	precBitwise  | ^ &
//	precBoolean  || &&  (short-circuit)
//	precEquality == !=
//	precRelation < > <= >=
//	precShift    << >>
//	precAdd      + -
//	precMul      * /
//	unary        * & ~ ! - + ++ --
//	postfix      call, index, ++, --, ::T, @T
//
// Bitwise operators binding loosest mirrors the reference grammar for the
// language; parenthesize when mixing them with comparisons.
const (
	precNone = iota
	precAssign
	precBitwise
	precBoolean
	precEquality
	precRelation
	precShift
	precAdd
	precMul
)

// infixPrecedence returns the precedence of t as an infix operator, or
// precNone if t is not an infix operator.
func infixPrecedence(t token.Type) int {
	switch t {
	case token.ASSIGN:
		return precAssign
	case token.PIPE, token.CARET, token.AMP:
		return precBitwise
	case token.LOR, token.LAND:
		return precBoolean
	case token.EQ, token.NE:
		return precEquality
	case token.LT, token.GT, token.LE, token.GE:
		return precRelation
	case token.SHL, token.SHR:
		return precShift
	case token.PLUS, token.MINUS:
		return precAdd
	case token.STAR, token.SLASH:
		return precMul
	default:
		return precNone
	}
}

// parseExpression parses an expression at the loosest precedence.
func (p *Parser) parseExpression() ast.Expr {
	return p.parseExpressionWithPrecedence(precNone + 1)
}

// parseExpressionWithPrecedence implements precedence climbing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) ast.Expr {
	left := p.parseUnaryExpr()
	if left == nil {
		return nil
	}

	for {
		prec := infixPrecedence(p.token.Type)
		if prec < minPrecedence {
			break
		}

		op := p.token
		p.nextToken()

		// assignment is right associative, everything else left
		next := prec + 1
		if prec == precAssign {
			next = prec
		}

		right := p.parseExpressionWithPrecedence(next)
		if right == nil {
			return nil
		}

		span := ast.NewBase(left.Span().Start, p.token.Pos)
		switch {
		case op.Type == token.ASSIGN:
			left = &ast.AssignExpr{Base: span, Left: left, Right: right}
		case op.Type == token.LOR || op.Type == token.LAND:
			left = &ast.BoolExpr{Base: span, Op: op.Type, Left: left, Right: right}
		default:
			left = &ast.BinaryExpr{Base: span, Op: op.Type, Left: left, Right: right}
		}
	}

	return left
}

// parseUnaryExpr parses prefix operators and hands off to postfix parsing.
func (p *Parser) parseUnaryExpr() ast.Expr {
	switch p.token.Type {
	case token.STAR, token.AMP, token.TILDE, token.BANG,
		token.MINUS, token.PLUS, token.INC, token.DEC:
		op := p.token
		p.nextToken()
		x := p.parseUnaryExpr()
		if x == nil {
			return nil
		}
		return &ast.UnaryExpr{
			Base: ast.NewBase(op.Pos, p.token.Pos),
			Op:   op.Type,
			X:    x,
		}
	default:
		return p.parsePostfixExpr()
	}
}

// parsePostfixExpr parses a primary expression followed by any number of
// postfix operations: calls, indexing, ++/--, and casts.
func (p *Parser) parsePostfixExpr() ast.Expr {
	x := p.parsePrimary()
	if x == nil {
		return nil
	}

	for {
		start := x.Span().Start
		switch p.token.Type {
		case token.LPAREN:
			p.nextToken()
			var args []ast.Expr
			for !p.check(token.RPAREN) && !p.check(token.EOF) {
				arg := p.parseExpression()
				if arg == nil {
					return nil
				}
				args = append(args, arg)
				if !p.match(token.COMMA) {
					break
				}
			}
			p.expect(token.RPAREN)
			x = &ast.CallExpr{Base: p.spanFrom(start), Fun: x, Args: args}

		case token.LBRACKET:
			p.nextToken()
			idx := p.parseExpression()
			p.expect(token.RBRACKET)
			x = &ast.IndexExpr{Base: p.spanFrom(start), X: x, Index: idx}

		case token.INC, token.DEC:
			op := p.token.Type
			p.nextToken()
			x = &ast.PostfixExpr{Base: p.spanFrom(start), Op: op, X: x}

		case token.COLONCOL, token.AT:
			extend := p.token.Type == token.COLONCOL
			p.nextToken()
			typ := p.parseType()
			x = &ast.CastExpr{Base: p.spanFrom(start), X: x, Type: typ, Extend: extend}

		default:
			return x
		}
	}
}

// parsePrimary parses literals, identifiers and parenthesized expressions.
func (p *Parser) parsePrimary() ast.Expr {
	start := p.token.Pos

	switch p.token.Type {
	case token.INT:
		lit := p.token.Literal
		p.nextToken()
		v, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			p.errorf("invalid number literal %q", lit)
			return nil
		}
		typ := types.IntOfSize(4, false)
		if v > 0xFFFFFFFF {
			typ = types.IntOfSize(8, false)
		}
		return &ast.IntLit{Base: p.spanFrom(start), Value: int64(v), Type: typ}

	case token.CHAR:
		lit := p.token.Literal
		p.nextToken()
		return &ast.IntLit{
			Base:  p.spanFrom(start),
			Value: int64(lit[0]),
			Type:  types.Char,
		}

	case token.STRING:
		lit := p.token.Literal
		p.nextToken()
		return &ast.StringLit{Base: p.spanFrom(start), Value: lit}

	case token.IDENT:
		name := p.token.Literal
		p.nextToken()
		return &ast.Ident{Base: p.spanFrom(start), Name: name}

	case token.LPAREN:
		p.nextToken()
		x := p.parseExpression()
		p.expect(token.RPAREN)
		return x

	case token.LBRACE:
		p.nextToken()
		lit := &ast.ArrayLit{}
		for !p.check(token.RBRACE) && !p.check(token.EOF) {
			elem := p.parseExpression()
			if elem == nil {
				return nil
			}
			lit.Elems = append(lit.Elems, elem)
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RBRACE)
		lit.Base = p.spanFrom(start)
		return lit

	default:
		p.errorf(errExpectedExpr, p.token.Type)
		return nil
	}
}
