package parser

import (
	"strconv"

	"github.com/wewlang/wewc/pkg/token"
	"github.com/wewlang/wewc/pkg/types"
)

// parseType parses a type:
//
//	type       → base_type | ptr_type | array_type | const_type | fun_type
//	base_type  → 'u1'..'u8' | 's1'..'s8'
//	ptr_type   → '*' type
//	array_type → '[' type ('@' int)? ']'
//	const_type → '|' type '|'
//	fun_type   → '(' (type (',' type)*)? ')' '->' type
func (p *Parser) parseType() types.Type {
	switch p.token.Type {
	case token.IDENT:
		name := p.token.Literal
		it, ok := types.IntFromName(name)
		if !ok {
			p.errorf(errExpectedType, name)
			return nil
		}
		p.nextToken()
		return it

	case token.STAR:
		p.nextToken()
		to := p.parseType()
		if to == nil {
			return nil
		}
		return types.Pointer{To: to}

	case token.LBRACKET:
		p.nextToken()
		to := p.parseType()
		if to == nil {
			return nil
		}
		length := types.NoLength
		if p.match(token.AT) {
			neg := p.match(token.MINUS)
			lit := p.expect(token.INT)
			n, err := strconv.Atoi(lit.Literal)
			if err != nil {
				p.errorf("invalid array length %q", lit.Literal)
				return nil
			}
			if neg {
				n = -n
			}
			length = n
		}
		p.expect(token.RBRACKET)
		return types.Array{To: to, Length: length}

	case token.PIPE:
		p.nextToken()
		inner := p.parseType()
		if inner == nil {
			return nil
		}
		p.expect(token.PIPE)
		return inner.WithConst()

	case token.LPAREN:
		p.nextToken()
		var params []types.Type
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			pt := p.parseType()
			if pt == nil {
				return nil
			}
			params = append(params, pt)
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		p.expect(token.ARROW)
		ret := p.parseType()
		if ret == nil {
			return nil
		}
		return types.Func{Returns: ret, Params: params}

	default:
		p.errorf(errExpectedType, p.token.Type)
		return nil
	}
}
