package compile

import (
	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/token"
	"github.com/wewlang/wewc/pkg/types"
)

// typeOf computes the result type of an expression without emitting code.
func (c *Ctx) typeOf(e ast.Expr) (types.Type, error) {
	switch v := e.(type) {
	case *ast.Ident:
		return c.typeOfIdent(v)

	case *ast.IntLit:
		return v.Type, nil

	case *ast.StringLit:
		return types.StringLit, nil

	case *ast.ArrayLit:
		if len(v.Elems) == 0 {
			return nil, c.errAt(v, "empty array literal has no type")
		}
		elem, err := c.typeOf(v.Elems[0])
		if err != nil {
			return nil, err
		}
		return types.Array{To: elem, Length: len(v.Elems)}, nil

	case *ast.AssignExpr:
		return c.typeOf(v.Right)

	case *ast.BoolExpr:
		return types.IntOfSize(1, false), nil

	case *ast.BinaryExpr:
		return c.typeOfBinary(v)

	case *ast.UnaryExpr:
		return c.typeOfUnary(v)

	case *ast.PostfixExpr:
		switch v.Op {
		case token.INC, token.DEC:
			return c.typeOf(v.X)
		}
		return nil, internalf("unknown postfix operator %s", v.Op)

	case *ast.CallExpr:
		if name, ok := c.intrinsicName(v.Fun); ok {
			return intrinsicReturns(name), nil
		}
		typ, err := c.typeOf(v.Fun)
		if err != nil {
			return nil, err
		}
		fn, ok := typ.(types.Func)
		if !ok {
			return nil, c.errAt(v, "called object is not a function")
		}
		return fn.Returns, nil

	case *ast.IndexExpr:
		typ, err := c.typeOf(v.X)
		if err != nil {
			return nil, err
		}
		to, ok := pointee(typ)
		if !ok {
			return nil, c.errAt(v, "operand to index operator is not of pointer or array type")
		}
		return to, nil

	case *ast.CastExpr:
		return v.Type, nil
	}
	return nil, internalf("cannot type expression %T", e)
}

func (c *Ctx) typeOfIdent(id *ast.Ident) (types.Type, error) {
	if v := c.LookupVariable(id.Name); v != nil {
		return v.Type, nil
	}
	typ, err := c.Compiler.lookupPending(id.Name)
	if err != nil {
		return nil, err
	}
	if typ == nil {
		return nil, c.errAt(id, "unknown identifier '%s'", id.Name)
	}
	return typ, nil
}

func (c *Ctx) typeOfUnary(v *ast.UnaryExpr) (types.Type, error) {
	switch v.Op {
	case token.STAR:
		typ, err := c.typeOf(v.X)
		if err != nil {
			return nil, err
		}
		to, ok := pointee(typ)
		if !ok {
			return nil, c.errAt(v,
				"operand to dereference is of type %s, not of pointer or array type", typ)
		}
		return to, nil

	case token.AMP:
		typ, err := c.typeOf(v.X)
		if err != nil {
			return nil, err
		}
		return types.Pointer{To: typ}, nil

	case token.TILDE, token.BANG, token.MINUS, token.PLUS, token.INC, token.DEC:
		return c.typeOf(v.X)
	}
	return nil, internalf("unknown unary operator %s", v.Op)
}

// pointee unwraps pointer and array types.
func pointee(t types.Type) (types.Type, bool) {
	switch v := t.(type) {
	case types.Pointer:
		return v.To, true
	case types.Array:
		return v.To, true
	}
	return nil, false
}

func isInt(t types.Type) bool {
	_, ok := t.(types.Int)
	return ok
}

func isPtr(t types.Type) bool {
	switch t.(type) {
	case types.Pointer, types.Array:
		return true
	}
	return false
}

// binarySides resolves the operand types of a binary expression.
func (c *Ctx) binarySides(v *ast.BinaryExpr) (left, right types.Type, err error) {
	left, err = c.typeOf(v.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err = c.typeOf(v.Right)
	return left, right, err
}

// maxSize returns the larger of the operand sizes.
func maxSize(left, right types.Type) int {
	l, r := types.MustSize(left), types.MustSize(right)
	if l > r {
		return l
	}
	return r
}

func (c *Ctx) typeOfBinary(v *ast.BinaryExpr) (types.Type, error) {
	left, right, err := c.binarySides(v)
	if err != nil {
		return nil, err
	}

	mismatch := func() error {
		return c.errAt(v, "incompatible types for binary %s: %s and %s",
			v.Op, left, right)
	}

	switch v.Op {
	case token.PLUS, token.MINUS:
		switch {
		case isPtr(left) && isInt(right):
			return left, nil
		case isInt(left) && isPtr(right):
			return right, nil
		case isInt(left) && isInt(right):
			return types.IntOfSize(maxSize(left, right), left.Signed() || right.Signed()), nil
		case isPtr(left) && isPtr(right) && v.Op == token.MINUS:
			return types.IntOfSize(maxSize(left, right), false), nil
		}
		return nil, mismatch()

	case token.STAR, token.SLASH:
		if !isInt(left) || !isInt(right) {
			return nil, mismatch()
		}
		return types.IntOfSize(maxSize(left, right), left.Signed() || right.Signed()), nil

	case token.SHL, token.SHR:
		if !isInt(left) || !isInt(right) {
			return nil, mismatch()
		}
		// right shifts keep the sign of the shifted operand
		signed := v.Op == token.SHR && left.Signed()
		return types.IntOfSize(maxSize(left, right), signed), nil

	case token.AMP, token.PIPE, token.CARET:
		if !isInt(left) || !isInt(right) {
			return nil, mismatch()
		}
		return types.IntOfSize(maxSize(left, right), left.Signed() || right.Signed()), nil

	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE:
		if (isInt(left) && isInt(right)) || (isPtr(left) && isPtr(right)) {
			return types.IntOfSize(1, false), nil
		}
		return nil, mismatch()
	}
	return nil, internalf("unknown binary operator %s", v.Op)
}
