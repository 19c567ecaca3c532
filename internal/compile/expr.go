package compile

import (
	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/token"
	"github.com/wewlang/wewc/pkg/types"
)

// compileExpr lowers an expression, returning the register holding its
// value. Void-returning calls yield a nil register.
func (c *Ctx) compileExpr(e ast.Expr) (*ir.Register, error) {
	switch v := e.(type) {
	case *ast.Ident:
		return c.compileIdent(v)

	case *ast.IntLit:
		reg := c.GetRegister(v.Type.Width, v.Type.IsSigned)
		c.Emit(&ir.Mov{To: reg, From: ir.Imm(v.Value, v.Type.Width)})
		return reg, nil

	case *ast.StringLit:
		sv := c.Compiler.AddString(v.Value)
		reg := c.GetRegister(types.PointerSize, false)
		c.Emit(&ir.LoadVar{Var: sv, To: reg, LValue: true})
		return reg, nil

	case *ast.ArrayLit:
		return c.compileArrayLit(v, nil, nil)

	case *ast.AssignExpr:
		return c.compileAssign(v)

	case *ast.BoolExpr:
		return c.compileBool(v)

	case *ast.BinaryExpr:
		return c.compileBinary(v)

	case *ast.UnaryExpr:
		return c.compileUnary(v)

	case *ast.PostfixExpr:
		return c.compilePostfix(v)

	case *ast.CallExpr:
		return c.compileCall(v)

	case *ast.IndexExpr:
		return c.compileIndex(v)

	case *ast.CastExpr:
		return c.compileCast(v)
	}
	return nil, internalf("cannot compile expression %T", e)
}

// loadLValue computes the address of an expression's storage.
func (c *Ctx) loadLValue(e ast.Expr) (*ir.Register, error) {
	switch v := e.(type) {
	case *ast.Ident:
		vr := c.LookupVariable(v.Name)
		if vr == nil {
			return nil, c.errAt(v, "unknown identifier '%s'", v.Name)
		}
		if vr.LValueIsRValue {
			return nil, c.errAt(v, "variable %s has no lvalue information", v.Name)
		}
		reg := c.GetRegister(types.PointerSize, false)
		c.Emit(&ir.LoadVar{Var: vr, To: reg, LValue: true})
		return reg, nil

	case *ast.UnaryExpr:
		switch v.Op {
		case token.STAR:
			return c.derefAddress(v)
		case token.INC, token.DEC:
			return c.loadLValue(v.X)
		}

	case *ast.IndexExpr:
		return c.indexAddress(v)

	case *ast.CastExpr:
		// casts pass the underlying lvalue through
		return c.loadLValue(v.X)
	}
	return nil, c.errAt(e, "expression holds no lvalue information")
}

func (c *Ctx) compileIdent(v *ast.Ident) (*ir.Register, error) {
	vr := c.LookupVariable(v.Name)
	if vr == nil {
		return nil, c.errAt(v, "unknown identifier '%s'", v.Name)
	}

	// the value of an array or function is its address
	if vr.LValueIsRValue {
		reg := c.GetRegister(types.PointerSize, false)
		c.Emit(&ir.LoadVar{Var: vr, To: reg})
		return reg, nil
	}

	reg := c.GetRegister(types.MustSize(vr.Type), vr.Type.Signed())
	c.Emit(&ir.LoadVar{Var: vr, To: reg})
	return reg, nil
}

// resizeTo moves reg into a view of the requested size and signedness,
// emitting the extension if the width changes.
func (c *Ctx) resizeTo(reg *ir.Register, size int, signed bool) *ir.Register {
	if reg.Size == size && reg.Signed == signed {
		return reg
	}
	out := reg.Resized(size, signed)
	if reg.Size != size {
		c.Emit(&ir.Resize{From: reg, To: out})
	}
	return out
}

func (c *Ctx) compileAssign(v *ast.AssignExpr) (*ir.Register, error) {
	lhsType, err := c.typeOf(v.Left)
	if err != nil {
		return nil, err
	}
	if lhsType.Const() {
		return nil, c.errAt(v, "cannot assign to const type")
	}

	rhs, err := c.compileExpr(v.Right)
	if err != nil {
		return nil, err
	}
	if rhs == nil {
		return nil, c.errAt(v.Right, "void expression on right of assignment")
	}
	lhs, err := c.loadLValue(v.Left)
	if err != nil {
		return nil, err
	}

	rhs = c.resizeTo(rhs, types.MustSize(lhsType), lhsType.Signed())
	c.Emit(&ir.Mov{To: ir.Dereference{To: lhs, Size: rhs.Size}, From: rhs})
	return rhs, nil
}

// compileBool lowers a short-circuiting boolean operator. The left value
// decides whether the right side runs at all.
func (c *Ctx) compileBool(v *ast.BoolExpr) (*ir.Register, error) {
	lhsType, err := c.typeOf(v.Left)
	if err != nil {
		return nil, err
	}
	rhsType, err := c.typeOf(v.Right)
	if err != nil {
		return nil, err
	}
	if _, void := lhsType.(types.Void); void {
		return nil, c.errAt(v.Left, "void type argument to boolean operator")
	}
	if _, void := rhsType.(types.Void); void {
		return nil, c.errAt(v.Right, "void type argument to boolean operator")
	}
	if !rhsType.ImplicitlyCastsTo(lhsType) {
		return nil, c.errAt(v,
			"right argument of type %s cannot be casted to left argument of type %s",
			rhsType, lhsType)
	}

	r1, err := c.compileExpr(v.Left)
	if err != nil {
		return nil, err
	}

	c.Emit(&ir.Compare{Left: r1, Right: ir.Imm(0, r1.Size)})

	// || bails when the left side is nonzero, && when it is zero
	op := ir.CompNeq
	if v.Op == token.LAND {
		op = ir.CompEq
	}

	target := ir.NewJumpTarget()
	cond := c.GetRegister(1, false)
	c.Emit(&ir.SetCmp{Reg: cond, Op: op})
	c.Emit(&ir.Jump{To: target, When: cond})

	r2, err := c.compileExpr(v.Right)
	if err != nil {
		return nil, err
	}
	r2 = c.resizeTo(r2, r1.Size, r1.Signed)
	c.Emit(&ir.Mov{To: r1, From: r2})
	c.Emit(target)
	return r1, nil
}

// compileOperands compiles both sides of a binary expression and resizes
// the smaller to the larger.
func (c *Ctx) compileOperands(v *ast.BinaryExpr) (lhs, rhs *ir.Register, err error) {
	lhs, err = c.compileExpr(v.Left)
	if err != nil {
		return nil, nil, err
	}
	rhs, err = c.compileExpr(v.Right)
	if err != nil {
		return nil, nil, err
	}
	if lhs.Size < rhs.Size {
		lhs = c.resizeTo(lhs, rhs.Size, rhs.Signed)
	} else if rhs.Size < lhs.Size {
		rhs = c.resizeTo(rhs, lhs.Size, lhs.Signed)
	}
	return lhs, rhs, nil
}

func (c *Ctx) compileBinary(v *ast.BinaryExpr) (*ir.Register, error) {
	resType, err := c.typeOfBinary(v)
	if err != nil {
		return nil, err
	}
	leftType, rightType, err := c.binarySides(v)
	if err != nil {
		return nil, err
	}
	sign := leftType.Signed() || rightType.Signed()

	switch v.Op {
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE:
		return c.compileComparison(v, sign)
	}

	lhs, rhs, err := c.compileOperands(v)
	if err != nil {
		return nil, err
	}
	res := c.GetRegister(lhs.Size, sign)

	switch v.Op {
	case token.PLUS, token.MINUS:
		op := ir.Add
		if v.Op == token.MINUS {
			op = ir.Sub
		}

		// pointer arithmetic steps by the size of the pointee
		if ptr, ok := pointee(resType); ok {
			scaled := rhs
			if isPtr(rightType) {
				scaled = lhs
			}
			c.Emit(ir.NewBinary(ir.Mul, scaled,
				ir.Imm(int64(types.MustSize(ptr)), scaled.Size), nil))
		}
		c.Emit(ir.NewBinary(op, lhs, rhs, res))

	case token.STAR:
		c.Emit(ir.NewBinary(ir.Mul, lhs, rhs, res))

	case token.SLASH:
		op := ir.UDiv
		if sign {
			op = ir.IDiv
		}
		c.Emit(ir.NewBinary(op, lhs, rhs, res))

	case token.SHL, token.SHR:
		if rightType.Signed() {
			return nil, c.errAt(v.Right, "rhs operand to a binary shift op must be unsigned")
		}
		op := ir.Shl
		if v.Op == token.SHR {
			op = ir.Shr
			if leftType.Signed() {
				op = ir.Sar
			}
		}
		c.Emit(ir.NewBinary(op, lhs, rhs, res))

	case token.AMP:
		c.Emit(ir.NewBinary(ir.And, lhs, rhs, res))
	case token.PIPE:
		c.Emit(ir.NewBinary(ir.Or, lhs, rhs, res))
	case token.CARET:
		c.Emit(ir.NewBinary(ir.Xor, lhs, rhs, res))

	default:
		return nil, internalf("unknown binary operator %s", v.Op)
	}
	return res, nil
}

var unsignedComps = map[token.Type]ir.CompOp{
	token.LE: ir.CompLeq,
	token.LT: ir.CompLt,
	token.EQ: ir.CompEq,
	token.NE: ir.CompNeq,
	token.GT: ir.CompGt,
	token.GE: ir.CompGeq,
}

var signedComps = map[token.Type]ir.CompOp{
	token.LE: ir.CompLeqS,
	token.LT: ir.CompLtS,
	token.EQ: ir.CompEq,
	token.NE: ir.CompNeq,
	token.GT: ir.CompGtS,
	token.GE: ir.CompGeqS,
}

func (c *Ctx) compileComparison(v *ast.BinaryExpr, sign bool) (*ir.Register, error) {
	lhs, rhs, err := c.compileOperands(v)
	if err != nil {
		return nil, err
	}

	comps := unsignedComps
	if sign {
		comps = signedComps
	}

	res := c.GetRegister(1, false)
	c.Emit(&ir.Compare{Left: lhs, Right: rhs})
	c.Emit(&ir.SetCmp{Reg: res, Op: comps[v.Op]})
	return res, nil
}

func (c *Ctx) compileUnary(v *ast.UnaryExpr) (*ir.Register, error) {
	switch v.Op {
	case token.STAR:
		return c.compileDeref(v)

	case token.AMP:
		return c.loadLValue(v.X)

	case token.INC, token.DEC:
		return c.compilePreIncrement(v)

	case token.BANG:
		// logical invert: 1 when the operand is zero
		reg, err := c.compileExpr(v.X)
		if err != nil {
			return nil, err
		}
		res := c.GetRegister(reg.Size, false)
		c.Emit(&ir.Compare{Left: reg, Right: ir.Imm(0, reg.Size)})
		c.Emit(&ir.SetCmp{Reg: res, Op: ir.CompEq})
		return res, nil

	case token.TILDE, token.MINUS, token.PLUS:
		typ, err := c.typeOf(v.X)
		if err != nil {
			return nil, err
		}
		reg, err := c.compileExpr(v.X)
		if err != nil {
			return nil, err
		}
		if !typ.Signed() {
			switch v.Op {
			case token.PLUS:
				// '+' is a noop on unsigned types
				return reg, nil
			case token.MINUS:
				return nil, c.errAt(v, "unary negate has no meaning on unsigned types")
			}
		}
		op := ir.Not
		switch v.Op {
		case token.MINUS:
			op = ir.Neg
		case token.PLUS:
			op = ir.Pos
		}
		c.Emit(&ir.Unary{Arg: reg, Op: op})
		return reg, nil
	}
	return nil, internalf("unknown unary operator %s", v.Op)
}

// derefAddress loads the pointer value of a dereference target, resized
// to pointer width.
func (c *Ctx) derefAddress(v *ast.UnaryExpr) (*ir.Register, error) {
	if _, err := c.typeOfUnary(v); err != nil {
		return nil, err
	}
	reg, err := c.compileExpr(v.X)
	if err != nil {
		return nil, err
	}
	return c.resizeTo(reg, types.PointerSize, false), nil
}

func (c *Ctx) compileDeref(v *ast.UnaryExpr) (*ir.Register, error) {
	typ, err := c.typeOfUnary(v)
	if err != nil {
		return nil, err
	}
	ptr, err := c.derefAddress(v)
	if err != nil {
		return nil, err
	}
	reg := c.GetRegister(types.MustSize(typ), typ.Signed())
	c.Emit(&ir.Mov{To: reg, From: ir.Dereference{To: ptr, Size: reg.Size}})
	return reg, nil
}

// incrementStep returns how far ++ and -- move a value of the type:
// one for integers, the pointee size for pointers.
func incrementStep(typ types.Type) int64 {
	if to, ok := pointee(typ); ok {
		return int64(types.MustSize(to))
	}
	return 1
}

func incrementOp(op token.Type) ir.BinaryOp {
	if op == token.DEC {
		return ir.Sub
	}
	return ir.Add
}

func (c *Ctx) compilePreIncrement(v *ast.UnaryExpr) (*ir.Register, error) {
	typ, err := c.typeOf(v.X)
	if err != nil {
		return nil, err
	}
	ptr, err := c.loadLValue(v.X)
	if err != nil {
		return nil, err
	}

	tmp := c.GetRegister(types.MustSize(typ), typ.Signed())
	c.Emit(&ir.Mov{To: tmp, From: ir.Dereference{To: ptr, Size: tmp.Size}})
	c.Emit(ir.NewBinary(incrementOp(v.Op), tmp, ir.Imm(incrementStep(typ), tmp.Size), nil))
	c.Emit(&ir.Mov{To: ir.Dereference{To: ptr, Size: tmp.Size}, From: tmp})
	return tmp, nil
}

func (c *Ctx) compilePostfix(v *ast.PostfixExpr) (*ir.Register, error) {
	typ, err := c.typeOf(v.X)
	if err != nil {
		return nil, err
	}
	ptr, err := c.loadLValue(v.X)
	if err != nil {
		return nil, err
	}

	size := types.MustSize(typ)
	res := c.GetRegister(size, typ.Signed())
	tmp := c.GetRegister(size, false)

	c.Emit(&ir.Mov{To: res, From: ir.Dereference{To: ptr, Size: res.Size}})
	c.Emit(ir.NewBinary(incrementOp(v.Op), res, ir.Imm(incrementStep(typ), size), tmp))
	c.Emit(&ir.Mov{To: ir.Dereference{To: ptr, Size: tmp.Size}, From: tmp})
	return res, nil
}

func (c *Ctx) compileCall(v *ast.CallExpr) (*ir.Register, error) {
	if name, ok := c.intrinsicName(v.Fun); ok {
		return c.compileIntrinsic(v, name)
	}

	funType, err := c.typeOf(v.Fun)
	if err != nil {
		return nil, err
	}
	fn, ok := funType.(types.Func)
	if !ok {
		return nil, c.errAt(v, "called object is not a function")
	}

	if len(v.Args) != len(fn.Params) {
		return nil, c.errAt(v, "incorrect number of args to function: expected %d got %d",
			len(fn.Params), len(v.Args))
	}

	argSize := 0
	args := make([]*ir.Register, len(v.Args))
	for i, arg := range v.Args {
		argType, err := c.typeOf(arg)
		if err != nil {
			return nil, err
		}
		want := fn.Params[i]
		if !argType.ImplicitlyCastsTo(want) {
			return nil, c.errAt(arg,
				"argument %d to call was of type %s instead of expected %s and cannot be casted",
				i, argType, want)
		}

		reg, err := c.compileExpr(arg)
		if err != nil {
			return nil, err
		}
		args[i] = c.resizeTo(reg, types.MustSize(want), want.Signed())
		argSize += types.MustSize(want)
	}

	funReg, err := c.compileExpr(v.Fun)
	if err != nil {
		return nil, err
	}

	call := &ir.Call{Args: args, ArgSize: argSize, Fun: funReg}
	if _, void := fn.Returns.(types.Void); !void {
		call.Result = c.GetRegister(types.MustSize(fn.Returns), fn.Returns.Signed())
	}
	c.Emit(call)
	return call.Result, nil
}

// indexAddress computes the address of x[i]: the base plus the index
// scaled by the element size.
func (c *Ctx) indexAddress(v *ast.IndexExpr) (*ir.Register, error) {
	baseType, err := c.typeOf(v.X)
	if err != nil {
		return nil, err
	}
	elem, ok := pointee(baseType)
	if !ok {
		return nil, c.errAt(v, "incompatible type to array index base %s", baseType)
	}

	base, err := c.compileExpr(v.X)
	if err != nil {
		return nil, err
	}
	offset, err := c.compileExpr(v.Index)
	if err != nil {
		return nil, err
	}

	base = c.resizeTo(base, types.PointerSize, false)
	offset = c.resizeTo(offset, types.PointerSize, false)

	elemSize, err := elem.Size()
	if err != nil {
		return nil, c.errAt(v, "%s", err)
	}

	result := c.GetRegister(types.PointerSize, false)
	c.Emit(ir.NewBinary(ir.Mul, offset, ir.Imm(int64(elemSize), offset.Size), nil))
	c.Emit(ir.NewBinary(ir.Add, base, offset, result))
	return result, nil
}

func (c *Ctx) compileIndex(v *ast.IndexExpr) (*ir.Register, error) {
	typ, err := c.typeOf(v)
	if err != nil {
		return nil, err
	}
	ptr, err := c.indexAddress(v)
	if err != nil {
		return nil, err
	}

	// indexing that leaves an array type keeps the address
	if _, arr := typ.(types.Array); arr {
		return ptr, nil
	}

	reg := c.GetRegister(types.MustSize(typ), typ.Signed())
	c.Emit(&ir.Mov{To: reg, From: ir.Dereference{To: ptr, Size: reg.Size}})
	return reg, nil
}

func (c *Ctx) compileCast(v *ast.CastExpr) (*ir.Register, error) {
	reg, err := c.compileExpr(v.X)
	if err != nil {
		return nil, err
	}
	size, err := v.Type.Size()
	if err != nil {
		return nil, c.errAt(v, "%s", err)
	}

	res := reg.Resized(size, v.Type.Signed())
	if v.Extend && reg.Size != res.Size {
		c.Emit(&ir.Resize{From: reg, To: res})
	}
	return res, nil
}
