package compile

import (
	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// compileStmt lowers one statement into the current object's code.
func (c *Ctx) compileStmt(s ast.Stmt) error {
	switch v := s.(type) {
	case *ast.VarDecl:
		return c.compileVarDecl(v)

	case *ast.ReturnStmt:
		return c.compileReturn(v)

	case *ast.IfStmt:
		return c.compileIf(v)

	case *ast.WhileStmt:
		return c.compileWhile(v)

	case *ast.BlockStmt:
		return c.compileBlock(v)

	case *ast.ExprStmt:
		_, err := c.compileExpr(v.X)
		return err

	case *ast.FuncDecl:
		return c.errAt(v, "function declarations are only allowed at toplevel")
	}
	return internalf("cannot compile statement %T", s)
}

func (c *Ctx) compileVarDecl(v *ast.VarDecl) error {
	typ := v.Type
	if typ == nil {
		if v.Value == nil {
			return c.errAt(v, "variable %s has no initialiser or type", v.Name)
		}
		t, err := c.typeOf(v.Value)
		if err != nil {
			return err
		}
		typ = t
	}

	// a bare declaration only claims storage
	if v.Value == nil {
		vr, err := c.DeclareVariable(v.Name, typ)
		if err != nil {
			return c.errAt(v, "%s", err)
		}
		if _, isArr := typ.(types.Array); isArr {
			vr.LValueIsRValue = true
		}
		return nil
	}

	// array literals build in place into the declared storage
	if lit, ok := v.Value.(*ast.ArrayLit); ok {
		if _, isArr := typ.(types.Array); isArr {
			storageType, err := c.arrayLitStorage(lit, typ)
			if err != nil {
				return err
			}
			vr, err := c.DeclareVariable(v.Name, storageType)
			if err != nil {
				return c.errAt(v, "%s", err)
			}
			vr.LValueIsRValue = true
			_, err = c.compileArrayLit(lit, storageType, vr)
			return err
		}
	}

	valType, err := c.typeOf(v.Value)
	if err != nil {
		return err
	}
	if !valType.ImplicitlyCastsTo(typ) {
		return c.errAt(v, "specified type %s does not match value type %s", typ, valType)
	}

	vr, err := c.DeclareVariable(v.Name, typ)
	if err != nil {
		return c.errAt(v, "%s", err)
	}

	reg, err := c.compileExpr(v.Value)
	if err != nil {
		return err
	}
	if reg == nil {
		return c.errAt(v.Value, "void expression as variable initialiser")
	}
	reg = c.resizeTo(reg, vr.Size(), typ.Signed())
	c.Emit(&ir.SaveVar{Var: vr, From: reg})
	return nil
}

func (c *Ctx) compileReturn(v *ast.ReturnStmt) error {
	if c.Fn == nil {
		return c.errAt(v, "return outside of a function")
	}
	returns := c.Fn.Type.Returns
	_, void := returns.(types.Void)

	if v.Value == nil {
		if !void {
			return c.errAt(v, "non-void function must return a value")
		}
		c.Emit(&ir.Return{Scope: c.Fn, ArgSize: c.Fn.ArgSize(), Val: ir.Imm(0, 1)})
		return nil
	}

	if void {
		return c.errAt(v, "void function cannot return a value")
	}

	exprType, err := c.typeOf(v.Value)
	if err != nil {
		return err
	}
	if !exprType.ImplicitlyCastsTo(returns) {
		return c.errAt(v, "return type %s cannot be casted to %s", exprType, returns)
	}

	reg, err := c.compileExpr(v.Value)
	if err != nil {
		return err
	}

	reg = c.resizeTo(reg, types.MustSize(returns), returns.Signed())
	c.Emit(&ir.Return{Scope: c.Fn, ArgSize: c.Fn.ArgSize(), Val: reg})
	return nil
}

func (c *Ctx) compileIf(v *ast.IfStmt) error {
	cond, err := c.compileExpr(v.Cond)
	if err != nil {
		return err
	}
	if cond == nil {
		return c.errAt(v.Cond, "void expression as condition")
	}

	end := ir.NewJumpTarget()

	if v.Else != nil {
		// jump over the else body when the condition holds
		then := ir.NewJumpTarget()
		c.Emit(&ir.Jump{To: then, When: cond})
		if err := c.compileStmt(v.Else); err != nil {
			return err
		}
		c.Emit(&ir.Jump{To: end})
		c.Emit(then)
		if err := c.compileBlock(v.Body); err != nil {
			return err
		}
		c.Emit(end)
		return nil
	}

	// no else: skip the body when the condition is zero
	zero := c.GetRegister(1, false)
	c.Emit(&ir.Compare{Left: cond, Right: ir.Imm(0, cond.Size)})
	c.Emit(&ir.SetCmp{Reg: zero, Op: ir.CompEq})
	c.Emit(&ir.Jump{To: end, When: zero})
	if err := c.compileBlock(v.Body); err != nil {
		return err
	}
	c.Emit(end)
	return nil
}

func (c *Ctx) compileWhile(v *ast.WhileStmt) error {
	test := ir.NewJumpTarget()
	cont := ir.NewJumpTarget()
	end := ir.NewJumpTarget()

	c.Emit(test)
	cond, err := c.compileExpr(v.Cond)
	if err != nil {
		return err
	}
	if cond == nil {
		return c.errAt(v.Cond, "void expression as condition")
	}

	c.Emit(&ir.Jump{To: cont, When: cond})
	c.Emit(&ir.Jump{To: end})
	c.Emit(cont)
	if err := c.compileBlock(v.Body); err != nil {
		return err
	}
	c.Emit(&ir.Jump{To: test})
	c.Emit(end)
	return nil
}

// compileBlock compiles a braced block in a fresh scope with its own
// frame space.
func (c *Ctx) compileBlock(b *ast.BlockStmt) error {
	start := 0
	for _, s := range c.scopes {
		start += s.size
	}
	scope := NewScopeAt(start)
	c.pushScope(scope)
	defer c.popScope()

	// inside a function the block's space is part of the frame the
	// prelude reserves; toplevel blocks claim their own stack space
	if c.Fn == nil {
		c.Emit(&ir.Prelude{Scope: scope})
	}
	for _, stmt := range b.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	if c.Fn == nil {
		c.Emit(&ir.Epilog{Scope: scope})
	} else {
		c.Fn.noteExtent(start + scope.size)
	}
	return nil
}
