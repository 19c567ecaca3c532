package compile

import (
	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// putc and getc map directly onto the machine's character device and have no
// wew-level declaration. A user definition of either name shadows the
// intrinsic.
func (c *Ctx) intrinsicName(fun ast.Expr) (string, bool) {
	id, ok := fun.(*ast.Ident)
	if !ok {
		return "", false
	}
	if id.Name != "putc" && id.Name != "getc" {
		return "", false
	}
	if c.LookupVariable(id.Name) != nil || c.Compiler.hasPending(id.Name) {
		return "", false
	}
	return id.Name, true
}

func intrinsicReturns(name string) types.Type {
	if name == "getc" {
		return types.IntOfSize(1, false)
	}
	return types.Void{}
}

func (c *Ctx) compileIntrinsic(v *ast.CallExpr, name string) (*ir.Register, error) {
	switch name {
	case "putc":
		if len(v.Args) != 1 {
			return nil, c.errAt(v, "incorrect number of args to function: expected 1 got %d", len(v.Args))
		}
		argType, err := c.typeOf(v.Args[0])
		if err != nil {
			return nil, err
		}
		want := types.IntOfSize(1, false)
		if !argType.ImplicitlyCastsTo(want) {
			return nil, c.errAt(v.Args[0],
				"argument 0 to call was of type %s instead of expected %s and cannot be casted",
				argType, want)
		}
		reg, err := c.compileExpr(v.Args[0])
		if err != nil {
			return nil, err
		}
		c.Emit(&ir.IO{Reg: c.resizeTo(reg, 1, false), Out: true})
		return nil, nil

	case "getc":
		if len(v.Args) != 0 {
			return nil, c.errAt(v, "incorrect number of args to function: expected 0 got %d", len(v.Args))
		}
		reg := c.GetRegister(1, false)
		c.Emit(&ir.IO{Reg: reg})
		return reg, nil
	}
	return nil, internalf("unknown intrinsic %s", name)
}
