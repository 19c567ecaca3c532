package compile

import (
	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// Ctx is the state threaded through compilation of one object: the active
// scope stack, the emitted IR and the virtual register counter.
type Ctx struct {
	Compiler *Compiler

	// Fn is the function being compiled, nil for toplevel code.
	Fn *Function

	Code []ir.Instr

	scopes   []*Scope
	regsUsed int
}

func newCtx(c *Compiler, fn *Function) *Ctx {
	return &Ctx{Compiler: c, Fn: fn}
}

// Emit appends an instruction to the object's code.
func (c *Ctx) Emit(instr ir.Instr) ir.Instr {
	c.Code = append(c.Code, instr)
	return instr
}

// GetRegister allocates a fresh virtual register.
func (c *Ctx) GetRegister(size int, signed bool) *ir.Register {
	reg := ir.NewRegister(c.regsUsed, size, signed)
	c.regsUsed++
	return reg
}

func (c *Ctx) pushScope(s *Scope) { c.scopes = append(c.scopes, s) }
func (c *Ctx) popScope()          { c.scopes = c.scopes[:len(c.scopes)-1] }

// currentScope returns the innermost scope, or nil at toplevel.
func (c *Ctx) currentScope() *Scope {
	if len(c.scopes) == 0 {
		return nil
	}
	return c.scopes[len(c.scopes)-1]
}

// LookupVariable resolves a name against the scope stack, function
// parameters and globals, in that order. Returns nil when unknown.
func (c *Ctx) LookupVariable(name string) *ir.Variable {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v := c.scopes[i].Lookup(name); v != nil {
			return v
		}
	}
	if c.Fn != nil {
		if v := c.Fn.params[name]; v != nil {
			return v
		}
	}
	return c.Compiler.LookupGlobal(name)
}

// DeclareVariable declares a name in the innermost scope, or as a global
// at toplevel.
func (c *Ctx) DeclareVariable(name string, typ types.Type) (*ir.Variable, error) {
	if s := c.currentScope(); s != nil {
		return s.Declare(name, typ)
	}
	return c.Compiler.DeclareGlobal(name, typ)
}

// declareUnique declares an anonymous storage slot, used for array
// literals that need a backing location.
func (c *Ctx) declareUnique(typ types.Type) (*ir.Variable, error) {
	return c.DeclareVariable(c.Compiler.uniqueName(), typ)
}

// errAt builds a compile error pointing at a node's source span.
func (c *Ctx) errAt(node ast.Node, format string, args ...any) *Error {
	return c.Compiler.source.errAt(node, format, args...)
}
