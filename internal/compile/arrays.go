package compile

import (
	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// Array literals are built at runtime: the literal claims a backing
// location (given by a variable declaration, or a hidden local otherwise)
// and writes its elements through a walking pointer. Nested array types
// inline their elements into the same backing store; pointer element
// types store a reference per element.

// arrayLitStorage determines the storage type a literal needs when built
// as a value of want. A nil want infers everything from the literal.
func (c *Ctx) arrayLitStorage(lit *ast.ArrayLit, want types.Type) (types.Array, error) {
	if len(lit.Elems) == 0 {
		return types.Array{}, c.errAt(lit, "empty array literal has no type")
	}

	var elem types.Type
	length := len(lit.Elems)

	switch w := want.(type) {
	case nil:
		t, err := c.typeOf(lit.Elems[0])
		if err != nil {
			return types.Array{}, err
		}
		elem = t

	case types.Array:
		elem = w.To
		if w.Length >= 0 {
			if w.Length < length {
				return types.Array{}, c.errAt(lit,
					"length of this array is constrained to %d", w.Length)
			}
			length = w.Length
		}

	case types.Pointer:
		elem = w.To

	default:
		return types.Array{}, c.errAt(lit, "cannot build array literal as type %s", want)
	}

	// a nested array element without length information takes its
	// length from the first element literal
	if inner, ok := elem.(types.Array); ok && inner.Length < 0 {
		first, ok := lit.Elems[0].(*ast.ArrayLit)
		if !ok {
			return types.Array{}, c.errAt(lit.Elems[0],
				"element of a nested array literal must be an array literal")
		}
		inner.Length = len(first.Elems)
		elem = inner
	}

	return types.Array{To: elem, Length: length}, nil
}

// compileArrayLit builds an array literal into storage, allocating a
// hidden local when storage is nil, and returns the base address.
func (c *Ctx) compileArrayLit(lit *ast.ArrayLit, want types.Type, storage *ir.Variable) (*ir.Register, error) {
	typ, err := c.arrayLitStorage(lit, want)
	if err != nil {
		return nil, err
	}

	if storage == nil {
		storage, err = c.declareUnique(typ)
		if err != nil {
			return nil, c.errAt(lit, "%s", err)
		}
		storage.LValueIsRValue = true
	}

	base := c.GetRegister(types.PointerSize, false)
	index := c.GetRegister(types.PointerSize, false)
	c.Emit(&ir.LoadVar{Var: storage, To: base})
	c.Emit(&ir.Mov{To: index, From: base})

	if err := c.writeArrayElems(lit, typ, index); err != nil {
		return nil, err
	}
	return base, nil
}

// writeArrayElems writes a literal's elements through index, advancing it
// past any zero-fill tail implied by a constrained length.
func (c *Ctx) writeArrayElems(lit *ast.ArrayLit, typ types.Array, index *ir.Register) error {
	if inner, ok := typ.To.(types.Array); ok {
		for _, e := range lit.Elems {
			nested, ok := e.(*ast.ArrayLit)
			if !ok {
				return c.errAt(e, "element of a nested array literal must be an array literal")
			}
			if inner.Length >= 0 && len(nested.Elems) > inner.Length {
				return c.errAt(nested,
					"length of this array is constrained to %d", inner.Length)
			}
			if err := c.writeArrayElems(nested, inner, index); err != nil {
				return err
			}
		}
	} else {
		for _, e := range lit.Elems {
			elemType, err := c.typeOf(e)
			if err != nil {
				return err
			}
			if !elemType.ImplicitlyCastsTo(typ.To) {
				return c.errAt(e,
					"cannot implicitly cast array element from type %s to type %s",
					elemType, typ.To)
			}

			reg, err := c.compileExpr(e)
			if err != nil {
				return err
			}
			reg = c.resizeTo(reg, types.MustSize(typ.To), typ.To.Signed())

			c.Emit(&ir.Mov{To: ir.Dereference{To: index, Size: reg.Size}, From: reg})
			c.Emit(ir.NewBinary(ir.Add, index,
				ir.Imm(int64(reg.Size), types.PointerSize), nil))
		}
	}

	if fill := typ.Length - len(lit.Elems); fill > 0 {
		step := int64(fill * types.MustSize(typ.To))
		c.Emit(ir.NewBinary(ir.Add, index, ir.Imm(step, index.Size), nil))
	}
	return nil
}
