package compile

import (
	"fmt"

	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// Scope is a lexical scope holding stack-allocated variables. Variable
// offsets are relative to the base pointer; the frame grows as variables
// are declared.
type Scope struct {
	vars map[string]*ir.Variable
	size int

	// start is the base pointer offset where this scope's variables
	// begin, so nested scopes never overlap their enclosing frame.
	start int

	// hardware registers used inside this scope, saved by the
	// prelude/epilog once the backend has allocated them
	savedRegs []int
}

// NewScope creates an empty scope rooted at the base pointer.
func NewScope() *Scope {
	return NewScopeAt(0)
}

// NewScopeAt creates an empty scope whose variables begin at the given
// base pointer offset.
func NewScopeAt(start int) *Scope {
	return &Scope{vars: make(map[string]*ir.Variable), start: start}
}

// Lookup finds a variable declared in this scope, or nil.
func (s *Scope) Lookup(name string) *ir.Variable {
	return s.vars[name]
}

// Declare adds a variable to the scope, reserving frame space for it.
// Redeclaring with an identical type returns the existing variable;
// a conflicting type is an error.
func (s *Scope) Declare(name string, typ types.Type) (*ir.Variable, error) {
	if existing := s.vars[name]; existing != nil {
		if !existing.Type.Equal(typ) {
			return nil, fmt.Errorf(
				"variable %s of type '%s' is already declared as type '%s'",
				name, typ, existing.Type)
		}
		return existing, nil
	}

	size, err := typ.Size()
	if err != nil {
		return nil, err
	}

	v := &ir.Variable{
		Name:           name,
		Type:           typ,
		HasStackOffset: true,
		StackOffset:    s.start + s.size,
	}
	s.vars[name] = v
	s.size += size
	return v, nil
}

func spillName(i int) string { return fmt.Sprintf("spill-var-%d", i) }

// FrameSize implements ir.ScopeInfo.
func (s *Scope) FrameSize() int { return s.size }

// SavedRegs implements ir.ScopeInfo.
func (s *Scope) SavedRegs() []int { return s.savedRegs }

// SetSavedRegs records the callee-saved registers for this scope.
func (s *Scope) SetSavedRegs(regs []int) { s.savedRegs = regs }

// SpillVar implements ir.ScopeInfo.
func (s *Scope) SpillVar(index int) *ir.Variable {
	return s.Lookup(spillName(index))
}

// Function is the compiled form of a function declaration: its own scope
// for locals plus parameters addressed below the base pointer.
//
// Stack shape on entry, base pointer at the first local:
//
//	| p1 | p2 | ... | return_addr | stored_base_pointer | v1 | v2 | ...
//	                                                      ^ bas
type Function struct {
	*Scope
	Name   string
	Type   types.Func
	params map[string]*ir.Variable

	// extent is the deepest base pointer offset any nested block
	// reached, so spill slots land above every live variable.
	extent int
}

// NewFunction lays out parameters below the base pointer and builds the
// function's root scope.
func NewFunction(name string, params []string, typ types.Func) *Function {
	f := &Function{
		Scope:  NewScope(),
		Name:   name,
		Type:   typ,
		params: make(map[string]*ir.Variable, len(params)),
	}

	// return address and saved base pointer sit between the parameters
	// and the locals, so offsets accumulate right to left
	offset := 2 * types.PointerSize
	for i := len(params) - 1; i >= 0; i-- {
		offset += types.MustSize(typ.Params[i])
		f.params[params[i]] = &ir.Variable{
			Name:           params[i],
			Type:           typ.Params[i],
			HasStackOffset: true,
			StackOffset:    -offset,
		}
	}
	return f
}

// noteExtent records the frame depth a nested block reached.
func (f *Function) noteExtent(n int) {
	if n > f.extent {
		f.extent = n
	}
}

// FrameSize implements ir.ScopeInfo. The function's prelude reserves the
// whole frame at once: its own locals, the deepest nested block and any
// spill slots.
func (f *Function) FrameSize() int {
	if f.extent > f.Scope.size {
		return f.extent
	}
	return f.Scope.size
}

// AddSpillVars reserves n 8-byte spill slots above the deepest part of
// the frame.
func (f *Function) AddSpillVars(n int) {
	base := f.FrameSize()
	for i := 0; i < n; i++ {
		name := spillName(i)
		f.vars[name] = &ir.Variable{
			Name:           name,
			Type:           types.IntOfSize(8, false),
			HasStackOffset: true,
			StackOffset:    base + 8*i,
		}
	}
	f.extent = base + 8*n
}

// Lookup finds a local or a parameter.
func (f *Function) Lookup(name string) *ir.Variable {
	if v := f.Scope.Lookup(name); v != nil {
		return v
	}
	return f.params[name]
}

// ArgSize returns the total size of the function's parameters in bytes.
func (f *Function) ArgSize() int {
	total := 0
	for _, p := range f.Type.Params {
		total += types.MustSize(p)
	}
	return total
}
