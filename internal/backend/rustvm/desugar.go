package rustvm

import (
	"fmt"

	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// desugarer rewrites variable accesses and calls into address arithmetic
// before register allocation. Temporary registers continue the virtual
// numbering of the object being lowered.
type desugarer struct {
	nextReg int
}

func newDesugarer(code []ir.Instr) *desugarer {
	max := -1
	for _, instr := range code {
		for _, reg := range instr.Registers() {
			if reg.ID > max {
				max = reg.ID
			}
		}
	}
	return &desugarer{nextReg: max + 1}
}

func (d *desugarer) tempRegister(size int) *ir.Register {
	reg := ir.NewRegister(d.nextReg, size, false)
	d.nextReg++
	return reg
}

// variableAddress emits instructions leaving the address of v in a fresh
// pointer-sized register.
func (d *desugarer) variableAddress(v *ir.Variable) ([]ir.Instr, *ir.Register, error) {
	addr := d.tempRegister(types.PointerSize)

	switch {
	case v.HasStackOffset:
		out := []ir.Instr{&ir.Mov{To: addr, From: ir.RegBas}}
		if off := v.StackOffset; off >= 0 {
			out = append(out, ir.NewBinary(ir.Add, addr, ir.Imm(int64(off), types.PointerSize), nil))
		} else {
			out = append(out, ir.NewBinary(ir.Sub, addr, ir.Imm(int64(-off), types.PointerSize), nil))
		}
		return out, addr, nil

	case v.GlobalRef != nil:
		return []ir.Instr{&ir.Mov{To: addr, From: *v.GlobalRef}}, addr, nil
	}
	return nil, nil, fmt.Errorf("variable %s has no storage location", v.Name)
}

func (d *desugarer) loadVar(load *ir.LoadVar) ([]ir.Instr, error) {
	out, addr, err := d.variableAddress(load.Var)
	if err != nil {
		return nil, err
	}

	switch {
	case load.LValue:
		if load.Var.LValueIsRValue {
			return nil, fmt.Errorf("variable %s has no lvalue to load", load.Var.Name)
		}
		out = append(out, &ir.Mov{To: load.To, From: addr})

	case load.Var.LValueIsRValue:
		// the address of arrays and functions is their value
		out = append(out, &ir.Mov{To: load.To, From: addr})

	default:
		out = append(out, &ir.Mov{To: load.To, From: ir.Dereference{To: addr, Size: ir.OperandSize(load.To)}})
	}
	return out, nil
}

func (d *desugarer) saveVar(save *ir.SaveVar) ([]ir.Instr, error) {
	if save.Var.LValueIsRValue {
		return nil, fmt.Errorf("variable %s cannot be stored to directly", save.Var.Name)
	}
	out, addr, err := d.variableAddress(save.Var)
	if err != nil {
		return nil, err
	}
	return append(out, &ir.Mov{To: ir.Dereference{To: addr, Size: save.Var.Size()}, From: save.From}), nil
}

// DesugarPre rewrites LoadVar, SaveVar and call argument passing into
// plain moves and pushes. It runs before register allocation so the
// temporaries it introduces take part in allocation.
func DesugarPre(code []ir.Instr) ([]ir.Instr, error) {
	d := newDesugarer(code)

	out := make([]ir.Instr, 0, len(code))
	for _, instr := range code {
		switch v := instr.(type) {
		case *ir.LoadVar:
			lowered, err := d.loadVar(v)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)

		case *ir.SaveVar:
			lowered, err := d.saveVar(v)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)

		case *ir.Call:
			for _, arg := range v.Args {
				out = append(out, &ir.Push{Arg: arg})
			}
			out = append(out, v)

		default:
			out = append(out, instr)
		}
	}
	return out, nil
}

// allocatedRegister builds an operand referring to a hardware register
// directly, used for save and restore sequences emitted after allocation.
func allocatedRegister(physical, size int) *ir.Register {
	return &ir.Register{ID: -1, Size: size, Signed: false, Physical: physical}
}

// DesugarPost expands scope markers into stack adjustment and register
// save/restore code. It runs after allocation, once the set of hardware
// registers each scope touches is known.
func DesugarPost(code []ir.Instr) []ir.Instr {
	out := make([]ir.Instr, 0, len(code))
	for _, instr := range code {
		switch v := instr.(type) {
		case *ir.Prelude:
			if size := v.Scope.FrameSize(); size > 0 {
				out = append(out, ir.NewBinary(ir.Add, ir.RegStk, ir.Imm(int64(size), types.PointerSize), nil))
			}
			for _, reg := range v.Scope.SavedRegs() {
				out = append(out, &ir.Push{Arg: allocatedRegister(reg, 8)})
			}

		case *ir.Epilog:
			saved := v.Scope.SavedRegs()
			for i := len(saved) - 1; i >= 0; i-- {
				out = append(out, &ir.Pop{Arg: allocatedRegister(saved[i], 8)})
			}
			if size := v.Scope.FrameSize(); size > 0 {
				out = append(out, ir.NewBinary(ir.Sub, ir.RegStk, ir.Imm(int64(size), types.PointerSize), nil))
			}

		default:
			out = append(out, instr)
		}
	}
	return out
}
