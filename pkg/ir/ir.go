// Package ir defines the compiler's intermediate representation: an
// infinite-register instruction set lowered by the backend onto the target
// VM's hardware registers.
package ir

import (
	"fmt"

	"github.com/wewlang/wewc/pkg/types"
)

// BinaryOp is an arithmetic or bitwise binary operation.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	UDiv
	IDiv
	Shl
	Shr
	Sar
	And
	Or
	Xor
)

var binaryNames = [...]string{"add", "sub", "mul", "udiv", "idiv", "shl", "shr", "sar", "and", "or", "xor"}

func (op BinaryOp) String() string { return binaryNames[op] }

// UnaryOp is a unary operation.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Pos
	Not
)

var unaryNames = [...]string{"neg", "pos", "not"}

func (op UnaryOp) String() string { return unaryNames[op] }

// CompOp is a comparison condition.
type CompOp int

const (
	CompLeq CompOp = iota
	CompLt
	CompEq
	CompNeq
	CompGt
	CompGeq
	CompUncond
	CompLeqS
	CompLtS
	CompGtS
	CompGeqS
)

var compNames = [...]string{"leq", "lt", "eq", "neq", "gt", "geq", "uncond", "leqs", "lts", "gts", "geqs"}

func (op CompOp) String() string { return compNames[op] }

// ---------- operands ----------

// Operand is a value an instruction operates on.
type Operand interface {
	fmt.Stringer
	operand()
}

// Register is a virtual register. The backend assigns Physical during
// allocation; -1 means unallocated. Resized views share the same ID and
// therefore the same storage.
type Register struct {
	ID       int
	Size     int // bytes
	Signed   bool
	Physical int
}

// NewRegister creates an unallocated virtual register.
func NewRegister(id, size int, signed bool) *Register {
	return &Register{ID: id, Size: size, Signed: signed, Physical: -1}
}

// Resized returns a view of the register with a different size or
// signedness. The view shares storage with the original.
func (r *Register) Resized(size int, signed bool) *Register {
	return &Register{ID: r.ID, Size: size, Signed: signed, Physical: r.Physical}
}

func (r *Register) String() string {
	sign := "u"
	if r.Signed {
		sign = "s"
	}
	if r.Physical >= 0 {
		return fmt.Sprintf("%%%d(r%d)%s%d", r.ID, r.Physical, sign, r.Size)
	}
	return fmt.Sprintf("%%%d%s%d", r.ID, sign, r.Size)
}

// Immediate is a constant operand.
type Immediate struct {
	Val  int64
	Size int
}

func Imm(val int64, size int) Immediate { return Immediate{Val: val, Size: size} }

func (i Immediate) String() string { return fmt.Sprintf("imm(%d:%d)", i.Val, i.Size) }

// Dereference reads or writes through the location held in To.
type Dereference struct {
	To   Operand
	Size int
}

func (d Dereference) String() string { return fmt.Sprintf("[%s]:%d", d.To, d.Size) }

// DataRef names an object in the data section whose final location is
// resolved during packaging.
type DataRef struct {
	Name string
}

func (d DataRef) String() string { return fmt.Sprintf("data(%s)", d.Name) }

// HWRegister is a specific hardware register (stack pointer, base pointer,
// return register, ...).
type HWRegister int

const (
	RegStk HWRegister = iota
	RegBas
	RegIP
	RegRet
	RegAcc1
	RegAcc2
)

// FreeRegOffset is the hardware index of the first general purpose
// register; allocated registers are encoded relative to it.
const FreeRegOffset = 6

var hwNames = [...]string{"stk", "bas", "ip", "ret", "acc1", "acc2"}

func (r HWRegister) String() string { return hwNames[r] }

func (*Register) operand()   {}
func (Immediate) operand()   {}
func (Dereference) operand() {}
func (DataRef) operand()     {}
func (HWRegister) operand()  {}

// OperandSize returns the width in bytes of an operand, defaulting to the
// pointer size for location operands.
func OperandSize(o Operand) int {
	switch v := o.(type) {
	case *Register:
		return v.Size
	case Immediate:
		return v.Size
	case Dereference:
		return v.Size
	default:
		return types.PointerSize
	}
}

// ---------- variables ----------

// Variable is a named storage location: either on the stack (StackOffset
// relative to the base pointer) or in the data section (GlobalRef).
type Variable struct {
	Name string
	Type types.Type

	HasStackOffset bool
	StackOffset    int

	GlobalRef *DataRef

	// LValueIsRValue marks storage whose address is its value, such as
	// arrays and functions. Taking an lvalue of these is an error.
	LValueIsRValue bool
}

// Size returns the storage size of the variable.
func (v *Variable) Size() int { return types.MustSize(v.Type) }

func (v *Variable) String() string {
	return fmt.Sprintf("var(%s: %s)", v.Name, v.Type)
}
