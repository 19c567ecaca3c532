package ir

import (
	"fmt"
	"strings"
)

// Instr is a single IR instruction.
//
// Registers returns pointers to every virtual register operand so the
// allocator can assign physical registers in place. Pre-instructions are
// spill/restore operations injected in front of an instruction by the
// allocator.
type Instr interface {
	fmt.Stringer

	// Registers returns the virtual register operands of the instruction.
	Registers() []*Register

	// Meta returns the mutable bookkeeping shared by all instructions.
	Meta() *InstrMeta
}

// InstrMeta is allocator bookkeeping embedded in every instruction.
type InstrMeta struct {
	// Pre holds spill/restore instructions to run before this one.
	Pre []Instr

	// Closing holds registers whose last use is this instruction.
	Closing []*Register
}

func (m *InstrMeta) Meta() *InstrMeta { return m }

// InsertPre appends instructions to run before the owner.
func (m *InstrMeta) InsertPre(instrs ...Instr) {
	m.Pre = append(m.Pre, instrs...)
}

// regsOf extracts the virtual registers reachable from operands, looking
// through dereferences.
func regsOf(ops ...Operand) []*Register {
	var out []*Register
	for _, o := range ops {
		switch v := o.(type) {
		case *Register:
			out = append(out, v)
		case Dereference:
			out = append(out, regsOf(v.To)...)
		}
	}
	return out
}

// Mov copies From into To.
type Mov struct {
	InstrMeta
	To   Operand
	From Operand
}

func (i *Mov) Registers() []*Register { return regsOf(i.To, i.From) }
func (i *Mov) String() string         { return fmt.Sprintf("mov %s, %s", i.To, i.From) }

// LoadVar loads a variable into To. If LValue is set the variable's
// address is loaded instead of its value.
type LoadVar struct {
	InstrMeta
	Var    *Variable
	To     Operand
	LValue bool
}

func (i *LoadVar) Registers() []*Register { return regsOf(i.To) }

func (i *LoadVar) String() string {
	if i.LValue {
		return fmt.Sprintf("loadvar %s, &%s", i.To, i.Var.Name)
	}
	return fmt.Sprintf("loadvar %s, %s", i.To, i.Var.Name)
}

// SaveVar stores From into a variable's storage.
type SaveVar struct {
	InstrMeta
	Var  *Variable
	From Operand
}

func (i *SaveVar) Registers() []*Register { return regsOf(i.From) }
func (i *SaveVar) String() string         { return fmt.Sprintf("savevar %s, %s", i.Var.Name, i.From) }

// Unary applies Op to Arg in place.
type Unary struct {
	InstrMeta
	Arg Operand
	Op  UnaryOp
}

func (i *Unary) Registers() []*Register { return regsOf(i.Arg) }
func (i *Unary) String() string         { return fmt.Sprintf("%s %s", i.Op, i.Arg) }

// Binary computes `To = Left Op Right`.
type Binary struct {
	InstrMeta
	Left  Operand
	Right Operand
	Op    BinaryOp
	To    Operand
}

// NewBinary builds a binary instruction; a nil destination defaults to the
// left operand.
func NewBinary(op BinaryOp, left, right, to Operand) *Binary {
	if to == nil {
		to = left
	}
	return &Binary{Left: left, Right: right, Op: op, To: to}
}

func (i *Binary) Registers() []*Register { return regsOf(i.Left, i.Right, i.To) }

func (i *Binary) String() string {
	return fmt.Sprintf("%s %s, %s -> %s", i.Op, i.Left, i.Right, i.To)
}

// Compare compares two operands, setting the VM comparison flags.
type Compare struct {
	InstrMeta
	Left  Operand
	Right Operand
}

func (i *Compare) Registers() []*Register { return regsOf(i.Left, i.Right) }
func (i *Compare) String() string         { return fmt.Sprintf("cmp %s, %s", i.Left, i.Right) }

// SetCmp materializes the result of the last comparison into a register.
type SetCmp struct {
	InstrMeta
	Reg *Register
	Op  CompOp
}

func (i *SetCmp) Registers() []*Register { return []*Register{i.Reg} }
func (i *SetCmp) String() string         { return fmt.Sprintf("set%s %s", i.Op, i.Reg) }

// Push pushes Arg onto the VM stack.
type Push struct {
	InstrMeta
	Arg Operand
}

func (i *Push) Registers() []*Register { return regsOf(i.Arg) }
func (i *Push) String() string         { return fmt.Sprintf("push %s", i.Arg) }

// Pop pops the top of the VM stack into Arg.
type Pop struct {
	InstrMeta
	Arg Operand
}

func (i *Pop) Registers() []*Register { return regsOf(i.Arg) }
func (i *Pop) String() string         { return fmt.Sprintf("pop %s", i.Arg) }

// ScopeInfo is the part of a lexical scope the backend needs: its frame
// size, its spill slots and the callee-saved registers used inside it.
type ScopeInfo interface {
	FrameSize() int
	SavedRegs() []int
	SpillVar(index int) *Variable
}

// Prelude marks a scope entry; desugared into stack setup by the backend.
type Prelude struct {
	InstrMeta
	Scope ScopeInfo
}

func (i *Prelude) Registers() []*Register { return nil }
func (i *Prelude) String() string         { return "prelude" }

// Epilog marks a scope exit.
type Epilog struct {
	InstrMeta
	Scope ScopeInfo
}

func (i *Epilog) Registers() []*Register { return nil }
func (i *Epilog) String() string         { return "epilog" }

// Return leaves the function whose scope is Scope, placing Val in the
// return register. ArgSize bytes of arguments are reclaimed by the ret
// instruction.
type Return struct {
	InstrMeta
	Scope   ScopeInfo
	ArgSize int
	Val     Operand
}

func (i *Return) Registers() []*Register { return regsOf(i.Val) }
func (i *Return) String() string         { return fmt.Sprintf("ret %s", i.Val) }

// Call jumps to a function, pushing the return address. The arguments are
// pushed left to right before the jump.
type Call struct {
	InstrMeta
	Args    []*Register
	ArgSize int
	Fun     Operand
	Result  *Register
}

func (i *Call) Registers() []*Register {
	regs := append([]*Register{}, i.Args...)
	regs = append(regs, regsOf(i.Fun)...)
	if i.Result != nil {
		regs = append(regs, i.Result)
	}
	return regs
}

func (i *Call) String() string {
	return fmt.Sprintf("call %s (args %d) -> %s", i.Fun, i.ArgSize, i.Result)
}

// IO moves one byte between Reg and the machine's character device:
// out writes the register, in reads into it.
type IO struct {
	InstrMeta
	Reg *Register
	Out bool
}

func (i *IO) Registers() []*Register { return []*Register{i.Reg} }

func (i *IO) String() string {
	if i.Out {
		return fmt.Sprintf("putc %s", i.Reg)
	}
	return fmt.Sprintf("getc %s", i.Reg)
}

// JumpTarget is a position in the instruction stream jumps can land on.
type JumpTarget struct {
	InstrMeta
	id int
}

var jumpTargetIDs int

// NewJumpTarget creates a unique jump target.
func NewJumpTarget() *JumpTarget {
	jumpTargetIDs++
	return &JumpTarget{id: jumpTargetIDs}
}

// Identifier returns the unique name of the target for offset resolution.
func (i *JumpTarget) Identifier() string { return fmt.Sprintf("jump-target-%d", i.id) }

func (i *JumpTarget) Registers() []*Register { return nil }
func (i *JumpTarget) String() string         { return i.Identifier() + ":" }

// Jump transfers control to To when the condition operand is nonzero.
// A nil condition jumps unconditionally.
type Jump struct {
	InstrMeta
	To   *JumpTarget
	When Operand
}

func (i *Jump) Registers() []*Register { return regsOf(i.When) }

func (i *Jump) String() string {
	if i.When == nil {
		return fmt.Sprintf("jmp %s", i.To.Identifier())
	}
	return fmt.Sprintf("jmp %s if %s", i.To.Identifier(), i.When)
}

// Resize moves a register into a differently sized view of itself,
// sign- or zero-extending as needed.
type Resize struct {
	InstrMeta
	From *Register
	To   *Register
}

func (i *Resize) Registers() []*Register { return []*Register{i.From, i.To} }
func (i *Resize) String() string         { return fmt.Sprintf("resize %s -> %s", i.From, i.To) }

// Spill stores physical register Reg into spill slot Index. Injected by
// the allocator.
type Spill struct {
	InstrMeta
	Reg   int
	Index int
}

func (i *Spill) Registers() []*Register { return nil }
func (i *Spill) String() string         { return fmt.Sprintf("spill r%d -> slot %d", i.Reg, i.Index) }

// Restore loads spill slot Index back into physical register Reg.
type Restore struct {
	InstrMeta
	Reg   int
	Index int
}

func (i *Restore) Registers() []*Register { return nil }
func (i *Restore) String() string         { return fmt.Sprintf("restore r%d <- slot %d", i.Reg, i.Index) }

// Dump renders a block of IR for display.
func Dump(code []Instr) string {
	var b strings.Builder
	for _, instr := range code {
		if _, ok := instr.(*JumpTarget); ok {
			fmt.Fprintf(&b, "%s\n", instr)
			continue
		}
		fmt.Fprintf(&b, "    %s\n", instr)
	}
	return b.String()
}
