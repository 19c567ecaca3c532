// Package rustvm lowers compiled IR onto the 16-bit stack VM: register
// allocation, desugaring, instruction encoding and final packaging into a
// flat binary image.
package rustvm

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/wewlang/wewc/pkg/ir"
)

// Opcode is a hardware instruction opcode. The opcode space is flat:
// binary arithmetic first, then unary, cpu manipulation, memory and io.
type Opcode int

const (
	// binary instructions
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpUDiv
	OpIDiv
	OpShl
	OpShr
	OpSar
	OpAnd
	OpOr
	OpXor

	// unary instructions
	OpNeg
	OpPos
	OpNot

	// cpu manipulation
	OpMov
	OpSxu
	OpSxi
	OpJmp
	OpSet
	OpTst
	OpHalt

	// memory manipulation
	OpStks
	OpPush
	OpPop
	OpCall
	OpRet

	// io
	OpGetc
	OpPutc

	opCount
)

var opcodeNames = [...]string{
	"add", "sub", "mul", "udiv", "idiv", "shl", "shr", "sar", "and", "or", "xor",
	"neg", "pos", "not",
	"mov", "sxu", "sxi", "jmp", "set", "tst", "halt",
	"stks", "push", "pop", "call", "ret",
	"getc", "putc",
}

func (o Opcode) String() string { return opcodeNames[o] }

// binaryOpcodes maps IR binary operations onto opcodes in declaration
// order.
func binaryOpcode(op ir.BinaryOp) Opcode { return OpAdd + Opcode(op) }

func unaryOpcode(op ir.UnaryOp) Opcode { return OpNeg + Opcode(op) }

// MemLoc is a resolved absolute address in the packaged binary.
type MemLoc int

func (m MemLoc) String() string { return fmt.Sprintf("@%d", int(m)) }

// HWRegisterIndex converts a hardware register to its encoded index.
func HWRegisterIndex(r ir.HWRegister) int { return int(r) }

// HWInstruction is a fully lowered instruction: an opcode, the operand
// width it acts on and its packed arguments.
type HWInstruction struct {
	Op   Opcode
	Size int
	Args []any // ir.Immediate, *ir.Register, ir.HWRegister, ir.Dereference, ir.DataRef, *ir.JumpTarget, MemLoc
}

// CodeSize returns the encoded size of the instruction in bytes: one word
// for the opcode plus one word per argument.
func (h *HWInstruction) CodeSize() int { return 2 + 2*len(h.Args) }

func (h *HWInstruction) String() string {
	args := make([]string, len(h.Args))
	for i, a := range h.Args {
		args[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s%d %s", h.Op, h.Size, strings.Join(args, ", "))
}

// packParam packs a single argument word: a 14-bit value with register
// and dereference flags in the top bits.
func packParam(value int, isReg, deref bool) []byte {
	word := uint16(value) & 0x3FFF
	if isReg {
		word |= 1 << 14
	}
	if deref {
		word |= 1 << 15
	}
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, word)
	return out
}

// packInstruction packs the opcode word: the opcode shifted over the log2
// of the operand size.
func packInstruction(h *HWInstruction) []byte {
	word := uint16(h.Op)<<2 | uint16(bits.TrailingZeros(uint(h.Size)))
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, word)
	return out
}

// packArg packs one resolved argument of an instruction.
func packArg(arg any) ([]byte, error) {
	switch v := arg.(type) {
	case ir.Immediate:
		return packParam(int(v.Val), false, false), nil

	case MemLoc:
		return packParam(int(v), false, false), nil

	case *ir.Register:
		if v.Physical < 0 {
			return nil, fmt.Errorf("virtual register %s was never allocated", v)
		}
		return packParam(v.Physical+ir.FreeRegOffset, true, false), nil

	case ir.HWRegister:
		return packParam(int(v), true, false), nil

	case MemDeref:
		return packParam(int(v.Loc), false, true), nil

	case ir.Dereference:
		switch to := v.To.(type) {
		case ir.Immediate:
			return packParam(int(to.Val), false, true), nil
		case *ir.Register:
			if to.Physical < 0 {
				return nil, fmt.Errorf("virtual register %s was never allocated", to)
			}
			return packParam(to.Physical+ir.FreeRegOffset, true, true), nil
		case ir.HWRegister:
			return packParam(int(to), true, true), nil
		}
		return nil, fmt.Errorf("cannot pack dereference of %T", v.To)
	}
	return nil, fmt.Errorf("cannot pack argument %v of type %T", arg, arg)
}
