// Package vm executes packaged binary images on the 16-bit virtual
// machine the compiler targets: a 64KB flat memory, six special registers
// plus a configurable bank of general purpose registers, and a comparison
// flag set fed by tst.
package vm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wewlang/wewc/internal/backend/rustvm"
	"github.com/wewlang/wewc/pkg/ir"
)

// MemorySize is the flat address space of the machine.
const MemorySize = 1 << 16

// DefaultMaxSteps bounds execution so runaway programs terminate.
const DefaultMaxSteps = 10_000_000

// flags holds the operands of the last tst, kept wide enough to compare
// in both signednesses.
type flags struct {
	left, right   uint64
	leftS, rightS int64
}

// Machine is one VM instance.
type Machine struct {
	mem  []byte
	regs []uint64
	fl   flags

	halted bool
	steps  int

	// MaxSteps aborts execution when exceeded; zero means the default.
	MaxSteps int

	in  io.Reader
	out io.Writer
}

// New creates a machine with a program image loaded at address zero.
func New(image []byte, regCount int, in io.Reader, out io.Writer) (*Machine, error) {
	if len(image) > MemorySize {
		return nil, fmt.Errorf("image of %d bytes exceeds memory", len(image))
	}
	m := &Machine{
		mem:  make([]byte, MemorySize),
		regs: make([]uint64, ir.FreeRegOffset+regCount),
		in:   in,
		out:  out,
	}
	copy(m.mem, image)
	return m, nil
}

func (m *Machine) reg(r ir.HWRegister) uint64 { return m.regs[int(r)] }
func (m *Machine) setReg(r ir.HWRegister, v uint64) { m.regs[int(r)] = v }

// Halted reports whether the machine has executed a halt.
func (m *Machine) Halted() bool { return m.halted }

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() int { return m.steps }

func sizeMask(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*size) - 1
}

func signExtend(v uint64, size int) int64 {
	shift := 64 - 8*size
	return int64(v<<shift) >> shift
}

func (m *Machine) readMem(addr, size int) (uint64, error) {
	if addr < 0 || addr+size > MemorySize {
		return 0, fmt.Errorf("read of %d bytes at %d is out of memory", size, addr)
	}
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(m.mem[addr+i])
	}
	return v, nil
}

func (m *Machine) writeMem(addr, size int, v uint64) error {
	if addr < 0 || addr+size > MemorySize {
		return fmt.Errorf("write of %d bytes at %d is out of memory", size, addr)
	}
	for i := 0; i < size; i++ {
		m.mem[addr+i] = byte(v >> (8 * i))
	}
	return nil
}

// param is one decoded instruction argument.
type param struct {
	value int
	isReg bool
	deref bool
}

func decodeParam(word uint16) param {
	return param{
		value: int(word & 0x3FFF),
		isReg: word>>14&1 == 1,
		deref: word>>15&1 == 1,
	}
}

func (m *Machine) fetchWord() (uint16, error) {
	ip := int(m.reg(ir.RegIP))
	if ip+2 > MemorySize {
		return 0, fmt.Errorf("instruction fetch at %d is out of memory", ip)
	}
	w := binary.LittleEndian.Uint16(m.mem[ip:])
	m.setReg(ir.RegIP, uint64(ip+2))
	return w, nil
}

// address computes the memory location a dereferencing parameter points
// at.
func (m *Machine) address(p param) (int, error) {
	if !p.isReg {
		return p.value, nil
	}
	if p.value >= len(m.regs) {
		return 0, fmt.Errorf("no register %d", p.value)
	}
	return int(m.regs[p.value] & 0xFFFF), nil
}

// load reads a parameter's value at the given width.
func (m *Machine) load(p param, size int) (uint64, error) {
	if p.deref {
		addr, err := m.address(p)
		if err != nil {
			return 0, err
		}
		return m.readMem(addr, size)
	}
	if p.isReg {
		if p.value >= len(m.regs) {
			return 0, fmt.Errorf("no register %d", p.value)
		}
		return m.regs[p.value] & sizeMask(size), nil
	}
	return uint64(p.value), nil
}

// store writes a parameter's destination at the given width. Register
// writes replace only the low bytes the width covers.
func (m *Machine) store(p param, size int, v uint64) error {
	if p.deref {
		addr, err := m.address(p)
		if err != nil {
			return err
		}
		return m.writeMem(addr, size, v&sizeMask(size))
	}
	if !p.isReg {
		return fmt.Errorf("store into immediate %d", p.value)
	}
	if p.value >= len(m.regs) {
		return fmt.Errorf("no register %d", p.value)
	}
	mask := sizeMask(size)
	m.regs[p.value] = m.regs[p.value]&^mask | v&mask
	return nil
}

func (m *Machine) push(size int, v uint64) error {
	stk := int(m.reg(ir.RegStk))
	if err := m.writeMem(stk, size, v); err != nil {
		return err
	}
	m.setReg(ir.RegStk, uint64(stk+size))
	return nil
}

func (m *Machine) pop(size int) (uint64, error) {
	stk := int(m.reg(ir.RegStk)) - size
	v, err := m.readMem(stk, size)
	if err != nil {
		return 0, err
	}
	m.setReg(ir.RegStk, uint64(stk))
	return v, nil
}

// compareHolds evaluates a set/jump condition against the last tst.
func (m *Machine) compareHolds(op ir.CompOp) (bool, error) {
	f := m.fl
	switch op {
	case ir.CompLeq:
		return f.left <= f.right, nil
	case ir.CompLt:
		return f.left < f.right, nil
	case ir.CompEq:
		return f.left == f.right, nil
	case ir.CompNeq:
		return f.left != f.right, nil
	case ir.CompGt:
		return f.left > f.right, nil
	case ir.CompGeq:
		return f.left >= f.right, nil
	case ir.CompUncond:
		return true, nil
	case ir.CompLeqS:
		return f.leftS <= f.rightS, nil
	case ir.CompLtS:
		return f.leftS < f.rightS, nil
	case ir.CompGtS:
		return f.leftS > f.rightS, nil
	case ir.CompGeqS:
		return f.leftS >= f.rightS, nil
	}
	return false, fmt.Errorf("invalid comparison operation %d", op)
}

func binaryResult(op rustvm.Opcode, left, right uint64, size int) (uint64, error) {
	switch op {
	case rustvm.OpAdd:
		return left + right, nil
	case rustvm.OpSub:
		return left - right, nil
	case rustvm.OpMul:
		return left * right, nil
	case rustvm.OpUDiv:
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return left / right, nil
	case rustvm.OpIDiv:
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return uint64(signExtend(left, size) / signExtend(right, size)), nil
	case rustvm.OpShl:
		return left << (right & 63), nil
	case rustvm.OpShr:
		return left >> (right & 63), nil
	case rustvm.OpSar:
		return uint64(signExtend(left, size) >> (right & 63)), nil
	case rustvm.OpAnd:
		return left & right, nil
	case rustvm.OpOr:
		return left | right, nil
	case rustvm.OpXor:
		return left ^ right, nil
	}
	return 0, fmt.Errorf("not a binary opcode: %s", op)
}

// Step executes a single instruction.
func (m *Machine) Step() error {
	if m.halted {
		return fmt.Errorf("machine is halted")
	}
	m.steps++

	word, err := m.fetchWord()
	if err != nil {
		return err
	}
	op := rustvm.Opcode(word >> 2)
	size := 1 << (word & 3)

	params := func(n int) ([]param, error) {
		out := make([]param, n)
		for i := range out {
			w, err := m.fetchWord()
			if err != nil {
				return nil, err
			}
			out[i] = decodeParam(w)
		}
		return out, nil
	}

	switch {
	case op >= rustvm.OpAdd && op <= rustvm.OpXor:
		ps, err := params(3)
		if err != nil {
			return err
		}
		left, err := m.load(ps[0], size)
		if err != nil {
			return err
		}
		right, err := m.load(ps[1], size)
		if err != nil {
			return err
		}
		res, err := binaryResult(op, left, right, size)
		if err != nil {
			return err
		}
		return m.store(ps[2], size, res)

	case op == rustvm.OpNeg || op == rustvm.OpPos || op == rustvm.OpNot:
		ps, err := params(1)
		if err != nil {
			return err
		}
		v, err := m.load(ps[0], size)
		if err != nil {
			return err
		}
		switch op {
		case rustvm.OpNeg:
			v = -v
		case rustvm.OpNot:
			v = ^v
		}
		return m.store(ps[0], size, v)

	case op == rustvm.OpMov:
		ps, err := params(2)
		if err != nil {
			return err
		}
		v, err := m.load(ps[1], size)
		if err != nil {
			return err
		}
		return m.store(ps[0], size, v)

	case op == rustvm.OpSxu || op == rustvm.OpSxi:
		ps, err := params(3)
		if err != nil {
			return err
		}
		srcSize := ps[2].value
		v, err := m.load(ps[1], srcSize)
		if err != nil {
			return err
		}
		if op == rustvm.OpSxi {
			v = uint64(signExtend(v, srcSize))
		}
		return m.store(ps[0], size, v&sizeMask(size))

	case op == rustvm.OpJmp:
		ps, err := params(2)
		if err != nil {
			return err
		}
		cond, err := m.load(ps[0], size)
		if err != nil {
			return err
		}
		if cond == 0 {
			return nil
		}
		target, err := m.load(ps[1], 2)
		if err != nil {
			return err
		}
		m.setReg(ir.RegIP, target)
		return nil

	case op == rustvm.OpSet:
		ps, err := params(2)
		if err != nil {
			return err
		}
		holds, err := m.compareHolds(ir.CompOp(ps[1].value))
		if err != nil {
			return err
		}
		v := uint64(0)
		if holds {
			v = 1
		}
		return m.store(ps[0], size, v)

	case op == rustvm.OpTst:
		ps, err := params(2)
		if err != nil {
			return err
		}
		left, err := m.load(ps[0], size)
		if err != nil {
			return err
		}
		right, err := m.load(ps[1], size)
		if err != nil {
			return err
		}
		m.fl = flags{
			left: left, right: right,
			leftS: signExtend(left, size), rightS: signExtend(right, size),
		}
		return nil

	case op == rustvm.OpHalt:
		m.halted = true
		return nil

	case op == rustvm.OpStks:
		ps, err := params(1)
		if err != nil {
			return err
		}
		v, err := m.load(ps[0], 2)
		if err != nil {
			return err
		}
		m.setReg(ir.RegStk, v)
		m.setReg(ir.RegBas, v)
		return nil

	case op == rustvm.OpPush:
		ps, err := params(1)
		if err != nil {
			return err
		}
		v, err := m.load(ps[0], size)
		if err != nil {
			return err
		}
		return m.push(size, v)

	case op == rustvm.OpPop:
		ps, err := params(1)
		if err != nil {
			return err
		}
		v, err := m.pop(size)
		if err != nil {
			return err
		}
		return m.store(ps[0], size, v)

	case op == rustvm.OpCall:
		ps, err := params(1)
		if err != nil {
			return err
		}
		target, err := m.load(ps[0], 2)
		if err != nil {
			return err
		}
		if err := m.push(2, m.reg(ir.RegIP)); err != nil {
			return err
		}
		if err := m.push(2, m.reg(ir.RegBas)); err != nil {
			return err
		}
		m.setReg(ir.RegBas, m.reg(ir.RegStk))
		m.setReg(ir.RegIP, target)
		return nil

	case op == rustvm.OpRet:
		ps, err := params(1)
		if err != nil {
			return err
		}
		argSize, err := m.load(ps[0], 2)
		if err != nil {
			return err
		}
		m.setReg(ir.RegStk, m.reg(ir.RegBas))
		bas, err := m.pop(2)
		if err != nil {
			return err
		}
		m.setReg(ir.RegBas, bas)
		retAddr, err := m.pop(2)
		if err != nil {
			return err
		}
		m.setReg(ir.RegIP, retAddr)
		m.setReg(ir.RegStk, m.reg(ir.RegStk)-argSize)
		return nil

	case op == rustvm.OpGetc:
		ps, err := params(1)
		if err != nil {
			return err
		}
		var b [1]byte
		v := uint64(0xFF) // end of input
		if m.in != nil {
			if _, err := io.ReadFull(m.in, b[:]); err == nil {
				v = uint64(b[0])
			}
		}
		return m.store(ps[0], 1, v)

	case op == rustvm.OpPutc:
		ps, err := params(1)
		if err != nil {
			return err
		}
		v, err := m.load(ps[0], 1)
		if err != nil {
			return err
		}
		if m.out != nil {
			if _, err := m.out.Write([]byte{byte(v)}); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("invalid opcode %d at %d", op, m.reg(ir.RegIP)-2)
}

// Run executes until the machine halts or the step limit is hit.
func (m *Machine) Run() error {
	limit := m.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}
	for !m.halted {
		if m.steps >= limit {
			return fmt.Errorf("execution exceeded %d steps", limit)
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// ReturnValue reads the return register at the given width, the value
// main left behind when the machine halted.
func (m *Machine) ReturnValue(size int) uint64 {
	return m.reg(ir.RegRet) & sizeMask(size)
}

// ReadMemory copies size bytes at addr, for inspecting program state
// after a run.
func (m *Machine) ReadMemory(addr, size int) ([]byte, error) {
	if addr < 0 || addr+size > MemorySize {
		return nil, fmt.Errorf("read of %d bytes at %d is out of memory", size, addr)
	}
	out := make([]byte, size)
	copy(out, m.mem[addr:addr+size])
	return out, nil
}
