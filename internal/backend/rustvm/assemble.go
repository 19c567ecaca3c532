package rustvm

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wewlang/wewc/internal/compile"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

// DefaultRegCount is the number of general purpose registers the VM
// exposes by default.
const DefaultRegCount = 10

// maxImmediate is the largest value a packed parameter word can carry.
// Larger or negative immediates move to the data section.
const maxImmediate = 0x3FFF

// labels resolved during packaging
const (
	toplevelLabel = "toplevel-code"
	dataLabel     = "program-data"
	mainFunc      = "main"
)

// Program is a packaged binary image plus the locations of its named
// parts: data items, toplevel code and functions.
type Program struct {
	Binary  []byte
	Offsets map[string]int
}

// AllocateProgram lowers every compiled object through desugaring and
// register allocation, reserving spill storage and recording the hardware
// registers each function touches.
func AllocateProgram(comp *compile.Compiler, regCount int) error {
	if regCount < 1 {
		return fmt.Errorf("cannot allocate over %d registers", regCount)
	}

	toplevelSpills := 0
	for _, obj := range comp.Objects() {
		code, err := DesugarPre(obj.Code)
		if err != nil {
			return fmt.Errorf("%s: %w", obj.Name, err)
		}
		state, err := Allocate(regCount, code)
		if err != nil {
			return fmt.Errorf("%s: %w", obj.Name, err)
		}

		if obj.Fn != nil {
			// spill slots grow the frame, so reserve them before the
			// prelude's stack adjustment is materialized
			obj.Fn.AddSpillVars(state.SpillSlots())
			obj.Fn.SetSavedRegs(usedRegisters(code))
		} else if state.SpillSlots() > toplevelSpills {
			toplevelSpills = state.SpillSlots()
		}

		code = DesugarPost(code)
		if err := processImmediates(comp, code); err != nil {
			return fmt.Errorf("%s: %w", obj.Name, err)
		}
		obj.Code = code
	}

	// toplevel code spills into the data section rather than a frame
	comp.AddSpillVars(toplevelSpills)
	return nil
}

// ObjectCode is the lowered instruction listing of one object, with data
// references and jump targets left symbolic.
type ObjectCode struct {
	Name   string
	Instrs []*HWInstruction
}

// Encode lowers a compiled program to hardware instructions without laying
// out an image, for display. The compiler is consumed the same way
// Assemble consumes it.
func Encode(comp *compile.Compiler, regCount int) ([]ObjectCode, error) {
	if err := AllocateProgram(comp, regCount); err != nil {
		return nil, err
	}

	fns, toplevel := comp.Functions()

	var out []ObjectCode
	for _, obj := range toplevel {
		enc, err := encodeObject(obj.Name, obj.Code, comp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", obj.Name, err)
		}
		out = append(out, ObjectCode{Name: obj.Name, Instrs: enc.instrs})
	}
	for _, obj := range fns {
		enc, err := encodeObject(obj.Name, obj.Code, obj.Fn)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", obj.Name, err)
		}
		out = append(out, ObjectCode{Name: obj.Name, Instrs: enc.instrs})
	}
	return out, nil
}

// usedRegisters collects the hardware registers touched by a block of
// allocated code.
func usedRegisters(code []ir.Instr) []int {
	seen := make(map[int]bool)
	for _, instr := range code {
		for _, pre := range instr.Meta().Pre {
			switch v := pre.(type) {
			case *ir.Spill:
				seen[v.Reg] = true
			case *ir.Restore:
				seen[v.Reg] = true
			}
		}
		for _, reg := range instr.Registers() {
			if reg.Physical >= 0 {
				seen[reg.Physical] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

func encodeLE(val int64, size int) []byte {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		out[i] = byte(uint64(val) >> (8 * i))
	}
	return out
}

// processImmediates moves immediates too wide for a parameter word into
// the data section, replacing them with dereferences of their location.
func processImmediates(comp *compile.Compiler, code []ir.Instr) error {
	fix := func(op ir.Operand) ir.Operand {
		imm, ok := op.(ir.Immediate)
		if !ok || (imm.Val >= 0 && imm.Val <= maxImmediate) {
			return op
		}
		v := comp.AddBytes(encodeLE(imm.Val, imm.Size))
		return ir.Dereference{To: *v.GlobalRef, Size: imm.Size}
	}

	for _, instr := range code {
		switch v := instr.(type) {
		case *ir.Mov:
			v.From = fix(v.From)
		case *ir.Binary:
			v.Left = fix(v.Left)
			v.Right = fix(v.Right)
		case *ir.Compare:
			v.Left = fix(v.Left)
			v.Right = fix(v.Right)
		case *ir.Push:
			v.Arg = fix(v.Arg)
		case *ir.Return:
			v.Val = fix(v.Val)
		case *ir.Jump:
			if v.When != nil {
				v.When = fix(v.When)
			}
		case *ir.Call:
			v.Fun = fix(v.Fun)
		}
	}
	return nil
}

// encodedObject is one object's hardware instructions plus the byte
// offsets of the jump targets inside it.
type encodedObject struct {
	name    string
	instrs  []*HWInstruction
	targets map[string]int
	size    int
}

func (e *encodedObject) emit(instrs ...*HWInstruction) {
	for _, h := range instrs {
		e.instrs = append(e.instrs, h)
		e.size += h.CodeSize()
	}
}

// encodeObject lowers an object's IR into hardware instructions. The
// scope resolves spill slots and the registers a return must restore.
func encodeObject(name string, code []ir.Instr, scope ir.ScopeInfo) (*encodedObject, error) {
	enc := &encodedObject{name: name, targets: make(map[string]int)}

	for _, instr := range code {
		for _, pre := range instr.Meta().Pre {
			hw, err := encodeSpill(pre, scope)
			if err != nil {
				return nil, err
			}
			enc.emit(hw...)
		}

		if target, ok := instr.(*ir.JumpTarget); ok {
			enc.targets[target.Identifier()] = enc.size
			continue
		}

		hw, err := encodeInstr(instr, scope)
		if err != nil {
			return nil, err
		}
		enc.emit(hw...)
	}
	return enc, nil
}

// encodeSpill expands a spill or restore into address arithmetic. Stack
// slots borrow the spilled register itself as the address scratch; data
// section slots are addressed directly.
func encodeSpill(instr ir.Instr, scope ir.ScopeInfo) ([]*HWInstruction, error) {
	switch v := instr.(type) {
	case *ir.Spill:
		slot := scope.SpillVar(v.Index)
		if slot == nil {
			return nil, fmt.Errorf("no spill slot %d", v.Index)
		}
		r2 := allocatedRegister(v.Reg, types.PointerSize)
		r8 := allocatedRegister(v.Reg, 8)
		if slot.HasStackOffset {
			return []*HWInstruction{
				{Op: OpPush, Size: 8, Args: []any{r8}},
				{Op: OpMov, Size: 2, Args: []any{r2, ir.RegBas}},
				{Op: OpAdd, Size: 2, Args: []any{r2, ir.Imm(int64(slot.StackOffset), 2), r2}},
				{Op: OpPop, Size: 8, Args: []any{ir.Dereference{To: r2, Size: 8}}},
			}, nil
		}
		return []*HWInstruction{
			{Op: OpMov, Size: 8, Args: []any{ir.Dereference{To: *slot.GlobalRef, Size: 8}, r8}},
		}, nil

	case *ir.Restore:
		slot := scope.SpillVar(v.Index)
		if slot == nil {
			return nil, fmt.Errorf("no spill slot %d", v.Index)
		}
		r2 := allocatedRegister(v.Reg, types.PointerSize)
		r8 := allocatedRegister(v.Reg, 8)
		if slot.HasStackOffset {
			return []*HWInstruction{
				{Op: OpMov, Size: 2, Args: []any{r2, ir.RegBas}},
				{Op: OpAdd, Size: 2, Args: []any{r2, ir.Imm(int64(slot.StackOffset), 2), r2}},
				{Op: OpMov, Size: 8, Args: []any{r8, ir.Dereference{To: r2, Size: 8}}},
			}, nil
		}
		return []*HWInstruction{
			{Op: OpMov, Size: 8, Args: []any{r8, ir.Dereference{To: *slot.GlobalRef, Size: 8}}},
		}, nil
	}
	return nil, fmt.Errorf("unexpected pre-instruction %s", instr)
}

func single(op Opcode, size int, args ...any) ([]*HWInstruction, error) {
	return []*HWInstruction{{Op: op, Size: size, Args: args}}, nil
}

// encodeInstr lowers one IR instruction into hardware instructions.
func encodeInstr(instr ir.Instr, scope ir.ScopeInfo) ([]*HWInstruction, error) {
	switch v := instr.(type) {
	case *ir.Mov:
		return single(OpMov, ir.OperandSize(v.To), v.To, v.From)

	case *ir.Resize:
		op := OpSxu
		if v.From.Signed {
			op = OpSxi
		}
		return single(op, v.To.Size, v.To, v.From, ir.Imm(int64(v.From.Size), 2))

	case *ir.Binary:
		return single(binaryOpcode(v.Op), ir.OperandSize(v.Left), v.Left, v.Right, v.To)

	case *ir.Unary:
		return single(unaryOpcode(v.Op), ir.OperandSize(v.Arg), v.Arg)

	case *ir.Compare:
		size := ir.OperandSize(v.Left)
		if s := ir.OperandSize(v.Right); s > size {
			size = s
		}
		return single(OpTst, size, v.Left, v.Right)

	case *ir.SetCmp:
		return single(OpSet, v.Reg.Size, v.Reg, ir.Imm(int64(v.Op), 1))

	case *ir.Jump:
		cond := v.When
		if cond == nil {
			cond = ir.Imm(1, types.PointerSize)
		}
		return single(OpJmp, ir.OperandSize(cond), cond, v.To)

	case *ir.Push:
		return single(OpPush, ir.OperandSize(v.Arg), v.Arg)

	case *ir.Pop:
		return single(OpPop, ir.OperandSize(v.Arg), v.Arg)

	case *ir.IO:
		if v.Out {
			return single(OpPutc, 1, v.Reg)
		}
		return single(OpGetc, 1, v.Reg)

	case *ir.Call:
		out := []*HWInstruction{
			{Op: OpCall, Size: types.PointerSize, Args: []any{v.Fun}},
		}
		if v.Result != nil {
			out = append(out, &HWInstruction{
				Op: OpMov, Size: v.Result.Size, Args: []any{v.Result, ir.RegRet},
			})
		}
		return out, nil

	case *ir.Return:
		out := []*HWInstruction{
			{Op: OpMov, Size: ir.OperandSize(v.Val), Args: []any{ir.RegRet, v.Val}},
		}
		saved := scope.SavedRegs()
		for i := len(saved) - 1; i >= 0; i-- {
			out = append(out, &HWInstruction{
				Op: OpPop, Size: 8, Args: []any{allocatedRegister(saved[i], 8)},
			})
		}
		out = append(out, &HWInstruction{
			Op: OpRet, Size: types.PointerSize, Args: []any{ir.Imm(int64(v.ArgSize), 2)},
		})
		return out, nil
	}
	return nil, fmt.Errorf("cannot encode instruction %s", instr)
}

// MemDeref reads through an already resolved absolute address.
type MemDeref struct {
	Loc  MemLoc
	Size int
}

func (m MemDeref) String() string { return fmt.Sprintf("[%s]:%d", m.Loc, m.Size) }

// resolveArg replaces named references and jump targets in an argument
// with their packaged locations.
func resolveArg(arg any, offsets, targets map[string]int) (any, error) {
	switch v := arg.(type) {
	case ir.DataRef:
		loc, ok := offsets[v.Name]
		if !ok {
			return nil, fmt.Errorf("undefined reference to %s", v.Name)
		}
		return MemLoc(loc), nil

	case *ir.JumpTarget:
		loc, ok := targets[v.Identifier()]
		if !ok {
			return nil, fmt.Errorf("unresolved jump target %s", v.Identifier())
		}
		return MemLoc(loc), nil

	case ir.Dereference:
		if ref, ok := v.To.(ir.DataRef); ok {
			loc, ok := offsets[ref.Name]
			if !ok {
				return nil, fmt.Errorf("undefined reference to %s", ref.Name)
			}
			return MemDeref{Loc: MemLoc(loc), Size: v.Size}, nil
		}
		return v, nil
	}
	return arg, nil
}

// Assemble packages a compiled program into a flat binary image. The
// image starts with a jump over the data section into the toplevel code,
// which initialises globals, calls main and halts.
func Assemble(comp *compile.Compiler, regCount int) (*Program, error) {
	if err := AllocateProgram(comp, regCount); err != nil {
		return nil, err
	}

	fns, toplevel := comp.Functions()

	var topEnc []*encodedObject
	for _, obj := range toplevel {
		enc, err := encodeObject(obj.Name, obj.Code, comp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", obj.Name, err)
		}
		topEnc = append(topEnc, enc)
	}

	// functions encode independently of each other
	fnEnc := make([]*encodedObject, len(fns))
	var g errgroup.Group
	for i, obj := range fns {
		g.Go(func() error {
			enc, err := encodeObject(obj.Name, obj.Code, obj.Fn)
			if err != nil {
				return fmt.Errorf("%s: %w", obj.Name, err)
			}
			fnEnc[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// layout pass: compute the location of every named item and jump
	// target before emitting any bytes
	offsets := make(map[string]int)
	targets := make(map[string]int)

	startJmp := &HWInstruction{
		Op: OpJmp, Size: types.PointerSize,
		Args: []any{ir.Imm(1, types.PointerSize), ir.DataRef{Name: toplevelLabel}},
	}
	pos := startJmp.CodeSize()

	dataNames := comp.DataNames()
	if len(dataNames) > 0 {
		offsets[dataLabel] = pos
	}
	for _, name := range dataNames {
		item, _ := comp.DataItemFor(name)
		offsets[name] = pos
		pos += item.Size()
	}

	offsets[toplevelLabel] = pos
	stks := &HWInstruction{Op: OpStks, Size: types.PointerSize, Args: []any{ir.Imm(0, 2)}}
	pos += stks.CodeSize()

	for _, enc := range topEnc {
		for id, off := range enc.targets {
			targets[id] = pos + off
		}
		pos += enc.size
	}

	callMain := &HWInstruction{Op: OpCall, Size: types.PointerSize, Args: []any{ir.DataRef{Name: mainFunc}}}
	pos += callMain.CodeSize()
	halt := &HWInstruction{Op: OpHalt, Size: types.PointerSize}
	pos += halt.CodeSize()

	for _, enc := range fnEnc {
		offsets[enc.name] = pos
		for id, off := range enc.targets {
			targets[id] = pos + off
		}
		pos += enc.size
	}

	if _, ok := offsets[mainFunc]; !ok {
		return nil, fmt.Errorf("program has no main function")
	}
	if pos > maxImmediate {
		return nil, fmt.Errorf("program of %d bytes exceeds the addressable %d", pos, maxImmediate)
	}

	// the stack begins just past the program image
	stks.Args[0] = ir.Imm(int64(pos+2), 2)

	// emission pass
	buf := make([]byte, 0, pos)
	emit := func(h *HWInstruction) error {
		buf = append(buf, packInstruction(h)...)
		for _, arg := range h.Args {
			resolved, err := resolveArg(arg, offsets, targets)
			if err != nil {
				return err
			}
			packed, err := packArg(resolved)
			if err != nil {
				return err
			}
			buf = append(buf, packed...)
		}
		return nil
	}
	emitAll := func(encs []*encodedObject) error {
		for _, enc := range encs {
			for _, h := range enc.instrs {
				if err := emit(h); err != nil {
					return fmt.Errorf("%s: %w", enc.name, err)
				}
			}
		}
		return nil
	}

	if err := emit(startJmp); err != nil {
		return nil, err
	}
	for _, name := range dataNames {
		item, _ := comp.DataItemFor(name)
		if item.Refs == nil {
			buf = append(buf, item.Bytes...)
			continue
		}
		for _, ref := range item.Refs {
			if ref.GlobalRef == nil {
				return nil, fmt.Errorf("data item %s references unpackaged variable %s", name, ref.Name)
			}
			loc, ok := offsets[ref.GlobalRef.Name]
			if !ok {
				return nil, fmt.Errorf("undefined reference to %s", ref.GlobalRef.Name)
			}
			buf = append(buf, encodeLE(int64(loc), types.PointerSize)...)
		}
	}
	if err := emit(stks); err != nil {
		return nil, err
	}
	if err := emitAll(topEnc); err != nil {
		return nil, err
	}
	if err := emit(callMain); err != nil {
		return nil, err
	}
	if err := emit(halt); err != nil {
		return nil, err
	}
	if err := emitAll(fnEnc); err != nil {
		return nil, err
	}

	if len(buf) != pos {
		return nil, fmt.Errorf("packaged %d bytes, layout sized %d", len(buf), pos)
	}
	return &Program{Binary: buf, Offsets: offsets}, nil
}
