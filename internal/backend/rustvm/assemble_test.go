package rustvm_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewlang/wewc/internal/backend/rustvm"
	"github.com/wewlang/wewc/internal/compile"
	"github.com/wewlang/wewc/pkg/ir"
	"github.com/wewlang/wewc/pkg/types"
)

func TestAllocateReusesFreedRegisters(t *testing.T) {
	a := ir.NewRegister(0, 2, false)
	b := ir.NewRegister(1, 2, false)
	c := ir.NewRegister(2, 2, false)
	code := []ir.Instr{
		&ir.Mov{To: a, From: ir.Imm(1, 2)},
		&ir.Mov{To: b, From: a},
		&ir.Mov{To: c, From: b},
	}

	state, err := rustvm.Allocate(2, code)
	require.NoError(t, err)
	assert.Zero(t, state.SpillSlots())

	// a dies feeding b, so c can take a's register
	assert.NotEqual(t, a.Physical, b.Physical)
	assert.Equal(t, a.Physical, c.Physical)
}

func TestAllocateSharesResizedViews(t *testing.T) {
	a := ir.NewRegister(0, 1, false)
	wide := a.Resized(2, false)
	b := ir.NewRegister(1, 2, false)
	code := []ir.Instr{
		&ir.Mov{To: a, From: ir.Imm(1, 1)},
		&ir.Resize{From: a, To: wide},
		&ir.Mov{To: b, From: wide},
	}

	_, err := rustvm.Allocate(2, code)
	require.NoError(t, err)
	assert.Equal(t, a.Physical, wide.Physical)
}

func TestAllocateSpillsWhenStarved(t *testing.T) {
	regs := make([]*ir.Register, 4)
	code := []ir.Instr{}
	for i := range regs {
		regs[i] = ir.NewRegister(i, 2, false)
		code = append(code, &ir.Mov{To: regs[i], From: ir.Imm(int64(i), 2)})
	}
	// touch every register again so they all stay live across the
	// definitions above
	sum := ir.NewRegister(4, 2, false)
	for _, r := range regs {
		code = append(code, ir.NewBinary(ir.Add, sum, r, nil))
	}

	state, err := rustvm.Allocate(2, code)
	require.NoError(t, err)
	assert.Greater(t, state.SpillSlots(), 0)

	spills, restores := 0, 0
	for _, instr := range code {
		for _, pre := range instr.Meta().Pre {
			switch pre.(type) {
			case *ir.Spill:
				spills++
			case *ir.Restore:
				restores++
			}
		}
	}
	assert.Greater(t, spills, 0)
	assert.Greater(t, restores, 0)
}

func TestAllocateIsDeterministic(t *testing.T) {
	build := func() []ir.Instr {
		var code []ir.Instr
		for i := 0; i < 6; i++ {
			code = append(code, &ir.Mov{To: ir.NewRegister(i, 2, false), From: ir.Imm(int64(i), 2)})
		}
		sum := ir.NewRegister(6, 2, false)
		for i := 0; i < 6; i++ {
			code = append(code, ir.NewBinary(ir.Add, sum, ir.NewRegister(i, 2, false), nil))
		}
		return code
	}

	first := build()
	_, err := rustvm.Allocate(3, first)
	require.NoError(t, err)

	second := build()
	_, err = rustvm.Allocate(3, second)
	require.NoError(t, err)

	for i := range first {
		a, b := first[i].Registers(), second[i].Registers()
		require.Equal(t, len(a), len(b))
		for j := range a {
			assert.Equal(t, a[j].Physical, b[j].Physical, "instr %d reg %d", i, j)
		}
	}
}

func TestDesugarPreLowersStackLoads(t *testing.T) {
	v := &ir.Variable{
		Name:           "x",
		Type:           types.IntOfSize(2, false),
		HasStackOffset: true,
		StackOffset:    4,
	}
	to := ir.NewRegister(0, 2, false)

	out, err := rustvm.DesugarPre([]ir.Instr{&ir.LoadVar{Var: v, To: to}})
	require.NoError(t, err)
	require.Len(t, out, 3)

	mov, ok := out[0].(*ir.Mov)
	require.True(t, ok)
	assert.Equal(t, ir.RegBas, mov.From)

	add, ok := out[1].(*ir.Binary)
	require.True(t, ok)
	assert.Equal(t, ir.Add, add.Op)

	load, ok := out[2].(*ir.Mov)
	require.True(t, ok)
	assert.IsType(t, ir.Dereference{}, load.From)
	assert.Equal(t, to, load.To)
}

func TestDesugarPreLoadsArrayAddressAsValue(t *testing.T) {
	v := &ir.Variable{
		Name:           "xs",
		Type:           types.Array{To: types.IntOfSize(1, false), Length: 8},
		HasStackOffset: true,
		StackOffset:    0,
		LValueIsRValue: true,
	}
	to := ir.NewRegister(0, types.PointerSize, false)

	out, err := rustvm.DesugarPre([]ir.Instr{&ir.LoadVar{Var: v, To: to}})
	require.NoError(t, err)

	// the last mov copies the computed address, not a memory read
	last, ok := out[len(out)-1].(*ir.Mov)
	require.True(t, ok)
	assert.IsType(t, &ir.Register{}, last.From)

	// and taking its lvalue is refused
	_, err = rustvm.DesugarPre([]ir.Instr{&ir.LoadVar{Var: v, To: to, LValue: true}})
	assert.ErrorContains(t, err, "no lvalue")
}

func TestDesugarPrePushesCallArguments(t *testing.T) {
	a := ir.NewRegister(0, 2, false)
	b := ir.NewRegister(1, 2, false)
	fun := ir.NewRegister(2, types.PointerSize, false)
	call := &ir.Call{Args: []*ir.Register{a, b}, ArgSize: 4, Fun: fun}

	out, err := rustvm.DesugarPre([]ir.Instr{call})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.IsType(t, &ir.Push{}, out[0])
	assert.IsType(t, &ir.Push{}, out[1])
	assert.Equal(t, call, out[2])
}

func assemble(t *testing.T, src string, regCount int) *rustvm.Program {
	t.Helper()
	comp, err := compile.CompileSource("test.wew", src)
	require.NoError(t, err)
	prog, err := rustvm.Assemble(comp, regCount)
	require.NoError(t, err)
	return prog
}

func TestAssembleImageLayout(t *testing.T) {
	prog := assemble(t, `
		var g := 7::u2
		fn helper() -> u2 { return g }
		fn main() -> u2 { return helper() }
	`, rustvm.DefaultRegCount)

	require.NotEmpty(t, prog.Binary)

	// the image opens with a jump over the data section
	word := binary.LittleEndian.Uint16(prog.Binary[:2])
	assert.Equal(t, rustvm.OpJmp, rustvm.Opcode(word>>2))

	// both functions land at distinct in-range offsets
	mainOff, ok := prog.Offsets["main"]
	require.True(t, ok)
	helperOff, ok := prog.Offsets["helper"]
	require.True(t, ok)
	assert.NotEqual(t, mainOff, helperOff)
	assert.Less(t, mainOff, len(prog.Binary))
	assert.Less(t, helperOff, len(prog.Binary))
}

func TestAssembleStableAcrossRegCounts(t *testing.T) {
	src := `fn main() -> u2 { return 1 + 2 }`
	a := assemble(t, src, 4)
	b := assemble(t, src, rustvm.DefaultRegCount)

	// starving the allocator may grow the image but never break layout
	require.NotEmpty(t, a.Binary)
	require.NotEmpty(t, b.Binary)
	assert.Contains(t, a.Offsets, "main")
	assert.Contains(t, b.Offsets, "main")
}

func TestEncodeListsEveryObject(t *testing.T) {
	comp, err := compile.CompileSource("test.wew", `
		var g := 1::u2
		fn main() -> u2 { return g }
	`)
	require.NoError(t, err)

	objects, err := rustvm.Encode(comp, rustvm.DefaultRegCount)
	require.NoError(t, err)

	names := make([]string, 0, len(objects))
	total := 0
	for _, obj := range objects {
		names = append(names, obj.Name)
		total += len(obj.Instrs)
	}
	assert.Contains(t, names, "main")
	assert.Greater(t, total, 0)
}
