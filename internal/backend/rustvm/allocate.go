package rustvm

import (
	"fmt"

	"github.com/wewlang/wewc/pkg/ir"
)

// Register allocation is linear: virtual registers get a free hardware
// register at first use and give it back at their last use. When the pool
// runs dry an active register is spilled to a slot and recovered on its
// next use. Resized register views share an ID and therefore an
// allocation.

type regState int

const (
	stateAllocated regState = iota
	stateEmpty
	stateSpilled
)

type regSlot struct {
	state regState
	data  int // hardware register or spill slot index
}

// AllocationState tracks hardware register assignments for one object.
type AllocationState struct {
	regCount int

	usable map[int]bool
	states map[int]regSlot // keyed by virtual register ID

	// spill slots; -1 marks a free slot
	spilled []int

	allocated map[int]int // hardware register to virtual ID
}

// NewAllocationState creates an allocator over regCount hardware
// registers.
func NewAllocationState(regCount int) *AllocationState {
	usable := make(map[int]bool, regCount)
	for i := 0; i < regCount; i++ {
		usable[i] = true
	}
	return &AllocationState{
		regCount:  regCount,
		usable:    usable,
		states:    make(map[int]regSlot),
		allocated: make(map[int]int),
	}
}

// SpillSlots returns the number of spill slots the object needs.
func (s *AllocationState) SpillSlots() int { return len(s.spilled) }

func (s *AllocationState) takeUsable() (int, bool) {
	// scan in order for deterministic output
	for i := 0; i < s.regCount; i++ {
		if s.usable[i] {
			delete(s.usable, i)
			return i, true
		}
	}
	return 0, false
}

// emitSpill saves the value of an allocated virtual register to a slot.
func (s *AllocationState) emitSpill(vID, reg int) *ir.Spill {
	index := -1
	for i, v := range s.spilled {
		if v == -1 {
			index = i
			break
		}
	}
	if index == -1 {
		index = len(s.spilled)
		s.spilled = append(s.spilled, -1)
	}
	s.spilled[index] = vID
	s.states[vID] = regSlot{state: stateSpilled, data: index}
	return &ir.Spill{Reg: reg, Index: index}
}

// emitLoad recovers a spilled virtual register into a hardware register.
func (s *AllocationState) emitLoad(vID, reg int) *ir.Restore {
	index := s.states[vID].data
	s.spilled[index] = -1
	s.states[vID] = regSlot{state: stateAllocated, data: reg}
	return &ir.Restore{Reg: reg, Index: index}
}

// freeRegister marks a virtual register as dead after its last use.
func (s *AllocationState) freeRegister(vID int) error {
	slot, ok := s.states[vID]
	if !ok {
		return fmt.Errorf("tried to free unknown register %%%d", vID)
	}
	s.states[vID] = regSlot{state: stateEmpty}

	switch slot.state {
	case stateAllocated:
		delete(s.allocated, slot.data)
		s.usable[slot.data] = true
	case stateSpilled:
		s.spilled[slot.data] = -1
	default:
		return fmt.Errorf("tried to free dead register %%%d", vID)
	}
	return nil
}

// leastActiveRegister picks an active hardware register to evict,
// skipping registers already claimed by the current instruction.
func (s *AllocationState) leastActiveRegister(exclude []int) (int, error) {
	skip := make(map[int]bool, len(exclude))
	for _, r := range exclude {
		skip[r] = true
	}
	for i := 0; i < s.regCount; i++ {
		if !skip[i] && !s.usable[i] {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no registers available to evict")
}

// allocateRegister assigns a hardware register to a virtual register,
// spilling another if the pool is empty. Already-allocated registers are
// a noop.
func (s *AllocationState) allocateRegister(vID int, instr ir.Instr, excludes []int) (int, error) {
	if slot, ok := s.states[vID]; ok {
		switch slot.state {
		case stateAllocated:
			return slot.data, nil

		case stateSpilled:
			reg, ok := s.takeUsable()
			if !ok {
				var err error
				reg, err = s.leastActiveRegister(excludes)
				if err != nil {
					return 0, err
				}
				evicted := s.allocated[reg]
				instr.Meta().InsertPre(s.emitSpill(evicted, reg))
			}
			s.allocated[reg] = vID
			instr.Meta().InsertPre(s.emitLoad(vID, reg))
			return reg, nil
		}
		return 0, fmt.Errorf("register %%%d is marked dead but wants to be allocated", vID)
	}

	if reg, ok := s.takeUsable(); ok {
		s.states[vID] = regSlot{state: stateAllocated, data: reg}
		s.allocated[reg] = vID
		return reg, nil
	}

	reg, err := s.leastActiveRegister(excludes)
	if err != nil {
		return 0, err
	}
	evicted := s.allocated[reg]
	instr.Meta().InsertPre(s.emitSpill(evicted, reg))
	s.states[vID] = regSlot{state: stateAllocated, data: reg}
	s.allocated[reg] = vID
	return reg, nil
}

// markLastUsages scans backwards over the code, recording on each
// instruction the registers whose last use it is.
func markLastUsages(code []ir.Instr) {
	spotted := make(map[int]bool)
	for i := len(code) - 1; i >= 0; i-- {
		instr := code[i]
		for _, reg := range instr.Registers() {
			if !spotted[reg.ID] {
				instr.Meta().Closing = append(instr.Meta().Closing, reg)
				spotted[reg.ID] = true
			}
		}
	}
}

// Allocate assigns hardware registers for one object's code, returning
// the allocation state for spill bookkeeping.
func Allocate(regCount int, code []ir.Instr) (*AllocationState, error) {
	state := NewAllocationState(regCount)
	markLastUsages(code)

	for _, instr := range code {
		var claimed []int

		for _, vReg := range instr.Registers() {
			reg, err := state.allocateRegister(vReg.ID, instr, claimed)
			if err != nil {
				return nil, err
			}

			// keep this register pinned for the rest of the instruction
			claimed = append(claimed, reg)
			vReg.Physical = reg
		}

		for _, vReg := range instr.Meta().Closing {
			if err := state.freeRegister(vReg.ID); err != nil {
				return nil, err
			}
		}
	}
	return state, nil
}
