package regalloc

import "fmt"

// These interfaces describe the input of an allocation. They are implemented
// by the code generator that embeds this library, so the allocator can work
// on any IR and any ISA. The allocator treats the implementations as
// read-only: it never calls a mutating method, and the description must not
// change for the duration of one Allocate call.

type (
	// Function is a single function to allocate registers for: a CFG of
	// Block(s) over a dense virtual register id space.
	Function interface {
		// NumBlocks returns the number of basic blocks. Block ids are dense
		// indexes in [0, NumBlocks).
		NumBlocks() int
		// Block returns the block with the given id.
		Block(id int) Block
		// EntryBlock returns the id of the entry block.
		EntryBlock() int
		// NumVRegs returns the number of virtual registers. VReg ids are
		// dense indexes in [0, NumVRegs).
		NumVRegs() int
		// VRegClass returns the register class the given virtual register
		// must be allocated from.
		VRegClass(v VReg) RegClass
		// Remat returns the rematerialization descriptor of v, if its value
		// can be recomputed by a side-effect-free instruction instead of
		// being spilled and reloaded.
		Remat(v VReg) (RematDef, bool)
		// VRegGroups returns the tuples of virtual registers that must be
		// allocated and moved together. Each tuple maps index-for-index onto
		// one of RegInfo's group templates of the same class and arity.
		// May return nil when the function uses no groups.
		VRegGroups() [][]VReg
	}

	// Block is a basic block: an instruction sequence plus its position in
	// the CFG and an estimated execution frequency.
	Block interface {
		// ID returns the dense id of this block.
		ID() int
		// Succs returns the ids of the successor blocks.
		Succs() []int
		// Preds returns the ids of the predecessor blocks.
		Preds() []int
		// NumInstrs returns the number of instructions in this block.
		NumInstrs() int
		// Instr returns the i-th instruction.
		Instr(i int) Instr
		// Freq returns the estimated execution frequency of this block,
		// used to weight spill and rematerialization costs.
		Freq() float64
	}

	// Instr is one instruction, reduced to what allocation needs: its
	// operands and the registers it clobbers.
	Instr interface {
		fmt.Stringer

		// Operands returns the operands of this instruction. The returned
		// slice must not be mutated and may be reused across calls.
		Operands() []Operand
		// Clobbers returns the physical registers whose contents this
		// instruction destroys (e.g. caller-saved registers at a call).
		// Registers that are fixed definition operands of the same
		// instruction may be included; they are ignored.
		Clobbers() []PReg
		// IsCopy returns true if this instruction is a plain register move
		// of the form dst = src.
		IsCopy() bool
	}

	// RegInfo is the target-specific description of the physical register
	// file: classes, allocation order, aliasing and group templates.
	RegInfo interface {
		// NumClasses returns the number of register classes. Class ids are
		// dense indexes in [0, NumClasses).
		NumClasses() int
		// ClassRegs returns the allocatable registers of the class, in
		// preference order: earlier registers are tried first.
		ClassRegs(c RegClass) []PReg
		// Aliases returns the registers that physically overlap p, not
		// including p itself. The relation must be symmetric and closed.
		Aliases(p PReg) []PReg
		// NumGroups returns the number of register group templates.
		NumGroups() int
		// Group returns the i-th group template. All members of a template
		// belong to the register set of the template's class.
		Group(i int) RegGroup
		// SlotInfo returns the size and alignment in bytes of a spill slot
		// holding a value of the given class.
		SlotInfo(c RegClass) (size, align uint32)
		// PRegName returns the target name of the register, for debugging.
		PRegName(p PReg) string
	}
)

// RematDef describes how a virtual register's value can be recomputed: the
// defining instruction and the estimated cost of re-executing it once.
type RematDef struct {
	Block int
	Instr int
	Cost  float64
}
