package regalloc

import (
	"fmt"
	"sort"
	"strings"
)

// MoveKind classifies a reconciliation move.
type MoveKind uint8

const (
	// MoveCopy transfers a value between two registers.
	MoveCopy MoveKind = iota
	// MoveLoad reloads a value from its spill slot into a register.
	MoveLoad
	// MoveStore stores a register into a spill slot.
	MoveStore
	// MoveRemat recomputes a value into a register by re-executing its
	// rematerialization instruction instead of reloading it.
	MoveRemat
)

// String implements fmt.Stringer.
func (k MoveKind) String() string {
	switch k {
	case MoveCopy:
		return "copy"
	case MoveLoad:
		return "load"
	case MoveStore:
		return "store"
	case MoveRemat:
		return "remat"
	default:
		return "move?"
	}
}

// Move is one reconciliation step the embedder must materialize: a copy,
// spill store, reload or rematerialization that carries a value between the
// locations chosen for two adjacent portions of its lifetime.
type Move struct {
	Kind MoveKind

	// VReg is the value being moved.
	VReg VReg

	From, To Allocation

	// Block and Instr position the move: it executes immediately before
	// instruction Instr of Block. Instr may equal the block's instruction
	// count, placing the move at the block's end.
	//
	// For edge moves Instr is -1 and Pred names the predecessor: the move
	// executes on the control-flow edge from Pred to Block, after Pred's
	// terminator and before Block's first instruction.
	Block, Instr int
	Pred         int
}

// String implements fmt.Stringer.
func (m Move) String() string {
	pos := fmt.Sprintf("b%d@%d", m.Block, m.Instr)
	if m.Pred >= 0 {
		pos = fmt.Sprintf("edge b%d->b%d", m.Pred, m.Block)
	}
	return fmt.Sprintf("%s %s: %s -> %s (%s)", m.Kind, m.VReg, m.From, m.To, pos)
}

// SlotInfo is one spill slot of the final frame.
type SlotInfo struct {
	Size, Align uint32

	// Offset is the byte offset of the slot from the frame base.
	Offset uint32
}

// FrameLayout is the spill frame of the allocated function. Slot indexes in
// Allocation values refer to Slots.
type FrameLayout struct {
	Slots []SlotInfo

	// Size is the total frame size in bytes, rounded up to Align.
	Size  uint32
	Align uint32
}

// AllocationResult is the complete outcome of one Allocate call.
type AllocationResult struct {
	// Allocs is indexed by block id, instruction index and operand index,
	// and holds the resolved location of each operand. Tied use operands are
	// reported at the register of the definition they are tied to.
	Allocs [][][]Allocation

	// Moves holds the reconciliation steps in execution order: edge moves
	// ahead of their target block's body, boundary moves in instruction
	// order within each block.
	Moves []Move

	Frame FrameLayout
}

// String renders the result for debugging; the output is deterministic for a
// given input.
func (r *AllocationResult) String() string {
	var buf strings.Builder
	for bi, instrs := range r.Allocs {
		fmt.Fprintf(&buf, "block%d:\n", bi)
		for ii, row := range instrs {
			fmt.Fprintf(&buf, "  %d:", ii)
			for _, al := range row {
				buf.WriteString(" " + al.String())
			}
			buf.WriteByte('\n')
		}
	}
	for _, m := range r.Moves {
		buf.WriteString(m.String() + "\n")
	}
	fmt.Fprintf(&buf, "frame: %d bytes, align %d, %d slots\n",
		r.Frame.Size, r.Frame.Align, len(r.Frame.Slots))
	return buf.String()
}

// buildResult assembles the public result: the frame layout from the slot
// coloring, the per-operand locations from the covering sibling of each
// operand site, and the final ordering of the reconciliation moves.
func (a *allocState) buildResult() error {
	f, c := a.f, a.c
	res := &AllocationResult{}

	var off, maxAlign uint32
	for i := range c.slots {
		s := &c.slots[i]
		if s.align > maxAlign {
			maxAlign = s.align
		}
		off = alignUp(off, s.align)
		res.Frame.Slots = append(res.Frame.Slots, SlotInfo{Size: s.size, Align: s.align, Offset: off})
		off += s.size
	}
	if maxAlign == 0 {
		maxAlign = 1
	}
	res.Frame.Align = maxAlign
	res.Frame.Size = alignUp(off, maxAlign)

	res.Allocs = make([][][]Allocation, len(c.blocks))
	for bi := range c.blocks {
		blk := f.Block(bi)
		b := &c.blocks[bi]
		n := blk.NumInstrs()
		res.Allocs[bi] = make([][]Allocation, n)
		for i := 0; i < n; i++ {
			ops := blk.Instr(i).Operands()
			row := make([]Allocation, len(ops))
			early := b.begin + ProgramPoint(i)*pointStride
			late := early + pointLateOffset
			for oi, op := range ops {
				at := early
				if op.Kind == OperandDef {
					at = late
				}
				sib := c.siblingAt(op.VReg, at)
				if sib == nil || sib.alloc == AllocationNone {
					return internalf("operand %s of block %d instr %d has no resolved location", op.VReg, bi, i)
				}
				al := sib.alloc
				if op.Constraint.Kind() == ConstraintStack && al.Kind() != AllocStack {
					// The point is covered by a register site carved for
					// another operand of the same vreg; the slot still holds
					// the value.
					slot := a.vregSlot[op.VReg]
					if slot < 0 {
						return internalf("stack operand %s of block %d instr %d has no slot", op.VReg, bi, i)
					}
					al = AllocationStack(slot)
				}
				row[oi] = al
			}
			// A tied definition shares one encoding slot with its use, so
			// when the two ended up apart the used value is copied into the
			// definition's register first and the use reported there.
			for oi, op := range ops {
				if op.Kind != OperandDef || op.Constraint.Kind() != ConstraintTied {
					continue
				}
				ui := op.Constraint.TiedTo()
				if row[ui] == row[oi] {
					continue
				}
				a.moves = append(a.moves, Move{
					Kind:  moveKindFor(row[ui], row[oi]),
					VReg:  ops[ui].VReg,
					From:  row[ui],
					To:    row[oi],
					Block: bi,
					Instr: i,
					Pred:  -1,
				})
				row[ui] = row[oi]
			}
			res.Allocs[bi][i] = row
		}
	}

	// The stable sort keeps the scheduled order within one boundary and
	// puts the tied-operand copies after the boundary moves they depend on.
	sort.SliceStable(a.moves, func(i, j int) bool {
		x, y := a.moves[i], a.moves[j]
		if x.Block != y.Block {
			return x.Block < y.Block
		}
		if x.Instr != y.Instr {
			return x.Instr < y.Instr
		}
		return x.Pred < y.Pred
	})
	res.Moves = a.moves
	a.res = res
	return nil
}

func moveKindFor(from, to Allocation) MoveKind {
	switch {
	case from.Kind() == AllocRemat:
		return MoveRemat
	case from.Kind() == AllocStack && to.Kind() == AllocReg:
		return MoveLoad
	case from.Kind() == AllocReg && to.Kind() == AllocStack:
		return MoveStore
	default:
		return MoveCopy
	}
}

// alignUp rounds x up to the next multiple of a, which must be a power of
// two.
func alignUp(x, a uint32) uint32 {
	return (x + a - 1) &^ (a - 1)
}
