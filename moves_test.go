package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newMoveState(ri *testRegInfo) *allocState {
	numPRegs := 0
	for _, regs := range ri.classes {
		numPRegs += len(regs)
	}
	c := NewContext()
	c.occ.init(numPRegs)
	return &allocState{c: c, ri: ri, numPRegs: numPRegs}
}

func reg(p PReg) Allocation { return AllocationReg(p) }

func TestScheduleGroupChain(t *testing.T) {
	a := newMoveState(testRI(3))
	g := &moveGroup{
		key: moveKey{block: 0, instr: 2, pred: -1},
		at:  [2]ProgramPoint{4, 4},
		pend: []pendingMove{
			{v: 0, from: reg(0), to: reg(1)},
			{v: 1, from: reg(1), to: reg(2)},
		},
	}
	require.NoError(t, a.scheduleGroup(g))

	// p1 must be read before it is overwritten.
	require.Len(t, a.moves, 2)
	require.Equal(t, reg(1), a.moves[0].From)
	require.Equal(t, reg(2), a.moves[0].To)
	require.Equal(t, reg(0), a.moves[1].From)
	require.Equal(t, reg(1), a.moves[1].To)
}

func TestScheduleGroupSwapThroughFreeRegister(t *testing.T) {
	a := newMoveState(testRI(3))
	g := &moveGroup{
		key: moveKey{block: 0, instr: 1, pred: -1},
		at:  [2]ProgramPoint{2, 2},
		pend: []pendingMove{
			{v: 0, from: reg(0), to: reg(1)},
			{v: 1, from: reg(1), to: reg(0)},
		},
	}
	require.NoError(t, a.scheduleGroup(g))

	require.Len(t, a.moves, 3)
	// One value parks in the free p2, then the permutation unwinds.
	require.Equal(t, Move{Kind: MoveCopy, VReg: 1, From: reg(1), To: reg(2), Block: 0, Instr: 1, Pred: -1}, a.moves[0])
	require.Equal(t, Move{Kind: MoveCopy, VReg: 0, From: reg(0), To: reg(1), Block: 0, Instr: 1, Pred: -1}, a.moves[1])
	require.Equal(t, Move{Kind: MoveCopy, VReg: 1, From: reg(2), To: reg(0), Block: 0, Instr: 1, Pred: -1}, a.moves[2])
}

func TestScheduleGroupSwapAvoidsOccupiedScratch(t *testing.T) {
	a := newMoveState(testRI(4))
	// p2 holds a live value at the shuffle point; the cycle must park in p3.
	a.c.occ.reserve(2, []liveRange{{0, 10}}, 9)
	g := &moveGroup{
		at: [2]ProgramPoint{4, 4},
		pend: []pendingMove{
			{v: 0, from: reg(0), to: reg(1)},
			{v: 1, from: reg(1), to: reg(0)},
		},
	}
	require.NoError(t, a.scheduleGroup(g))
	require.Equal(t, reg(3), a.moves[0].To)
}

func TestScheduleGroupSwapFallsBackToScratchSlot(t *testing.T) {
	a := newMoveState(testRI(2))
	g := &moveGroup{
		key: moveKey{block: 0, instr: 3, pred: -1},
		at:  [2]ProgramPoint{6, 6},
		pend: []pendingMove{
			{v: 0, class: 0, from: reg(0), to: reg(1)},
			{v: 1, class: 0, from: reg(1), to: reg(0)},
		},
	}
	require.NoError(t, a.scheduleGroup(g))

	require.Len(t, a.moves, 3)
	require.Equal(t, MoveStore, a.moves[0].Kind)
	require.Equal(t, AllocationStack(0), a.moves[0].To)
	require.Equal(t, MoveCopy, a.moves[1].Kind)
	require.Equal(t, MoveLoad, a.moves[2].Kind)
	require.Equal(t, AllocationStack(0), a.moves[2].From)

	require.Len(t, a.c.slots, 1)
	require.True(t, a.c.slots[0].scratch)
}

func TestScheduleGroupRespectsAliases(t *testing.T) {
	// p2 itself is free at the shuffle point, but its alias p3 is not, so
	// neither can park the cycle and the shuffle falls back to a slot.
	ri := testRI(4)
	ri.aliases = map[PReg][]PReg{2: {3}, 3: {2}}
	a := newMoveState(ri)
	a.c.occ.reserve(3, []liveRange{{0, 10}}, 9)
	g := &moveGroup{
		at: [2]ProgramPoint{4, 4},
		pend: []pendingMove{
			{v: 0, class: 0, from: reg(0), to: reg(1)},
			{v: 1, class: 0, from: reg(1), to: reg(0)},
		},
	}
	require.NoError(t, a.scheduleGroup(g))
	require.Equal(t, AllocationStack(0), a.moves[0].To)
	require.True(t, a.c.slots[0].scratch)
}

func TestResolveMovesAcrossEdges(t *testing.T) {
	// v0 is squeezed into its slot by the hot middle block, so the store
	// and reload ride the CFG edges around it.
	f := newTestFunc(0, 0)
	f.block(1).ins("mk", def(0))
	b1 := f.block(10)
	b1.ins("mk", def(1))
	b1.ins("use", use(1))
	f.block(1).ins("ret", use(0))
	f.edge(0, 1)
	f.edge(1, 2)

	res, err := Allocate(f, testRI(1), NewContext())
	require.NoError(t, err)

	require.Equal(t, []MoveKind{MoveStore, MoveLoad}, moveKinds(res))

	store, load := res.Moves[0], res.Moves[1]
	require.Equal(t, 1, store.Block)
	require.Equal(t, -1, store.Instr)
	require.Equal(t, 0, store.Pred)
	require.Equal(t, "store v0: p0 -> slot0 (edge b0->b1)", store.String())

	require.Equal(t, 2, load.Block)
	require.Equal(t, -1, load.Instr)
	require.Equal(t, 1, load.Pred)
	require.Equal(t, "load v0: slot0 -> p0 (edge b1->b2)", load.String())
}

func TestMoveString(t *testing.T) {
	m := Move{Kind: MoveCopy, VReg: 3, From: reg(1), To: reg(0), Block: 2, Instr: 4, Pred: -1}
	require.Equal(t, "copy v3: p1 -> p0 (b2@4)", m.String())
}

func TestMoveKindFor(t *testing.T) {
	require.Equal(t, MoveCopy, moveKindFor(reg(0), reg(1)))
	require.Equal(t, MoveStore, moveKindFor(reg(0), AllocationStack(0)))
	require.Equal(t, MoveLoad, moveKindFor(AllocationStack(0), reg(0)))
	require.Equal(t, MoveRemat, moveKindFor(AllocationRemat(), reg(0)))
	require.Equal(t, MoveCopy, moveKindFor(AllocationStack(0), AllocationStack(1)))
}
