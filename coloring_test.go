package regalloc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newSlotState(numVRegs int, ri *testRegInfo) *allocState {
	c := NewContext()
	c.vregIvals = make([][]int, numVRegs)
	return &allocState{c: c, ri: ri, vregSlot: growInts(nil, numVRegs)}
}

func spilled(a *allocState, v VReg, class RegClass, rs ...liveRange) *interval {
	it := a.c.newInterval(v, class)
	for _, r := range rs {
		it.addRange(r.start, r.end)
	}
	it.state = stateSpilled
	return it
}

func TestAllocateSlotsSiblingsShareOneSlot(t *testing.T) {
	a := newSlotState(1, testRI(1))
	left := spilled(a, 0, 0, liveRange{0, 4})
	right := spilled(a, 0, 0, liveRange{8, 12})

	require.NoError(t, a.allocateSlots())

	// Both spilled pieces of v0 land in the same slot, so a transition
	// between them needs no move.
	require.Equal(t, AllocationStack(0), left.alloc)
	require.Equal(t, AllocationStack(0), right.alloc)
	require.Len(t, a.c.slots, 1)
	require.Equal(t, []liveRange{{0, 4}, {8, 12}}, a.c.slots[0].ranges)
}

func TestAllocateSlotsFirstFitReuse(t *testing.T) {
	a := newSlotState(2, testRI(1))
	x := spilled(a, 0, 0, liveRange{0, 4})
	y := spilled(a, 1, 0, liveRange{6, 10})

	require.NoError(t, a.allocateSlots())

	require.Equal(t, AllocationStack(0), x.alloc)
	require.Equal(t, AllocationStack(0), y.alloc)
	require.Len(t, a.c.slots, 1)
}

func TestAllocateSlotsOverlapForcesNewSlot(t *testing.T) {
	a := newSlotState(2, testRI(1))
	x := spilled(a, 0, 0, liveRange{0, 6})
	y := spilled(a, 1, 0, liveRange{4, 10})

	require.NoError(t, a.allocateSlots())

	require.Equal(t, AllocationStack(0), x.alloc)
	require.Equal(t, AllocationStack(1), y.alloc)
	require.Len(t, a.c.slots, 2)
}

func TestAllocateSlotsShapeSeparatesClasses(t *testing.T) {
	ri := testRI(1, 1)
	ri.slots = map[RegClass][2]uint32{1: {16, 16}}
	a := newSlotState(2, ri)
	spilled(a, 0, 0, liveRange{0, 4})
	spilled(a, 1, 1, liveRange{6, 10})

	require.NoError(t, a.allocateSlots())

	// The lifetimes are disjoint but the shapes differ, so no sharing.
	require.Len(t, a.c.slots, 2)
	require.Equal(t, uint32(8), a.c.slots[0].size)
	require.Equal(t, uint32(16), a.c.slots[1].size)
}

func TestAllocateSlotsRematerializable(t *testing.T) {
	a := newSlotState(1, testRI(1))
	it := spilled(a, 0, 0, liveRange{0, 4})
	it.remat = true

	require.NoError(t, a.allocateSlots())

	require.Equal(t, AllocationRemat(), it.alloc)
	require.Empty(t, a.c.slots)
}

func TestAllocateSlotsSkipsScratchSlots(t *testing.T) {
	a := newSlotState(1, testRI(1))
	require.Equal(t, 0, a.newScratchSlot(8, 8))
	it := spilled(a, 0, 0, liveRange{0, 4})

	require.NoError(t, a.allocateSlots())

	require.Equal(t, AllocationStack(1), it.alloc)
	require.True(t, a.c.slots[0].scratch)
	require.False(t, a.c.slots[1].scratch)
}

func TestAllocateSlotsIgnoresUnspilled(t *testing.T) {
	a := newSlotState(2, testRI(1))
	placed := a.c.newInterval(0, 0)
	placed.addRange(0, 4)
	placed.state = stateAssigned
	placed.alloc = AllocationReg(0)
	empty := a.c.newInterval(1, 0)
	empty.state = stateSpilled

	require.NoError(t, a.allocateSlots())

	require.Equal(t, AllocationReg(0), placed.alloc)
	require.Empty(t, a.c.slots)
	require.Equal(t, AllocationNone, empty.alloc)
}

func TestSlotShapeRejectsBadAlignment(t *testing.T) {
	ri := testRI(1)
	ri.slots = map[RegClass][2]uint32{0: {8, 3}}
	a := newSlotState(1, ri)
	spilled(a, 0, 0, liveRange{0, 4})

	err := a.allocateSlots()
	require.True(t, errors.Is(err, ErrInvalidFunction), "got %v", err)
}

func TestSlotShapeRejectsZeroSize(t *testing.T) {
	ri := testRI(1)
	ri.slots = map[RegClass][2]uint32{0: {0, 8}}
	a := newSlotState(1, ri)
	spilled(a, 0, 0, liveRange{0, 4})

	err := a.allocateSlots()
	require.True(t, errors.Is(err, ErrInvalidFunction), "got %v", err)
}

func TestRangesOverlap(t *testing.T) {
	for _, tc := range []struct {
		name   string
		xs, ys []liveRange
		want   bool
	}{
		{"both empty", nil, nil, false},
		{"disjoint", []liveRange{{0, 2}}, []liveRange{{4, 6}}, false},
		{"adjacent", []liveRange{{0, 4}}, []liveRange{{4, 8}}, false},
		{"overlap", []liveRange{{0, 5}}, []liveRange{{4, 8}}, true},
		{"interleaved miss", []liveRange{{0, 2}, {6, 8}}, []liveRange{{2, 6}, {8, 10}}, false},
		{"late hit", []liveRange{{0, 2}, {6, 9}}, []liveRange{{3, 5}, {8, 10}}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, rangesOverlap(tc.xs, tc.ys))
			require.Equal(t, tc.want, rangesOverlap(tc.ys, tc.xs))
		})
	}
}
