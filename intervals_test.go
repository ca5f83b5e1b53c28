package regalloc

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestInterval(v VReg, ranges ...liveRange) *interval {
	it := &interval{}
	resetInterval(it)
	it.vreg = v
	for _, r := range ranges {
		it.addRange(r.start, r.end)
	}
	return it
}

func TestIntervalAddRange(t *testing.T) {
	it := newTestInterval(0)
	it.addRange(1, 5)
	it.addRange(5, 7) // adjacent: merged
	it.addRange(9, 12)
	it.addRange(20, 20) // empty: dropped

	require.Equal(t, []liveRange{{1, 7}, {9, 12}}, it.ranges)
	require.Equal(t, ProgramPoint(1), it.start())
	require.Equal(t, ProgramPoint(12), it.end())
}

func TestIntervalAddRangeOutOfOrderPanics(t *testing.T) {
	it := newTestInterval(0)
	it.addRange(4, 8)
	require.Panics(t, func() { it.addRange(2, 3) })
	require.Panics(t, func() { it.addRange(6, 10) })
}

func TestIntervalCovers(t *testing.T) {
	it := newTestInterval(0, liveRange{2, 6}, liveRange{10, 14})
	for p, want := range map[ProgramPoint]bool{
		1: false, 2: true, 5: true, 6: false, 8: false, 10: true, 13: true, 14: false,
	} {
		require.Equal(t, want, it.covers(p), "point %d", p)
	}
}

func TestIntervalFirstOverlap(t *testing.T) {
	it := newTestInterval(0, liveRange{2, 6}, liveRange{10, 14})

	require.Equal(t, ProgramPoint(2), it.firstOverlap(liveRange{0, 20}))
	require.Equal(t, ProgramPoint(4), it.firstOverlap(liveRange{4, 5}))
	require.Equal(t, ProgramPoint(10), it.firstOverlap(liveRange{7, 11}))
	require.Equal(t, ProgramPointInvalid, it.firstOverlap(liveRange{6, 10}))
	require.Equal(t, ProgramPointInvalid, it.firstOverlap(liveRange{14, 30}))
}

func TestIntervalMinimal(t *testing.T) {
	empty := newTestInterval(0)
	require.True(t, empty.minimal())

	short := newTestInterval(0, liveRange{4, 6})
	short.uses = []usePos{{point: 4}, {point: 5, isDef: true}}
	require.True(t, short.minimal())

	oneUse := newTestInterval(0, liveRange{0, 20})
	oneUse.uses = []usePos{{point: 8}}
	require.True(t, oneUse.minimal())

	long := newTestInterval(0, liveRange{0, 20})
	long.uses = []usePos{{point: 2}, {point: 8}}
	require.False(t, long.minimal())
}

func TestIntervalComputeWeight(t *testing.T) {
	it := newTestInterval(0, liveRange{0, 8})
	it.uses = []usePos{{point: 1, freq: 2}, {point: 6, freq: 2}}
	it.computeWeight()
	require.InDelta(t, 0.5, it.weight, 1e-9)

	pinned := newTestInterval(0, liveRange{0, 2})
	pinned.fixedReg = 3
	pinned.computeWeight()
	require.True(t, math.IsInf(pinned.weight, 1))

	reload := newTestInterval(0, liveRange{0, 2})
	reload.requireReg = true
	reload.computeWeight()
	require.True(t, math.IsInf(reload.weight, 1))
}

func TestIntervalSplitAt(t *testing.T) {
	it := newTestInterval(3, liveRange{2, 10})
	it.uses = []usePos{{point: 3, isDef: true}, {point: 6}, {point: 8}}
	it.group, it.groupIndex, it.hint = 1, 0, PReg(4)

	right := &interval{}
	resetInterval(right)
	require.NoError(t, it.splitAt(6, right))

	require.Equal(t, []liveRange{{2, 6}}, it.ranges)
	require.Equal(t, []liveRange{{6, 10}}, right.ranges)
	// The use exactly at the split point belongs to the right sibling.
	require.Equal(t, []usePos{{point: 3, isDef: true}}, it.uses)
	require.Equal(t, []usePos{{point: 6}, {point: 8}}, right.uses)

	require.Equal(t, it.vreg, right.vreg)
	require.Equal(t, 1, right.group)
	require.Equal(t, 0, right.groupIndex)
	require.Equal(t, PReg(4), right.hint)
}

func TestIntervalSplitAtRangeGap(t *testing.T) {
	it := newTestInterval(0, liveRange{2, 6}, liveRange{10, 14})

	right := &interval{}
	resetInterval(right)
	// 8 falls inside the hole: the ranges part cleanly.
	require.NoError(t, it.splitAt(8, right))
	require.Equal(t, []liveRange{{2, 6}}, it.ranges)
	require.Equal(t, []liveRange{{10, 14}}, right.ranges)
}

func TestIntervalSplitAtBoundsError(t *testing.T) {
	it := newTestInterval(0, liveRange{2, 10})
	right := &interval{}
	resetInterval(right)

	err := it.splitAt(2, right)
	require.True(t, errors.Is(err, ErrInternalInvariant))
	err = it.splitAt(10, right)
	require.True(t, errors.Is(err, ErrInternalInvariant))
}

func TestResetInterval(t *testing.T) {
	it := newTestInterval(7, liveRange{0, 4})
	it.uses = append(it.uses, usePos{point: 1})
	it.state = stateAssigned
	it.alloc = AllocationReg(2)
	it.weight = 9

	resetInterval(it)
	require.Empty(t, it.ranges)
	require.Empty(t, it.uses)
	require.Equal(t, -1, it.group)
	require.Equal(t, PRegInvalid, it.fixedReg)
	require.Equal(t, PRegInvalid, it.hint)
	require.Equal(t, stateUnassigned, it.state)
	require.Equal(t, AllocationNone, it.alloc)
	require.Equal(t, ProgramPointInvalid, it.start())
}

func TestMergeRanges(t *testing.T) {
	rs := []liveRange{{10, 14}, {2, 5}, {4, 8}, {20, 22}}
	require.Equal(t, []liveRange{{2, 8}, {10, 14}, {20, 22}}, mergeRanges(rs))

	single := []liveRange{{1, 2}}
	require.Equal(t, single, mergeRanges(single))
}

func TestIntervalStateString(t *testing.T) {
	require.Equal(t, "unassigned", stateUnassigned.String())
	require.Equal(t, "queued", stateQueued.String())
	require.Equal(t, "assigned", stateAssigned.String())
	require.Equal(t, "spilled", stateSpilled.String())
}
