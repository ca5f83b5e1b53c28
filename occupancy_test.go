package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOccupancyReserveAndConflicts(t *testing.T) {
	var occ occupancy
	occ.init(2)

	occ.reserve(0, []liveRange{{10, 14}}, 1)
	occ.reserve(0, []liveRange{{2, 5}}, 2)
	occ.reserve(1, []liveRange{{0, 100}}, 3)

	var out []int
	clobbered, first := occ.conflicts(0, []liveRange{{4, 11}}, &out)
	require.False(t, clobbered)
	require.Equal(t, ProgramPoint(4), first)
	require.ElementsMatch(t, []int{1, 2}, out)

	out = out[:0]
	clobbered, first = occ.conflicts(0, []liveRange{{5, 10}}, &out)
	require.False(t, clobbered)
	require.Equal(t, ProgramPointInvalid, first)
	require.Empty(t, out)
}

func TestOccupancyConflictsDeduplicates(t *testing.T) {
	var occ occupancy
	occ.init(1)
	occ.reserve(0, []liveRange{{0, 2}, {6, 8}}, 7)

	var out []int
	_, first := occ.conflicts(0, []liveRange{{1, 7}}, &out)
	require.Equal(t, ProgramPoint(1), first)
	require.Equal(t, []int{7}, out)
}

func TestOccupancyClobberEntries(t *testing.T) {
	var occ occupancy
	occ.init(1)
	occ.reserve(0, []liveRange{{3, 4}}, clobberInterval)
	occ.reserve(0, []liveRange{{6, 9}}, 4)

	var out []int
	clobbered, first := occ.conflicts(0, []liveRange{{2, 7}}, &out)
	require.True(t, clobbered)
	require.Equal(t, ProgramPoint(3), first)
	// Clobber reservations are reported through the flag, not the id list.
	require.Equal(t, []int{4}, out)
}

func TestOccupancyRelease(t *testing.T) {
	var occ occupancy
	occ.init(1)
	occ.reserve(0, []liveRange{{0, 2}, {8, 10}}, 1)
	occ.reserve(0, []liveRange{{4, 6}}, 2)

	occ.release(0, 1)

	var out []int
	clobbered, first := occ.conflicts(0, []liveRange{{0, 12}}, &out)
	require.False(t, clobbered)
	require.Equal(t, ProgramPoint(4), first)
	require.Equal(t, []int{2}, out)
}

func TestOccupancyFreeAt(t *testing.T) {
	var occ occupancy
	occ.init(1)
	occ.reserve(0, []liveRange{{4, 6}}, 1)

	require.True(t, occ.freeAt(0, 3))
	require.False(t, occ.freeAt(0, 4))
	require.False(t, occ.freeAt(0, 5))
	require.True(t, occ.freeAt(0, 6))
}

func TestOccupancyKeepsEntriesSorted(t *testing.T) {
	var occ occupancy
	occ.init(1)
	occ.reserve(0, []liveRange{{8, 10}}, 1)
	occ.reserve(0, []liveRange{{0, 2}}, 2)
	occ.reserve(0, []liveRange{{4, 6}}, 3)

	entries := occ.perReg[0]
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.LessOrEqual(t, entries[i-1].r.end, entries[i].r.start)
	}
}
