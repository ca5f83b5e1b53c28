package regalloc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocQueueOrdering(t *testing.T) {
	var q allocQueue

	light := newTestInterval(2, liveRange{0, 4})
	light.weight = 0.5
	heavy := newTestInterval(1, liveRange{0, 4})
	heavy.weight = 2
	pinned := newTestInterval(3, liveRange{0, 2})
	pinned.weight = math.Inf(1)

	q.push(light)
	q.push(heavy)
	q.push(pinned)

	require.Equal(t, 3, q.Len())
	require.Same(t, pinned, q.pop())
	require.Same(t, heavy, q.pop())
	require.Same(t, light, q.pop())
	require.Zero(t, q.Len())
}

func TestAllocQueueTieBreaksByVReg(t *testing.T) {
	var q allocQueue
	a := newTestInterval(5, liveRange{0, 4})
	b := newTestInterval(2, liveRange{0, 4})
	a.weight, b.weight = 1, 1

	q.push(a)
	q.push(b)
	require.Same(t, b, q.pop())
	require.Same(t, a, q.pop())
}

func TestAllocQueueTieBreaksByID(t *testing.T) {
	var q allocQueue
	a := newTestInterval(1, liveRange{0, 4})
	b := newTestInterval(1, liveRange{6, 8})
	a.id, b.id = 4, 2
	a.weight, b.weight = 1, 1

	q.push(a)
	q.push(b)
	require.Same(t, b, q.pop())
	require.Same(t, a, q.pop())
}

func TestAllocQueuePushMarksQueued(t *testing.T) {
	var q allocQueue
	it := newTestInterval(0, liveRange{0, 2})
	require.Equal(t, stateUnassigned, it.state)
	q.push(it)
	require.Equal(t, stateQueued, it.state)
}

func TestAllocQueueReset(t *testing.T) {
	var q allocQueue
	q.push(newTestInterval(0, liveRange{0, 2}))
	q.reset()
	require.Zero(t, q.Len())
}
