package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	n     int
	fresh bool
}

func TestPoolAllocate(t *testing.T) {
	p := NewPool[item](nil)
	require.Zero(t, p.Allocated())

	a := p.Allocate()
	b := p.Allocate()
	require.NotSame(t, a, b)
	require.Equal(t, 2, p.Allocated())

	a.n = 1
	b.n = 2
	require.Same(t, a, p.View(0))
	require.Same(t, b, p.View(1))
	require.Equal(t, 1, p.View(0).n)
}

func TestPoolSpansPages(t *testing.T) {
	p := NewPool[item](nil)
	seen := map[*item]bool{}
	for i := 0; i < 3*poolPageSize+1; i++ {
		it := p.Allocate()
		require.False(t, seen[it])
		seen[it] = true
		it.n = i
	}
	require.Equal(t, 3*poolPageSize+1, p.Allocated())
	require.Equal(t, 0, p.View(0).n)
	require.Equal(t, poolPageSize, p.View(poolPageSize).n)
	require.Equal(t, 3*poolPageSize, p.View(3*poolPageSize).n)
}

func TestPoolResetRecyclesPages(t *testing.T) {
	p := NewPool[item](nil)
	first := p.Allocate()
	first.n = 42

	p.Reset()
	require.Zero(t, p.Allocated())

	// Without a reset function, recycled items keep their old contents.
	again := p.Allocate()
	require.Same(t, first, again)
	require.Equal(t, 42, again.n)
}

func TestPoolResetFn(t *testing.T) {
	p := NewPool[item](func(it *item) { *it = item{fresh: true} })

	a := p.Allocate()
	require.True(t, a.fresh)
	a.fresh = false
	a.n = 7

	p.Reset()
	b := p.Allocate()
	require.Same(t, a, b)
	require.True(t, b.fresh, "reset function must run on recycled items")
	require.Zero(t, b.n)
}
