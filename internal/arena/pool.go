// Package arena provides object pools that amortize allocation across
// repeated uses of a regalloc.Context. A pool hands out items from
// fixed-size pages and never frees them; Reset makes every page available
// again without returning memory to the runtime.
package arena

const poolPageSize = 128

// Pool is a pool of T that can be allocated from and reset.
type Pool[T any] struct {
	pages            []*[poolPageSize]T
	resetFn          func(*T)
	allocated, index int
}

// NewPool returns a new Pool. If resetFn is non-nil it is called on each
// item as it is handed out, so recycled items start from a known state.
func NewPool[T any](resetFn func(*T)) Pool[T] {
	return Pool[T]{resetFn: resetFn, index: poolPageSize}
}

// Allocated returns the number of items handed out since the last Reset.
func (p *Pool[T]) Allocated() int {
	return p.allocated
}

// Allocate hands out one item.
func (p *Pool[T]) Allocate() *T {
	if p.index == poolPageSize {
		if len(p.pages) == cap(p.pages) {
			p.pages = append(p.pages, new([poolPageSize]T))
		} else {
			i := len(p.pages)
			p.pages = p.pages[:i+1]
			if p.pages[i] == nil {
				p.pages[i] = new([poolPageSize]T)
			}
		}
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	if p.resetFn != nil {
		p.resetFn(ret)
	}
	p.index++
	p.allocated++
	return ret
}

// View returns the i-th item handed out since the last Reset.
func (p *Pool[T]) View(i int) *T {
	page, index := i/poolPageSize, i%poolPageSize
	return &p.pages[page][index]
}

// Reset makes all pages available again without freeing them.
func (p *Pool[T]) Reset() {
	p.pages = p.pages[:0]
	p.index = poolPageSize
	p.allocated = 0
}
