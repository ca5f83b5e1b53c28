package regalloc

import (
	"math/bits"
	"strings"
)

// RegSet is a set of physical registers.
type RegSet [NumPRegMax / 64]uint64

// NewRegSet returns a RegSet holding the given registers.
func NewRegSet(regs ...PReg) RegSet {
	var ret RegSet
	for _, r := range regs {
		ret.Add(r)
	}
	return ret
}

// Add inserts r into the set.
func (rs *RegSet) Add(r PReg) {
	if !r.Valid() {
		return
	}
	rs[r/64] |= 1 << (r % 64)
}

// Remove deletes r from the set.
func (rs *RegSet) Remove(r PReg) {
	if !r.Valid() {
		return
	}
	rs[r/64] &^= 1 << (r % 64)
}

// Has reports whether r is in the set.
func (rs RegSet) Has(r PReg) bool {
	return r.Valid() && rs[r/64]&(1<<(r%64)) != 0
}

// Range calls f for each member in ascending order.
func (rs RegSet) Range(f func(PReg)) {
	for i, w := range rs {
		for j := uint(i * 64); w != 0; j++ {
			n := uint(bits.TrailingZeros64(w))
			j += n
			w >>= n + 1
			f(PReg(j))
		}
	}
}

func (rs RegSet) format(info RegInfo) string { //nolint:unused
	var names []string
	rs.Range(func(r PReg) {
		names = append(names, info.PRegName(r))
	})
	return strings.Join(names, ", ")
}
