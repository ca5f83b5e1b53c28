package regalloc

import "math/bits"

// vregSet is a dense bitset over virtual register ids, used for the
// per-block live-in/live-out/gen/kill sets of the liveness fixpoint.
type vregSet struct {
	bits []uint64
	// Most blocks only touch a handful of low-numbered vregs, so short
	// backing arrays dominate; this buffer backs up to 320 bits before the
	// set is offloaded to the heap.
	buf [5]uint64
}

func (s *vregSet) reset() {
	s.bits, s.buf = s.bits[:0], [5]uint64{}
}

func (s *vregSet) growWords(n int) {
	if n <= len(s.bits) {
		return
	}
	if s.bits == nil && n <= len(s.buf) {
		s.bits = s.buf[:n]
		return
	}
	s.bits = append(s.bits, make([]uint64, n-len(s.bits))...)
}

func (s *vregSet) has(v VReg) bool {
	index, shift := int(v/64), v%64
	return index < len(s.bits) && s.bits[index]&(1<<shift) != 0
}

func (s *vregSet) set(v VReg) {
	index, shift := int(v/64), v%64
	s.growWords(index + 1)
	s.bits[index] |= 1 << shift
}

func (s *vregSet) unset(v VReg) {
	index, shift := int(v/64), v%64
	if index < len(s.bits) {
		s.bits[index] &^= 1 << shift
	}
}

// unionWith adds all members of o and reports whether s changed.
func (s *vregSet) unionWith(o *vregSet) (changed bool) {
	s.growWords(len(o.bits))
	for i, w := range o.bits {
		if old := s.bits[i]; old|w != old {
			s.bits[i] = old | w
			changed = true
		}
	}
	return changed
}

// empty reports whether no bit is set.
func (s *vregSet) empty() bool {
	for _, w := range s.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// scan calls f for each member in ascending id order.
func (s *vregSet) scan(f func(VReg)) {
	for i, v := range s.bits {
		for j := uint(i * 64); v != 0; j++ {
			n := uint(bits.TrailingZeros64(v))
			j += n
			v >>= n + 1
			f(VReg(j))
		}
	}
}
