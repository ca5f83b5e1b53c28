package regalloc

import "sort"

// occEntry records that an interval holds a register over one live range.
// The interval id is -1 for clobber reservations, which are infinitely
// heavy and never evictable.
type occEntry struct {
	r        liveRange
	interval int
}

const clobberInterval = -1

// occupancy tracks, per physical register, the sorted set of live ranges
// currently assigned to it. It answers the interference queries of the
// greedy loop: whether a candidate interval fits a register (through its
// aliases), and which occupants stand in the way.
type occupancy struct {
	perReg [][]occEntry
}

func (o *occupancy) init(numPRegs int) {
	if cap(o.perReg) < numPRegs {
		o.perReg = make([][]occEntry, numPRegs)
	}
	o.perReg = o.perReg[:numPRegs]
	for i := range o.perReg {
		o.perReg[i] = o.perReg[i][:0]
	}
}

// reserve records the ranges of the given interval on register p.
func (o *occupancy) reserve(p PReg, ranges []liveRange, intervalID int) {
	entries := o.perReg[p]
	for _, r := range ranges {
		i := sort.Search(len(entries), func(i int) bool { return entries[i].r.start >= r.start })
		entries = append(entries, occEntry{})
		copy(entries[i+1:], entries[i:])
		entries[i] = occEntry{r: r, interval: intervalID}
	}
	o.perReg[p] = entries
}

// release removes every entry of the given interval from register p.
func (o *occupancy) release(p PReg, intervalID int) {
	entries := o.perReg[p]
	kept := entries[:0]
	for _, e := range entries {
		if e.interval != intervalID {
			kept = append(kept, e)
		}
	}
	o.perReg[p] = kept
}

// conflicts appends to out the ids of intervals whose entries on p overlap
// any of the given ranges, deduplicated. It reports whether a clobber
// reservation conflicts, and the earliest conflicting point.
func (o *occupancy) conflicts(p PReg, ranges []liveRange, out *[]int) (clobbered bool, first ProgramPoint) {
	first = ProgramPointInvalid
	entries := o.perReg[p]
	for _, r := range ranges {
		i := sort.Search(len(entries), func(i int) bool { return entries[i].r.end > r.start })
		for ; i < len(entries) && entries[i].r.start < r.end; i++ {
			e := entries[i]
			if !e.r.overlaps(r) {
				continue
			}
			at := e.r.start
			if at < r.start {
				at = r.start
			}
			if first == ProgramPointInvalid || at < first {
				first = at
			}
			if e.interval == clobberInterval {
				clobbered = true
				continue
			}
			seen := false
			for _, id := range *out {
				if id == e.interval {
					seen = true
					break
				}
			}
			if !seen {
				*out = append(*out, e.interval)
			}
		}
	}
	return clobbered, first
}

// freeAt reports whether register p is unoccupied at the given point.
func (o *occupancy) freeAt(p PReg, at ProgramPoint) bool {
	entries := o.perReg[p]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].r.end > at })
	return i == len(entries) || !entries[i].r.contains(at)
}
