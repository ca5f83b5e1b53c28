package regalloc

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// liveRange is a half-open [start, end) span of program points during which
// a value must be available.
type liveRange struct {
	start, end ProgramPoint
}

func (r liveRange) overlaps(o liveRange) bool {
	return r.start < o.end && o.start < r.end
}

func (r liveRange) contains(p ProgramPoint) bool {
	return r.start <= p && p < r.end
}

// String implements fmt.Stringer.
func (r liveRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.start, r.end)
}

// intervalState is the allocation state of one interval.
type intervalState uint8

const (
	stateUnassigned intervalState = iota
	stateQueued
	stateAssigned
	stateSpilled
)

// String implements fmt.Stringer.
func (s intervalState) String() string {
	switch s {
	case stateUnassigned:
		return "unassigned"
	case stateQueued:
		return "queued"
	case stateAssigned:
		return "assigned"
	case stateSpilled:
		return "spilled"
	default:
		return "state?"
	}
}

// usePos records one use or definition site inside an interval, with the
// frequency of the enclosing block for cost estimation.
type usePos struct {
	point ProgramPoint
	freq  float64
	isDef bool
	// fixed is the register required at this site, or PRegInvalid.
	fixed PReg
	// stack marks a site that addresses the value in its spill slot and
	// therefore needs no register.
	stack bool
}

// interval is the unit of allocation: the portion of one virtual register's
// liveness currently being placed. Splitting produces sibling intervals
// that exactly partition the parent's liveness.
type interval struct {
	id    int
	vreg  VReg
	class RegClass

	// group is the context-local group index, or -1. groupIndex is the
	// position of vreg within its group tuple.
	group      int
	groupIndex int

	// ranges is the sorted, disjoint list of live ranges. uses is sorted by
	// point and holds only sites inside ranges.
	ranges []liveRange
	uses   []usePos

	state intervalState
	alloc Allocation

	// weight orders the allocation queue and decides evictions: an interval
	// may only evict strictly lighter ones. Minimal intervals created for
	// spill reloads and fixed-register sites are infinitely heavy.
	weight float64

	// fixedReg restricts the candidate set to one register, used for the
	// minimal intervals split off around fixed-constraint sites.
	fixedReg PReg

	// hint is a register to try first, propagated from copy relations and
	// tied operands.
	hint PReg

	// requireReg marks minimal intervals that must land in a register
	// (use/def sites of a spilled value).
	requireReg bool

	// remat is set in the spill stage when recomputing the value was
	// estimated cheaper than a slot.
	remat bool
}

func resetInterval(it *interval) {
	*it = interval{
		ranges:   it.ranges[:0],
		uses:     it.uses[:0],
		group:    -1,
		fixedReg: PRegInvalid,
		hint:     PRegInvalid,
	}
}

func (it *interval) start() ProgramPoint {
	if len(it.ranges) == 0 {
		return ProgramPointInvalid
	}
	return it.ranges[0].start
}

func (it *interval) end() ProgramPoint {
	if len(it.ranges) == 0 {
		return ProgramPointInvalid
	}
	return it.ranges[len(it.ranges)-1].end
}

func (it *interval) covers(p ProgramPoint) bool {
	i := sort.Search(len(it.ranges), func(i int) bool { return it.ranges[i].end > p })
	return i < len(it.ranges) && it.ranges[i].contains(p)
}

// firstOverlap returns the earliest point at which it and r overlap, or
// ProgramPointInvalid when they are disjoint.
func (it *interval) firstOverlap(r liveRange) ProgramPoint {
	i := sort.Search(len(it.ranges), func(i int) bool { return it.ranges[i].end > r.start })
	if i == len(it.ranges) || !it.ranges[i].overlaps(r) {
		return ProgramPointInvalid
	}
	if it.ranges[i].start > r.start {
		return it.ranges[i].start
	}
	return r.start
}

// minimal reports whether the interval cannot usefully be split further: it
// spans at most one instruction or carries at most one use site.
func (it *interval) minimal() bool {
	if len(it.ranges) == 0 {
		return true
	}
	if it.end()-it.start() <= pointStride {
		return true
	}
	return len(it.uses) <= 1
}

// addRange extends the interval by [start, end), merging with the last
// range when adjacent. Ranges must be added in ascending order.
func (it *interval) addRange(start, end ProgramPoint) {
	if start >= end {
		return
	}
	if n := len(it.ranges); n > 0 {
		last := &it.ranges[n-1]
		if start < last.end {
			panic(fmt.Sprintf("BUG: ranges added out of order: %s then [%d,%d)", last, start, end))
		}
		if last.end == start {
			last.end = end
			return
		}
	}
	it.ranges = append(it.ranges, liveRange{start, end})
}

// computeWeight sets the queue priority: use density weighted by block
// frequency. The exact formula is a tuning policy; only the ordering it
// induces matters, with ties broken by ascending vreg id in the queue.
func (it *interval) computeWeight() {
	if it.requireReg || it.fixedReg != PRegInvalid {
		it.weight = math.Inf(1)
		return
	}
	var sum float64
	for _, u := range it.uses {
		sum += u.freq
	}
	span := float64(it.end() - it.start())
	if span < 1 {
		span = 1
	}
	it.weight = sum / span
}

// splitAt partitions the interval at point p into it (left, [start, p)) and
// a fresh sibling (right, [p, end)). p must lie strictly inside the
// interval's span. Uses are partitioned by point; a use exactly at p moves
// to the right sibling.
func (it *interval) splitAt(p ProgramPoint, right *interval) error {
	if p <= it.start() || p >= it.end() {
		return internalf("split point %d outside (%d,%d)", p, it.start(), it.end())
	}
	right.vreg = it.vreg
	right.class = it.class
	right.group = it.group
	right.groupIndex = it.groupIndex
	right.hint = it.hint

	i := sort.Search(len(it.ranges), func(i int) bool { return it.ranges[i].end > p })
	keep := it.ranges[:i]
	rest := it.ranges[i:]
	if len(rest) > 0 && rest[0].start < p {
		// p falls inside rest[0]: the range itself is cut in two.
		right.ranges = append(right.ranges, liveRange{p, rest[0].end})
		right.ranges = append(right.ranges, rest[1:]...)
		keep = append(keep, liveRange{rest[0].start, p})
	} else {
		right.ranges = append(right.ranges, rest...)
	}
	it.ranges = keep

	u := sort.Search(len(it.uses), func(i int) bool { return it.uses[i].point >= p })
	right.uses = append(right.uses, it.uses[u:]...)
	it.uses = it.uses[:u]

	if len(it.ranges) == 0 || len(right.ranges) == 0 {
		return internalf("split at %d produced an empty sibling", p)
	}
	return nil
}

// String implements fmt.Stringer for debugging.
func (it *interval) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s@%s w=%.3g ", it.vreg, it.state, it.weight)
	for _, r := range it.ranges {
		buf.WriteString(r.String())
	}
	if it.alloc != AllocationNone {
		buf.WriteString(" -> " + it.alloc.String())
	}
	return buf.String()
}
