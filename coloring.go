package regalloc

// allocateSlots colors the spilled intervals onto stack slots. Slots are
// reused first-fit in creation order, so two values whose lifetimes do not
// overlap share a slot as long as their size and alignment match. All
// spilled siblings of one vreg share a single slot, which makes the
// stack-to-stack transition between two spilled pieces a no-op.
func (a *allocState) allocateSlots() error {
	c := a.c
	for _, it := range c.intervals {
		if it.state != stateSpilled || len(it.ranges) == 0 {
			continue
		}
		if it.remat {
			it.alloc = AllocationRemat()
			continue
		}
		slot := a.vregSlot[it.vreg]
		if slot < 0 {
			size, align, err := a.slotShape(it.class)
			if err != nil {
				return err
			}
			slot = a.findSlot(size, align, it.ranges)
			a.vregSlot[it.vreg] = slot
		}
		s := &c.slots[slot]
		s.ranges = mergeRanges(append(s.ranges, it.ranges...))
		it.alloc = AllocationStack(slot)
		c.logf("slot %d <- %s", slot, it)
	}

	// A slot-addressed site can sit inside a carved register piece. When
	// every piece of such a vreg was carved there is no spilled sibling,
	// yet the sites still need a slot to read and write.
	for v := 0; v < a.numVRegs; v++ {
		if !a.stackReq[v] || a.vregSlot[v] >= 0 {
			continue
		}
		var cl RegClass
		var ranges []liveRange
		for _, id := range c.vregIvals[v] {
			it := c.intervals[id]
			cl = it.class
			ranges = append(ranges, it.ranges...)
		}
		if len(ranges) == 0 {
			continue
		}
		ranges = mergeRanges(ranges)
		size, align, err := a.slotShape(cl)
		if err != nil {
			return err
		}
		slot := a.findSlot(size, align, ranges)
		a.vregSlot[v] = slot
		s := &c.slots[slot]
		s.ranges = mergeRanges(append(s.ranges, ranges...))
	}
	return nil
}

// slotShape fetches and validates the spill slot shape of a class.
// Alignments must be powers of two.
func (a *allocState) slotShape(class RegClass) (size, align uint32, err error) {
	size, align = a.ri.SlotInfo(class)
	if size == 0 || align == 0 || align&(align-1) != 0 {
		return 0, 0, invalidf("%s has an invalid spill slot shape %dx%d", class, size, align)
	}
	return size, align, nil
}

// findSlot returns the first existing slot of matching shape whose occupancy
// does not overlap ranges, creating a fresh slot when none fits.
func (a *allocState) findSlot(size, align uint32, ranges []liveRange) int {
	c := a.c
	for i := range c.slots {
		s := &c.slots[i]
		if s.scratch || s.size != size || s.align != align {
			continue
		}
		if !rangesOverlap(s.ranges, ranges) {
			return i
		}
	}
	c.slots = append(c.slots, slotState{size: size, align: align})
	return len(c.slots) - 1
}

// newScratchSlot reserves a slot for breaking a parallel-copy cycle when no
// free register is available. The slot is live only across the shuffle, but
// bounding that precisely buys nothing, so it is simply never shared.
func (a *allocState) newScratchSlot(size, align uint32) int {
	c := a.c
	c.slots = append(c.slots, slotState{size: size, align: align, scratch: true})
	return len(c.slots) - 1
}

// rangesOverlap reports whether two sorted, merged range lists intersect.
func rangesOverlap(xs, ys []liveRange) bool {
	i, j := 0, 0
	for i < len(xs) && j < len(ys) {
		if xs[i].overlaps(ys[j]) {
			return true
		}
		if xs[i].end <= ys[j].end {
			i++
		} else {
			j++
		}
	}
	return false
}
