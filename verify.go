package regalloc

// verify checks the assignment before moves are resolved: the siblings of
// each virtual register partition its liveness, every live interval carries
// a resolved location of the right kind, pinned intervals got their
// register, and no register holds two overlapping ranges, directly or
// through an alias.
func (a *allocState) verify() error {
	c := a.c
	var all []liveRange
	for v := 0; v < a.numVRegs; v++ {
		all = all[:0]
		for _, id := range c.vregIvals[v] {
			it := c.intervals[id]
			if len(it.ranges) == 0 {
				continue
			}
			switch it.state {
			case stateAssigned:
				if it.alloc.Kind() != AllocReg {
					return internalf("%s is assigned but holds %s", it, it.alloc)
				}
				if it.fixedReg != PRegInvalid && it.alloc.Reg() != it.fixedReg {
					return internalf("%s pinned to %s but placed in %s", it, it.fixedReg, it.alloc.Reg())
				}
			case stateSpilled:
				if k := it.alloc.Kind(); k != AllocStack && k != AllocRemat {
					return internalf("%s is spilled but holds %s", it, it.alloc)
				}
			default:
				return internalf("%s left in state %s", it, it.state)
			}
			all = append(all, it.ranges...)
		}
		sortRanges(all)
		for i := 1; i < len(all); i++ {
			if all[i].start < all[i-1].end {
				return internalf("sibling ranges of v%d overlap at %d", v, all[i].start)
			}
		}
	}
	for p := range c.occ.perReg {
		es := c.occ.perReg[p]
		for i := 1; i < len(es); i++ {
			if es[i].r.start < es[i-1].r.end {
				return internalf("register p%d double-booked at %d", p, es[i].r.start)
			}
		}
		for _, q := range a.ri.Aliases(PReg(p)) {
			if int(q) <= p || int(q) >= a.numPRegs {
				continue
			}
			qs := c.occ.perReg[q]
			for i, j := 0, 0; i < len(es) && j < len(qs); {
				x, y := es[i], qs[j]
				if x.r.overlaps(y.r) {
					// Two clobber reservations may coincide; a value on
					// either side may not.
					if x.interval != clobberInterval || y.interval != clobberInterval {
						at := x.r.start
						if y.r.start > at {
							at = y.r.start
						}
						return internalf("aliased registers p%d and %s double-booked at %d", p, q, at)
					}
				}
				if x.r.end <= y.r.end {
					i++
				} else {
					j++
				}
			}
		}
	}
	return nil
}
