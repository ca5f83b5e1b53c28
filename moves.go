package regalloc

import "sort"

// moveKey identifies one position where reconciliation moves execute: a
// block boundary (pred >= 0, instr == -1) or the gap before one instruction.
type moveKey struct {
	block int
	instr int
	pred  int
}

// pendingMove is one transition of a parallel move set before scheduling.
type pendingMove struct {
	v        VReg
	class    RegClass
	from, to Allocation
}

// moveGroup is the parallel move set of one position. at holds the program
// points at which a scratch register must be free to break a cycle.
type moveGroup struct {
	key  moveKey
	at   [2]ProgramPoint
	pend []pendingMove
}

// resolveMoves inserts the copies, stores, loads and rematerializations that
// carry each value between the locations of its sibling intervals. Moves at
// one position form a parallel set: they read their sources before any
// destination is written, so scheduling orders them and breaks permutation
// cycles through a scratch location.
func (a *allocState) resolveMoves() error {
	c := a.c
	groups := map[moveKey]*moveGroup{}
	add := func(key moveKey, at [2]ProgramPoint, m pendingMove) {
		g := groups[key]
		if g == nil {
			g = &moveGroup{key: key, at: at}
			groups[key] = g
		}
		g.pend = append(g.pend, m)
	}

	// Transitions between consecutive siblings inside a block. Boundaries
	// that coincide with a block begin are reconciled per edge instead, so
	// each predecessor gets the moves its own locations require.
	for v := 0; v < a.numVRegs; v++ {
		ids := c.vregIvals[v]
		if len(ids) < 2 {
			continue
		}
		sibs := make([]*interval, 0, len(ids))
		for _, id := range ids {
			if it := c.intervals[id]; len(it.ranges) > 0 {
				sibs = append(sibs, it)
			}
		}
		sort.Slice(sibs, func(i, j int) bool { return sibs[i].start() < sibs[j].start() })
		for i := 0; i+1 < len(sibs); i++ {
			left, right := sibs[i], sibs[i+1]
			p := right.start()
			if left.end() != p {
				// A liveness hole: the value flows around it along CFG
				// edges, where the edge pass reconciles it.
				continue
			}
			bi := a.pointBlock(p)
			if p == c.blocks[bi].begin {
				continue
			}
			gap := int((p - c.blocks[bi].begin + 1) / pointStride)
			// A use-less sibling whose whole span sits inside this same gap
			// is a splitting artifact: the value flows straight through it
			// to its successor, never resting in the intermediate location.
			for len(right.uses) == 0 && i+2 < len(sibs) && sibs[i+2].start() == right.end() {
				q := right.end()
				if a.pointBlock(q) != bi || int((q-c.blocks[bi].begin+1)/pointStride) != gap {
					break
				}
				i++
				right = sibs[i+1]
			}
			key := moveKey{block: bi, instr: gap, pred: -1}
			at := [2]ProgramPoint{p, p}
			if m, ok := a.slotRefresh(left, right); ok {
				add(key, at, m)
			}
			if m, ok := a.transition(left, right); ok {
				add(key, at, m)
			}
		}
	}

	// Transitions across CFG edges, for every value live through the edge
	// whose locations differ between the two endpoints.
	for bi := range c.blocks {
		b := &c.blocks[bi]
		succs := a.f.Block(bi).Succs()
		for _, si := range succs {
			if si < 0 || si >= len(c.blocks) {
				return invalidf("block %d has dangling successor %d", bi, si)
			}
			s := &c.blocks[si]
			var pend []pendingMove
			var scanErr error
			b.liveOut.scan(func(v VReg) {
				if scanErr != nil || !s.liveIn.has(v) {
					return
				}
				left := c.siblingAt(v, b.end-1)
				right := c.siblingAt(v, s.begin)
				if left == nil || right == nil {
					scanErr = internalf("%s live through edge %d->%d has no covering interval", v, bi, si)
					return
				}
				if left == right {
					return
				}
				if right.start() == s.begin {
					if m, ok := a.slotRefresh(left, right); ok {
						pend = append(pend, m)
					}
				}
				if m, ok := a.transition(left, right); ok {
					pend = append(pend, m)
				}
			})
			if scanErr != nil {
				return scanErr
			}
			if len(pend) == 0 {
				continue
			}
			if len(succs) > 1 && len(a.f.Block(si).Preds()) > 1 {
				return invalidf("critical edge %d->%d requires reconciliation moves; split it first", bi, si)
			}
			key := moveKey{block: si, instr: -1, pred: bi}
			for _, m := range pend {
				add(key, [2]ProgramPoint{b.end - 1, s.begin}, m)
			}
		}
	}

	keys := make([]moveKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		x, y := keys[i], keys[j]
		if x.block != y.block {
			return x.block < y.block
		}
		if x.instr != y.instr {
			return x.instr < y.instr
		}
		return x.pred < y.pred
	})
	for _, k := range keys {
		if err := a.scheduleGroup(groups[k]); err != nil {
			return err
		}
	}
	return nil
}

// slotRefresh computes the store that keeps a slot-addressed site honest:
// when a register piece opens with a site reading the value out of its
// spill slot while the value arrives from another register, the slot does
// not hold the current value yet and must be written first. A feed out of
// the slot itself needs no refresh.
func (a *allocState) slotRefresh(left, right *interval) (pendingMove, bool) {
	if left.alloc.Kind() != AllocReg || right.alloc.Kind() != AllocReg {
		return pendingMove{}, false
	}
	reads := false
	for _, u := range right.uses {
		if u.point != right.start() {
			break
		}
		if u.stack && !u.isDef {
			reads = true
			break
		}
	}
	if !reads {
		return pendingMove{}, false
	}
	slot := a.vregSlot[right.vreg]
	if slot < 0 {
		return pendingMove{}, false
	}
	return pendingMove{v: left.vreg, class: left.class, from: left.alloc, to: AllocationStack(slot)}, true
}

// transition computes the pending move that carries a value from left's
// location to right's at their shared boundary, or ok == false when nothing
// needs to move.
func (a *allocState) transition(left, right *interval) (pendingMove, bool) {
	if len(right.uses) > 0 && right.uses[0].point == right.start() && right.uses[0].isDef {
		// right begins with a definition; the incoming value is dead.
		return pendingMove{}, false
	}
	from, to := left.alloc, right.alloc
	if to.Kind() == AllocRemat || from == to {
		return pendingMove{}, false
	}
	if from.Kind() == AllocReg && to.Kind() == AllocStack && !hasDef(left) {
		// A pure-use piece fed out of that same slot did not change the
		// value, so the slot still holds it. Only an intra-block feed
		// identifies the feeder: at a block begin the value may arrive
		// from several predecessors in different locations.
		s := left.start()
		if s != a.c.blocks[a.pointBlock(s)].begin {
			if prev := a.c.siblingAt(left.vreg, s-1); prev != nil && prev.alloc == to {
				return pendingMove{}, false
			}
		}
	}
	return pendingMove{v: left.vreg, class: left.class, from: from, to: to}, true
}

func hasDef(it *interval) bool {
	for _, u := range it.uses {
		if u.isDef {
			return true
		}
	}
	return false
}

// scheduleGroup orders one parallel move set so every source is read before
// it is overwritten. When only a permutation remains, one value is parked in
// a scratch location to break the cycle.
func (a *allocState) scheduleGroup(g *moveGroup) error {
	pend := g.pend
	for len(pend) > 0 {
		progress := false
		for i := 0; i < len(pend); i++ {
			if pendingReads(pend, i, pend[i].to) {
				continue
			}
			a.emitMove(g.key, pend[i])
			pend = append(pend[:i], pend[i+1:]...)
			i--
			progress = true
		}
		if progress {
			continue
		}
		j := -1
		for k := range pend {
			if pend[k].from == pend[0].to {
				j = k
				break
			}
		}
		if j < 0 {
			return internalf("parallel move set stalled without a cycle")
		}
		scratch, err := a.findScratch(g, pend, pend[j].class)
		if err != nil {
			return err
		}
		a.emitMove(g.key, pendingMove{v: pend[j].v, class: pend[j].class, from: pend[j].from, to: scratch})
		pend[j].from = scratch
	}
	return nil
}

// pendingReads reports whether any pending move other than i still reads
// location loc.
func pendingReads(pend []pendingMove, i int, loc Allocation) bool {
	for j := range pend {
		if j != i && pend[j].from == loc {
			return true
		}
	}
	return false
}

// findScratch picks a location to park one cycle member in: a register of
// the class that is unoccupied at the move position and untouched by the
// pending set, or a dedicated stack slot when every register is taken.
func (a *allocState) findScratch(g *moveGroup, pend []pendingMove, class RegClass) (Allocation, error) {
	for _, r := range a.ri.ClassRegs(class) {
		if int(r) >= a.numPRegs {
			continue
		}
		if !a.scratchFree(r, g.at) || usedByPending(pend, r) {
			continue
		}
		return AllocationReg(r), nil
	}
	size, align, err := a.slotShape(class)
	if err != nil {
		return AllocationNone, err
	}
	return AllocationStack(a.newScratchSlot(size, align)), nil
}

func (a *allocState) scratchFree(r PReg, at [2]ProgramPoint) bool {
	occ := &a.c.occ
	if !occ.freeAt(r, at[0]) || !occ.freeAt(r, at[1]) {
		return false
	}
	for _, q := range a.ri.Aliases(r) {
		if int(q) >= a.numPRegs {
			continue
		}
		if !occ.freeAt(q, at[0]) || !occ.freeAt(q, at[1]) {
			return false
		}
	}
	return true
}

func usedByPending(pend []pendingMove, r PReg) bool {
	al := AllocationReg(r)
	for _, m := range pend {
		if m.from == al || m.to == al {
			return true
		}
	}
	return false
}

func (a *allocState) emitMove(k moveKey, m pendingMove) {
	mv := Move{
		Kind:  moveKindFor(m.from, m.to),
		VReg:  m.v,
		From:  m.from,
		To:    m.to,
		Block: k.block,
		Instr: k.instr,
		Pred:  k.pred,
	}
	a.moves = append(a.moves, mv)
	a.c.logf("move %s", mv)
}
