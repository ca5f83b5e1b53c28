package regalloc

import "math"

// assignAll runs the greedy loop: intervals are popped heaviest-first and
// either placed in a register, placed after evicting strictly lighter
// occupants, split and re-queued, or - once minimal - handed to the spill
// path. The loop terminates because every step either resolves an interval
// or strictly shrinks one.
func (a *allocState) assignAll() error {
	c := a.c
	c.occ.init(a.numPRegs)
	if err := a.reserveClobbers(); err != nil {
		return err
	}
	for c.queue.Len() > 0 {
		it := c.queue.pop()
		if it.state != stateQueued {
			return internalf("popped interval in state %s", it.state)
		}
		var err error
		if it.group >= 0 {
			err = a.assignGroup(it)
		} else {
			err = a.assignOne(it)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// reserveClobbers pins the registers destroyed by call-like instructions as
// infinitely heavy occupants, so any value live across such a point is
// forced to split around it or spill. Registers that the instruction
// defines through a fixed operand are exempt: the clobber is the
// definition.
func (a *allocState) reserveClobbers() error {
	f, c := a.f, a.c
	for bi := range c.blocks {
		blk := f.Block(bi)
		b := &c.blocks[bi]
		for i, n := 0, blk.NumInstrs(); i < n; i++ {
			clobbers := blk.Instr(i).Clobbers()
			if len(clobbers) == 0 {
				continue
			}
			late := b.begin + ProgramPoint(i)*pointStride + pointLateOffset
			span := []liveRange{{late, late + 1}}
			for _, p := range clobbers {
				if int(p) >= a.numPRegs {
					continue
				}
				if fixedDefReg(blk.Instr(i), p) {
					continue
				}
				c.occ.reserve(p, span, clobberInterval)
			}
		}
	}
	return nil
}

func fixedDefReg(instr Instr, p PReg) bool {
	for _, op := range instr.Operands() {
		if op.Kind != OperandUse && op.Constraint.Kind() == ConstraintFixedReg && op.Constraint.Reg() == p {
			return true
		}
	}
	return false
}

// assignOne places a single ungrouped interval.
func (a *allocState) assignOne(it *interval) error {
	c := a.c

	// Candidate order: a pinned register stands alone; otherwise the copy
	// hint is tried first, then the class's preference order.
	a.c.pregBuf = a.c.pregBuf[:0]
	if it.fixedReg != PRegInvalid {
		a.c.pregBuf = append(a.c.pregBuf, it.fixedReg)
	} else {
		if h := a.resolveHint(it); h != PRegInvalid {
			a.c.pregBuf = append(a.c.pregBuf, h)
		}
		for _, p := range a.ri.ClassRegs(it.class) {
			a.c.pregBuf = append(a.c.pregBuf, p)
		}
	}
	candidates := a.c.pregBuf

	// 1. A register with no overlapping occupant wins immediately.
	for _, p := range candidates {
		if a.fits(p, it.ranges) {
			a.place(it, p)
			return nil
		}
	}

	// 2. Eviction: the first register whose occupants are all strictly
	// lighter than the candidate.
	bestConflict := ProgramPointInvalid
	for _, p := range candidates {
		evictable, first := a.evictableAt(p, it)
		if first != ProgramPointInvalid && first > bestConflict {
			bestConflict = first
		}
		if evictable {
			if err := a.evictConflicts(p, it); err != nil {
				return err
			}
			a.place(it, p)
			return nil
		}
	}

	// 3. Split, or 4. spill once minimal.
	if it.minimal() {
		return a.spillInterval(it)
	}
	p := a.chooseSplitPoint(it, bestConflict)
	if p == ProgramPointInvalid {
		return a.spillInterval(it)
	}
	right := c.newInterval(it.vreg, it.class)
	if err := it.splitAt(p, right); err != nil {
		return err
	}
	it.computeWeight()
	right.computeWeight()
	c.logf("split %s at %d -> %s | %s", it.vreg, p, it, right)
	c.queue.push(it)
	c.queue.push(right)
	return nil
}

// fits reports whether p and all its aliases are free over the ranges.
func (a *allocState) fits(p PReg, ranges []liveRange) bool {
	c := a.c
	c.conflictBuf = c.conflictBuf[:0]
	clobbered, first := c.occ.conflicts(p, ranges, &c.conflictBuf)
	if clobbered || first != ProgramPointInvalid {
		return false
	}
	for _, q := range a.ri.Aliases(p) {
		if int(q) >= a.numPRegs {
			continue
		}
		clobbered, first = c.occ.conflicts(q, ranges, &c.conflictBuf)
		if clobbered || first != ProgramPointInvalid {
			return false
		}
	}
	return true
}

// collectConflicts gathers the occupants of p and its aliases overlapping
// the ranges into c.conflictBuf, and returns whether a clobber reservation
// overlaps and the earliest conflicting point.
func (a *allocState) collectConflicts(p PReg, ranges []liveRange) (clobbered bool, first ProgramPoint) {
	c := a.c
	c.conflictBuf = c.conflictBuf[:0]
	clobbered, first = c.occ.conflicts(p, ranges, &c.conflictBuf)
	for _, q := range a.ri.Aliases(p) {
		if int(q) >= a.numPRegs {
			continue
		}
		cl, fi := c.occ.conflicts(q, ranges, &c.conflictBuf)
		clobbered = clobbered || cl
		if fi != ProgramPointInvalid && (first == ProgramPointInvalid || fi < first) {
			first = fi
		}
	}
	return clobbered, first
}

// evictableAt reports whether all occupants of p conflicting with it are
// strictly lighter, and the earliest conflicting point either way.
func (a *allocState) evictableAt(p PReg, it *interval) (bool, ProgramPoint) {
	clobbered, first := a.collectConflicts(p, it.ranges)
	if clobbered {
		return false, first
	}
	for _, id := range a.c.conflictBuf {
		if !(a.c.intervals[id].weight < it.weight) {
			return false, first
		}
	}
	return len(a.c.conflictBuf) > 0, first
}

// evictConflicts returns every occupant of p (and aliases) overlapping it
// to the queue. Evicting any member of a group tuple evicts the whole
// tuple.
func (a *allocState) evictConflicts(p PReg, it *interval) error {
	c := a.c
	clobbered, _ := a.collectConflicts(p, it.ranges)
	if clobbered {
		return internalf("evicting across a clobber reservation on %s", p)
	}
	c.evictBuf = append(c.evictBuf[:0], c.conflictBuf...)
	for _, id := range c.evictBuf {
		victim := c.intervals[id]
		if victim.state != stateAssigned {
			// Already evicted through another member of its tuple.
			continue
		}
		if err := a.evict(victim); err != nil {
			return err
		}
	}
	return nil
}

func (a *allocState) evict(victim *interval) error {
	c := a.c
	if victim.group >= 0 {
		members, err := a.groupTuple(victim)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.state != stateAssigned {
				return internalf("group tuple of %s evicted in state %s", victim.vreg, m.state)
			}
			c.occ.release(m.alloc.Reg(), m.id)
			m.alloc = AllocationNone
			m.state = stateQueued
			c.logf("evict %s (grouped)", m.vreg)
		}
		// Only the tuple leader re-enters the queue; placement re-homes
		// every member at once.
		c.queue.push(members[0])
		return nil
	}
	c.occ.release(victim.alloc.Reg(), victim.id)
	victim.alloc = AllocationNone
	c.logf("evict %s from %s", victim.vreg, victim)
	c.queue.push(victim)
	return nil
}

// place records the assignment of it to p.
func (a *allocState) place(it *interval, p PReg) {
	it.alloc = AllocationReg(p)
	it.state = stateAssigned
	a.c.occ.reserve(p, it.ranges, it.id)
	a.c.logf("assign %s -> %s", it, p)
}

// resolveHint returns the register currently backing the copy-hint source
// of it, if any.
func (a *allocState) resolveHint(it *interval) PReg {
	h := a.hintVReg[it.vreg]
	if h == VRegInvalid || int(h) >= a.numVRegs {
		return PRegInvalid
	}
	for _, id := range a.c.vregIvals[h] {
		src := a.c.intervals[id]
		if src.state == stateAssigned && src.class == it.class {
			return src.alloc.Reg()
		}
	}
	return PRegInvalid
}

// chooseSplitPoint picks where to cut an interval that could not be
// placed: the boundary of the block containing the first unavoidable
// conflict when that lies inside the interval, otherwise the early point
// immediately before the conflict. Split points always sit on an
// instruction boundary (an early point) so reconciliation copies can be
// inserted before the instruction.
func (a *allocState) chooseSplitPoint(it *interval, conflict ProgramPoint) ProgramPoint {
	start, end := it.start(), it.end()
	if conflict == ProgramPointInvalid || conflict >= end {
		conflict = end - 1
	}
	if conflict <= start {
		conflict = start + 1
	}
	p := a.c.blocks[a.pointBlock(conflict)].begin
	if p <= start {
		p = conflict &^ 1
	}
	if p <= start {
		p = (start + pointStride) &^ 1
	}
	if p >= end {
		p = (end - 1) &^ 1
	}
	if p <= start || p >= end {
		return ProgramPointInvalid
	}
	return p
}

// assignGroup places the tuple led by leader against the register file's
// group templates. All members succeed or fail together.
func (a *allocState) assignGroup(leader *interval) error {
	c := a.c
	members, err := a.groupTuple(leader)
	if err != nil {
		return err
	}

	// Pinned sites restrict which templates can home the tuple. A member
	// that needs two different registers is split between the pins first;
	// when no template matches the pins at all, the tuple falls through to
	// the split and spill path, where the carved sites keep their pins.
	pins := make([]PReg, len(members))
	for i, m := range members {
		pins[i] = PRegInvalid
		for _, u := range m.uses {
			if u.fixed == PRegInvalid || u.fixed == pins[i] {
				continue
			}
			if pins[i] == PRegInvalid {
				pins[i] = u.fixed
				continue
			}
			p := u.point &^ 1
			if p <= leader.start() {
				return invalidf("%s requires both %s and %s at point %d", m.vreg, pins[i], u.fixed, u.point)
			}
			return a.splitGroup(members, leader, p)
		}
	}
	admits := func(t RegGroup) bool {
		for i := range members {
			if pins[i] != PRegInvalid && t.Members[i] != pins[i] {
				return false
			}
		}
		return true
	}

	// 1. A template with no overlapping occupant on any member.
	templates := a.groupTemplates(leader.class, len(members))
	for _, t := range templates {
		if !admits(t) {
			continue
		}
		ok := true
		for i, m := range members {
			if !a.fits(t.Members[i], m.ranges) {
				ok = false
				break
			}
		}
		if ok {
			for i, m := range members {
				a.place(m, t.Members[i])
			}
			return nil
		}
	}

	// 2. Eviction across the whole template.
	bestConflict := ProgramPointInvalid
	for _, t := range templates {
		if !admits(t) {
			continue
		}
		evictable := true
		seen := map[int]bool{}
		var victims []*interval
		for i, m := range members {
			clobbered, first := a.collectConflicts(t.Members[i], m.ranges)
			if first != ProgramPointInvalid && first > bestConflict {
				bestConflict = first
			}
			if clobbered {
				evictable = false
				break
			}
			for _, id := range c.conflictBuf {
				if seen[id] {
					continue
				}
				seen[id] = true
				v := c.intervals[id]
				if !(v.weight < leader.weight) {
					evictable = false
					break
				}
				victims = append(victims, v)
			}
			if !evictable {
				break
			}
		}
		if evictable && len(victims) > 0 {
			for _, v := range victims {
				if v.state != stateAssigned {
					continue
				}
				if err := a.evict(v); err != nil {
					return err
				}
			}
			for i, m := range members {
				a.place(m, t.Members[i])
			}
			return nil
		}
	}

	// 3. Split every member at the same point to keep tuples aligned, or
	// 4. spill the whole tuple once minimal.
	if leader.minimal() {
		for _, m := range members {
			if err := a.spillInterval(m); err != nil {
				return err
			}
		}
		return nil
	}
	p := a.chooseSplitPoint(leader, bestConflict)
	if p == ProgramPointInvalid {
		for _, m := range members {
			if err := a.spillInterval(m); err != nil {
				return err
			}
		}
		return nil
	}
	return a.splitGroup(members, leader, p)
}

// splitGroup splits every member of the tuple at p and re-queues both
// halves, keeping the tuple aligned and the group weight unified as the
// minimum across members on each side.
func (a *allocState) splitGroup(members []*interval, leader *interval, p ProgramPoint) error {
	c := a.c
	var newLeader *interval
	for _, m := range members {
		right := c.newInterval(m.vreg, m.class)
		if err := m.splitAt(p, right); err != nil {
			return err
		}
		right.state = stateUnassigned
		m.computeWeight()
		right.computeWeight()
		if m.groupIndex == 0 {
			newLeader = right
		}
	}
	lw, rw := math.Inf(1), math.Inf(1)
	for _, m := range members {
		if m.weight < lw {
			lw = m.weight
		}
		if r := c.siblingStarting(m.vreg, p); r != nil && r.weight < rw {
			rw = r.weight
		}
	}
	for _, m := range members {
		m.weight = lw
		if r := c.siblingStarting(m.vreg, p); r != nil {
			r.weight = rw
		}
	}
	c.logf("split group of %s at %d", leader.vreg, p)
	c.queue.push(leader)
	c.queue.push(newLeader)
	return nil
}

// groupTuple returns the aligned sibling tuple that m belongs to: for each
// group member vreg, the sibling starting where m starts.
func (a *allocState) groupTuple(m *interval) ([]*interval, error) {
	members := a.groups[m.group]
	tuple := make([]*interval, len(members))
	for i, v := range members {
		s := a.c.siblingStarting(v, m.start())
		if s == nil {
			return nil, internalf("group tuple of %s misaligned at %d", m.vreg, m.start())
		}
		tuple[i] = s
	}
	return tuple, nil
}

// groupTemplates returns the register-file group templates of the class
// and arity, in declaration order.
func (a *allocState) groupTemplates(class RegClass, arity int) []RegGroup {
	var out []RegGroup
	for i, n := 0, a.ri.NumGroups(); i < n; i++ {
		g := a.ri.Group(i)
		if g.Class == class && len(g.Members) == arity {
			out = append(out, g)
		}
	}
	return out
}
