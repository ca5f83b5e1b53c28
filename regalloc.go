// Package regalloc assigns physical registers and spill slots to the
// virtual registers of one function at a time. The input is described
// through the read-only interfaces in api.go, so the allocator can work on
// any IR and any ISA.
//
// The algorithm is a priority-driven greedy allocator over live intervals:
// liveness is computed by a backward dataflow fixpoint, each virtual
// register becomes an interval, and intervals are processed heaviest-first.
// An interval that does not fit may evict strictly lighter occupants, be
// split at a block boundary or just before its first conflict, or - once
// minimal - be spilled. Spilled values are either given a stack slot
// (colored so non-overlapping values share slots) or rematerialized when
// recomputing them is estimated cheaper. A final pass inserts the copies
// that reconcile locations across control-flow edges and split points.
package regalloc

// References:
// * https://en.wikipedia.org/wiki/Register_allocation#Linear_scan
// * https://llvm.org/ProjectsWithLLVM/2004-Fall-CS426-LS.pdf
// * https://pfalcon.github.io/ssabook/latest/book-full.pdf: Chapter 9. for liveness analysis.
// * https://docs.rs/regalloc2/latest/regalloc2/ for the operand constraint model.

import "math"

// allocState is the per-call state of one allocation: the function and
// register description under allocation plus lookup tables derived from
// them. All heavy storage lives in the Context so it can be reused.
type allocState struct {
	c  *Context
	f  Function
	ri RegInfo

	numVRegs int
	numPRegs int

	// stackReq marks vregs with a stack-constrained operand; they are
	// spilled directly and never enter the register queue.
	stackReq []bool

	// defCount counts definitions per vreg; rematerialization is only
	// sound for single-definition values.
	defCount []int

	// hintVReg records copy relations: hintVReg[dst] = src means dst would
	// like to share src's register so the copy can be elided.
	hintVReg []VReg

	// groupOf maps a vreg to its group index in groups, or -1.
	groups  [][]VReg
	groupOf []int

	// vregRemat caches the per-vreg spill-vs-rematerialization decision so
	// sibling intervals of one vreg never disagree: -1 undecided, 0 slot,
	// 1 remat.
	vregRemat []int8

	// vregSlot caches the slot assigned to a vreg so all its spilled
	// siblings share one slot.
	vregSlot []int

	// moves accumulates the reconciliation moves before the final ordering
	// pass in buildResult.
	moves []Move

	res *AllocationResult
}

// Allocate performs register allocation for f against the register file
// described by ri. ctx must not be used by another allocation at the same
// time; it is reset internally, so any state from a previous call is
// discarded. On error no partial result is returned.
func Allocate(f Function, ri RegInfo, ctx *Context) (*AllocationResult, error) {
	if ctx.inUse {
		panic("BUG: Context is already owned by an in-flight allocation")
	}
	ctx.Reset()
	ctx.inUse = true
	defer func() { ctx.inUse = false }()

	a := &allocState{c: ctx, f: f, ri: ri}
	if err := a.prepare(); err != nil {
		return nil, err
	}
	if err := a.livenessAnalysis(); err != nil {
		return nil, err
	}
	if err := a.buildIntervals(); err != nil {
		return nil, err
	}
	if err := a.assignAll(); err != nil {
		return nil, err
	}
	if err := a.allocateSlots(); err != nil {
		return nil, err
	}
	if err := a.verify(); err != nil {
		return nil, err
	}
	if err := a.resolveMoves(); err != nil {
		return nil, err
	}
	if err := a.buildResult(); err != nil {
		return nil, err
	}
	return a.res, nil
}

// prepare numbers the program points and sizes the per-vreg tables.
func (a *allocState) prepare() error {
	f, c := a.f, a.c
	a.numVRegs = f.NumVRegs()
	if VReg(a.numVRegs) > VRegIDMax {
		return invalidf("%d virtual registers exceeds the id space", a.numVRegs)
	}
	numPRegs := 0
	for cl := 0; cl < a.ri.NumClasses(); cl++ {
		if cl >= NumRegClassMax {
			return invalidf("too many register classes: %d", a.ri.NumClasses())
		}
		for _, p := range a.ri.ClassRegs(RegClass(cl)) {
			if !p.Valid() {
				return invalidf("class %d contains invalid register %d", cl, p)
			}
			if int(p) >= numPRegs {
				numPRegs = int(p) + 1
			}
		}
	}
	a.numPRegs = numPRegs

	nb := f.NumBlocks()
	if nb == 0 {
		return invalidf("function has no blocks")
	}
	if e := f.EntryBlock(); e < 0 || e >= nb {
		return invalidf("entry block %d out of range", e)
	}
	if cap(c.blocks) < nb {
		c.blocks = make([]blockState, nb)
	}
	c.blocks = c.blocks[:nb]
	var base ProgramPoint
	for i := 0; i < nb; i++ {
		blk := f.Block(i)
		if blk.ID() != i {
			return invalidf("block at index %d reports id %d", i, blk.ID())
		}
		n := blk.NumInstrs()
		if n == 0 {
			// An empty block still gets one synthetic point so values live
			// through it have a range to carry them across the edges.
			n = 1
		}
		b := &c.blocks[i]
		b.begin = base
		b.end = base + ProgramPoint(n)*pointStride
		b.freq = blk.Freq()
		b.gen.reset()
		b.kill.reset()
		b.liveIn.reset()
		b.liveOut.reset()
		base = b.end
	}

	a.stackReq = growBools(a.stackReq, a.numVRegs)
	a.defCount = growCounts(a.defCount, a.numVRegs)
	a.hintVReg = growVRegs(a.hintVReg, a.numVRegs)
	a.vregRemat = growInt8s(a.vregRemat, a.numVRegs)
	a.vregSlot = growInts(a.vregSlot, a.numVRegs)

	if cap(c.vregIvals) < a.numVRegs {
		c.vregIvals = make([][]int, a.numVRegs)
	}
	c.vregIvals = c.vregIvals[:a.numVRegs]
	for i := range c.vregIvals {
		c.vregIvals[i] = c.vregIvals[i][:0]
	}

	a.groups = f.VRegGroups()
	a.groupOf = growInts(a.groupOf, a.numVRegs)
	for gi, members := range a.groups {
		if len(members) == 0 {
			return invalidf("group %d is empty", gi)
		}
		for _, v := range members {
			if int(v) >= a.numVRegs {
				return invalidf("group %d references unknown vreg %s", gi, v)
			}
			a.groupOf[v] = gi
		}
	}
	return nil
}

// livenessAnalysis computes per-block live-in and live-out sets by a
// backward dataflow fixpoint: liveOut(b) is the union of its successors'
// live-ins, liveIn(b) = gen(b) | (liveOut(b) &^ kill(b)). Loops converge by
// repeated iteration over the backedges. A use with no reaching definition
// surfaces as a live-in of the entry block and fails the function.
func (a *allocState) livenessAnalysis() error {
	f, c := a.f, a.c

	// gen is the set of upward-exposed uses; kill the set of definitions.
	for bi := range c.blocks {
		blk := f.Block(bi)
		b := &c.blocks[bi]
		for _, s := range blk.Succs() {
			if s < 0 || s >= len(c.blocks) {
				return invalidf("block %d has successor %d out of range", bi, s)
			}
		}
		for i, n := 0, blk.NumInstrs(); i < n; i++ {
			ops := blk.Instr(i).Operands()
			// Reads resolve at the early point and writes at the late one, so
			// reads are scanned first: a definition listed ahead of a use of
			// the same vreg must not hide that the use sees the old value.
			for _, op := range ops {
				if int(op.VReg) >= a.numVRegs {
					return invalidf("block %d instr %d references unknown vreg %s", bi, i, op.VReg)
				}
				if op.Kind != OperandDef && !b.kill.has(op.VReg) {
					b.gen.set(op.VReg)
				}
				if op.Constraint.Kind() == ConstraintStack {
					if a.groupOf[op.VReg] >= 0 {
						return invalidf("block %d instr %d: stack constraint on grouped %s", bi, i, op.VReg)
					}
					a.stackReq[op.VReg] = true
				}
			}
			for _, op := range ops {
				if op.Kind != OperandUse {
					b.kill.set(op.VReg)
				}
			}
		}
	}

	for changed := true; changed; {
		changed = false
		// Backward: visiting blocks in reverse id order converges quickly
		// for the common case of ids in roughly topological order.
		for bi := len(c.blocks) - 1; bi >= 0; bi-- {
			blk := f.Block(bi)
			b := &c.blocks[bi]
			for _, s := range blk.Succs() {
				if b.liveOut.unionWith(&c.blocks[s].liveIn) {
					changed = true
				}
			}
			// liveIn = gen | (liveOut &^ kill), computed incrementally: gen
			// is constant and liveOut only grows.
			b.liveOut.scan(func(v VReg) {
				if !b.kill.has(v) && !b.liveIn.has(v) {
					b.liveIn.set(v)
					changed = true
				}
			})
			b.gen.scan(func(v VReg) {
				if !b.liveIn.has(v) {
					b.liveIn.set(v)
					changed = true
				}
			})
		}
	}

	entry := &c.blocks[f.EntryBlock()]
	if !entry.liveIn.empty() {
		var bad VReg = VRegInvalid
		entry.liveIn.scan(func(v VReg) {
			if bad == VRegInvalid {
				bad = v
			}
		})
		return invalidf("%s is used but has no reaching definition on some path", bad)
	}
	return nil
}

// buildIntervals turns per-block liveness plus use/def sites into one
// initial interval per virtual register, pre-splits minimal intervals
// around fixed-register sites, unifies the liveness of register groups and
// computes queue weights.
func (a *allocState) buildIntervals() error {
	f, c := a.f, a.c

	// openAt[v] is the start of the currently open range of v inside the
	// block being scanned; lastEnd[v] the furthest point the open range
	// must reach.
	openAt := make([]ProgramPoint, a.numVRegs)
	lastEnd := make([]ProgramPoint, a.numVRegs)
	var touched vregSet

	for bi := range c.blocks {
		blk := f.Block(bi)
		b := &c.blocks[bi]
		touched.reset()

		b.liveIn.scan(func(v VReg) {
			a.intervalFor(v)
			openAt[v] = b.begin
			lastEnd[v] = b.begin
			touched.set(v)
		})

		for i, n := 0, blk.NumInstrs(); i < n; i++ {
			early := b.begin + ProgramPoint(i)*pointStride
			late := early + pointLateOffset
			ops := blk.Instr(i).Operands()
			// Reads before writes, mirroring the liveness scan: the sites of
			// an instruction are recorded in point order no matter how its
			// operand list is arranged.
			for _, op := range ops {
				if op.Kind == OperandDef {
					continue
				}
				if op.Constraint.Kind() == ConstraintTied {
					return invalidf("block %d instr %d: malformed tied constraint", bi, i)
				}
				fixed, err := a.fixedConstraint(op, bi, i)
				if err != nil {
					return err
				}
				it := a.intervalFor(op.VReg)
				if !touched.has(op.VReg) {
					verb := "used"
					if op.Kind == OperandMod {
						verb = "modified"
					}
					return invalidf("block %d instr %d: %s %s before any definition", bi, i, op.VReg, verb)
				}
				it.uses = append(it.uses, usePos{point: early, freq: b.freq, fixed: fixed,
					stack: op.Constraint.Kind() == ConstraintStack})
				if lastEnd[op.VReg] < early+1 {
					lastEnd[op.VReg] = early + 1
				}
			}
			for _, op := range ops {
				if op.Kind == OperandUse {
					continue
				}
				fixed, err := a.fixedConstraint(op, bi, i)
				if err != nil {
					return err
				}
				if op.Constraint.Kind() == ConstraintTied {
					ti := op.Constraint.TiedTo()
					if ti >= len(ops) || ops[ti].Kind != OperandUse {
						return invalidf("block %d instr %d: malformed tied constraint", bi, i)
					}
					a.hintVReg[op.VReg] = ops[ti].VReg
				}
				it := a.intervalFor(op.VReg)
				if !touched.has(op.VReg) {
					defAt := late
					if op.Constraint.Kind() == ConstraintTied {
						// A tied definition shares its use operand's
						// encoding slot, so the register must already be
						// held at the use phase.
						defAt = early
					}
					openAt[op.VReg] = defAt
					touched.set(op.VReg)
				}
				// A redefinition simply extends the open range: the
				// analysis does not require single-assignment input.
				it.uses = append(it.uses, usePos{point: late, freq: b.freq, isDef: true, fixed: fixed,
					stack: op.Constraint.Kind() == ConstraintStack})
				a.defCount[op.VReg]++
				if lastEnd[op.VReg] < late+1 {
					lastEnd[op.VReg] = late + 1
				}
			}
			if blk.Instr(i).IsCopy() {
				ops := blk.Instr(i).Operands()
				if len(ops) == 2 && ops[0].Kind == OperandDef && ops[1].Kind == OperandUse {
					a.hintVReg[ops[0].VReg] = ops[1].VReg
				}
			}
		}

		// Close the block: live-out values extend to the block end, others
		// die at their last use.
		touched.scan(func(v VReg) {
			end := lastEnd[v]
			if b.liveOut.has(v) {
				end = b.end
			}
			a.intervalFor(v).addRange(openAt[v], end)
		})
	}

	// Register groups are homed together, so every member carries the
	// union of the group's liveness; this keeps split points aligned
	// across members.
	for _, members := range a.groups {
		a.unifyGroupRanges(members)
	}

	// Pre-split fixed-register sites into minimal intervals so the
	// connector can roam freely while the site is pinned.
	for v := 0; v < a.numVRegs; v++ {
		ids := c.vregIvals[v]
		if len(ids) == 0 {
			continue
		}
		it := c.intervals[ids[0]]
		if a.groupOf[v] >= 0 {
			// Carving would break tuple alignment. Pins on grouped vregs
			// filter the candidate templates instead, and survive on the
			// carved sites once a spill dissolves the tuple.
			continue
		}
		if err := a.splitFixedSites(it); err != nil {
			return err
		}
	}

	// Weights, group weight unification, and queueing.
	for _, it := range c.intervals {
		it.computeWeight()
	}
	for _, members := range a.groups {
		w := math.Inf(1)
		for _, v := range members {
			for _, id := range c.vregIvals[v] {
				if iw := c.intervals[id].weight; iw < w {
					w = iw
				}
			}
		}
		for _, v := range members {
			for _, id := range c.vregIvals[v] {
				c.intervals[id].weight = w
			}
		}
	}
	for idx, n := 0, len(c.intervals); idx < n; idx++ {
		it := c.intervals[idx]
		if len(it.ranges) == 0 {
			continue
		}
		if a.stackReq[it.vreg] {
			// Stack-constrained values park in their slot, but only the
			// stack sites are served by it: uses and definitions that still
			// need a register are carved out and queued like any reload.
			if it.fixedReg != PRegInvalid {
				c.queue.push(it)
				continue
			}
			if err := a.spillInterval(it); err != nil {
				return err
			}
			continue
		}
		if it.group >= 0 && it.groupIndex != 0 {
			// Only the leader of a group tuple is queued; members follow.
			continue
		}
		c.queue.push(it)
	}
	return nil
}

// fixedConstraint decodes and bounds-checks a fixed-register constraint,
// returning PRegInvalid for any other constraint kind.
func (a *allocState) fixedConstraint(op Operand, bi, i int) (PReg, error) {
	if op.Constraint.Kind() != ConstraintFixedReg {
		return PRegInvalid, nil
	}
	p := op.Constraint.Reg()
	if int(p) >= a.numPRegs {
		return PRegInvalid, invalidf("block %d instr %d: fixed register %s not described by RegInfo", bi, i, p)
	}
	return p, nil
}

// intervalFor returns the initial interval of v, creating it on first use.
func (a *allocState) intervalFor(v VReg) *interval {
	c := a.c
	if ids := c.vregIvals[v]; len(ids) > 0 {
		return c.intervals[ids[0]]
	}
	it := c.newInterval(v, a.f.VRegClass(v))
	if g := a.groupOf[v]; g >= 0 {
		it.group = g
		for i, m := range a.groups[g] {
			if m == v {
				it.groupIndex = i
			}
		}
	}
	return it
}

// unifyGroupRanges replaces every member's ranges with the union of the
// group's liveness.
func (a *allocState) unifyGroupRanges(members []VReg) {
	c := a.c
	var merged []liveRange
	for _, v := range members {
		for _, id := range c.vregIvals[v] {
			merged = append(merged, c.intervals[id].ranges...)
		}
	}
	if len(merged) == 0 {
		return
	}
	merged = mergeRanges(merged)
	for _, v := range members {
		for _, id := range c.vregIvals[v] {
			it := c.intervals[id]
			it.ranges = append(it.ranges[:0], merged...)
		}
	}
}

// splitFixedSites carves a one-instruction interval pinned to the required
// register out of it, for every fixed-register use or definition.
func (a *allocState) splitFixedSites(it *interval) error {
	var sites []usePos
	for _, u := range it.uses {
		if u.fixed != PRegInvalid {
			sites = append(sites, u)
		}
	}
	if len(sites) == 0 {
		return nil
	}
	for _, s := range sites {
		m, err := a.carveSite(it, s.point)
		if err != nil {
			return err
		}
		if m != nil {
			if m.fixedReg != PRegInvalid && m.fixedReg != s.fixed {
				return invalidf("%s requires both %s and %s at point %d", it.vreg, m.fixedReg, s.fixed, s.point)
			}
			m.fixedReg = s.fixed
		}
	}
	return nil
}

func mergeRanges(rs []liveRange) []liveRange {
	if len(rs) <= 1 {
		return rs
	}
	sortRanges(rs)
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortRanges(rs []liveRange) {
	// Insertion sort: the inputs are short, nearly sorted concatenations.
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].start < rs[j-1].start; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

// pointBlock returns the id of the block containing p.
func (a *allocState) pointBlock(p ProgramPoint) int {
	blocks := a.c.blocks
	lo, hi := 0, len(blocks)
	for lo < hi {
		mid := (lo + hi) / 2
		if blocks[mid].end <= p {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func growBools(s []bool, n int) []bool {
	if cap(s) < n {
		return make([]bool, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = false
	}
	return s
}

func growInts(s []int, n int) []int {
	if cap(s) < n {
		s = make([]int, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = -1
	}
	return s
}

func growCounts(s []int, n int) []int {
	if cap(s) < n {
		s = make([]int, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = 0
	}
	return s
}

func growInt8s(s []int8, n int) []int8 {
	if cap(s) < n {
		s = make([]int8, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = -1
	}
	return s
}

func growVRegs(s []VReg, n int) []VReg {
	if cap(s) < n {
		s = make([]VReg, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = VRegInvalid
	}
	return s
}
