package regalloc

import "github.com/pkg/errors"

// Costs of one spill store and one reload, in the same abstract unit as
// RematDef.Cost. The ratio against rematerialization cost is a tuning
// policy, not a correctness contract.
const (
	spillStoreCost = 1.0
	spillLoadCost  = 1.0
)

// siteSpan is one register-requiring site of a spilled interval: a use, a
// definition, or a modify (which fuses a use and a def over one
// instruction).
type siteSpan struct {
	start, end ProgramPoint
	hasDef     bool
	fixed      PReg
}

// spillInterval resolves an interval that could not be placed: the value
// parks in a spill slot (or is rematerialized) and one-instruction
// intervals are carved out around every use and definition, re-queued
// infinitely heavy so they can evict their way into a register. The
// reconciliation stores and reloads fall out of the move-resolution pass
// at the carve boundaries.
func (a *allocState) spillInterval(it *interval) error {
	c := a.c
	if it.requireReg || it.fixedReg != PRegInvalid {
		return errors.Wrapf(ErrResourceExhausted,
			"no register admits %s at point %d", it.vreg, it.start())
	}

	if a.vregRemat[it.vreg] < 0 {
		a.vregRemat[it.vreg] = a.chooseSpillKind(it)
	}
	remat := a.vregRemat[it.vreg] == 1

	// A spilled tuple member leaves its group: the pieces live in slots and
	// the carved reload sites are placed individually.
	it.group = -1

	sites := collectSites(it.uses)
	c.logf("spill %s (remat=%t, %d sites)", it, remat, len(sites))

	cur := it
	for _, s := range sites {
		if s.start > cur.start() {
			mid := c.newInterval(cur.vreg, cur.class)
			if err := cur.splitAt(s.start, mid); err != nil {
				return err
			}
			a.finishSpilledPiece(cur, remat)
			cur = mid
		}
		if s.end < cur.end() {
			rest := c.newInterval(cur.vreg, cur.class)
			if err := cur.splitAt(s.end, rest); err != nil {
				return err
			}
			a.queueReload(cur, s)
			cur = rest
			continue
		}
		// The site is the tail of the interval.
		a.queueReload(cur, s)
		cur = nil
		break
	}
	if cur != nil {
		a.finishSpilledPiece(cur, remat)
	}
	return nil
}

func (a *allocState) finishSpilledPiece(piece *interval, remat bool) {
	piece.state = stateSpilled
	piece.alloc = AllocationNone
	piece.remat = remat
}

func (a *allocState) queueReload(site *interval, s siteSpan) {
	site.requireReg = true
	site.fixedReg = s.fixed
	site.computeWeight()
	a.c.queue.push(site)
}

// carveSite splits the minimal interval around the site at p out of the
// sibling chain of it.vreg and returns it. A modify instruction is carved
// as one fused span so the value cannot change location mid-instruction.
// The carved piece and its neighbours stay unqueued.
func (a *allocState) carveSite(it *interval, p ProgramPoint) (*interval, error) {
	c := a.c
	cur := c.siblingAt(it.vreg, p)
	if cur == nil {
		return nil, internalf("no live range of %s covers its site at point %d", it.vreg, p)
	}
	start, end := p, p+1
	for _, u := range cur.uses {
		if u.point == p+1 && u.isDef && p%pointStride == pointEarlyOffset {
			end = p + pointStride
		}
		if u.point == p-1 && !u.isDef && p%pointStride == pointLateOffset {
			start = p - 1
		}
	}
	if cur.start() == start && cur.end() == end {
		// Already carved, typically by the use phase of the same modify.
		return cur, nil
	}
	if start > cur.start() {
		mid := c.newInterval(cur.vreg, cur.class)
		if err := cur.splitAt(start, mid); err != nil {
			return nil, err
		}
		cur = mid
	}
	if end < cur.end() {
		rest := c.newInterval(cur.vreg, cur.class)
		if err := cur.splitAt(end, rest); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// collectSites merges the use list into register-requiring spans. A use
// immediately followed by a definition on the same instruction (a modify)
// becomes one fused span so the location cannot change mid-instruction.
// Stack-constrained sites are served by the slot itself and yield no span.
func collectSites(uses []usePos) []siteSpan {
	var sites []siteSpan
	for i := 0; i < len(uses); {
		u := uses[i]
		if u.stack {
			i++
			continue
		}
		s := siteSpan{start: u.point, end: u.point + 1, hasDef: u.isDef, fixed: u.fixed}
		for i++; i < len(uses); i++ {
			n := uses[i]
			if n.stack {
				if n.point >= s.end {
					break
				}
				continue
			}
			if n.point >= s.end {
				if n.point != s.end || !n.isDef || n.point%pointStride != pointLateOffset {
					break
				}
				// The def phase of the same instruction: a modify.
				s.end = n.point + 1
			}
			s.hasDef = s.hasDef || n.isDef
			if n.fixed != PRegInvalid {
				s.fixed = n.fixed
			}
		}
		sites = append(sites, s)
	}
	return sites
}

// chooseSpillKind weighs recomputing the value against parking it in a
// slot: remat_cost is the defining instruction's cost at every use site,
// spill_cost one store plus one reload at every live-range crossing. Ties
// favor rematerialization, which keeps stack traffic down. The choice is
// sticky per vreg so sibling intervals never disagree.
func (a *allocState) chooseSpillKind(it *interval) int8 {
	v := it.vreg
	if a.stackReq[v] {
		return 0
	}
	rd, ok := a.f.Remat(v)
	if !ok {
		return 0
	}
	if a.defCount[v] != 1 {
		// The descriptor recomputes one definition; a multi-def value may
		// hold others.
		return 0
	}
	var rematCost, spillCost float64
	for _, u := range it.uses {
		if !u.isDef {
			rematCost += rd.Cost * u.freq
		}
	}
	for _, r := range it.ranges {
		spillCost += (spillStoreCost + spillLoadCost) * a.c.blocks[a.pointBlock(r.start)].freq
	}
	if rematCost <= spillCost {
		return 1
	}
	return 0
}
