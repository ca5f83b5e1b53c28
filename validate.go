package regalloc

import "math"

// ValidateRegInfo checks a register file description for the structural
// requirements the allocator relies on: valid dense classes, registers
// listed once, symmetric aliasing, sane spill slot shapes and group
// templates drawn from their class. Allocate performs only the cheap subset
// of these checks itself, so targets should run this once at start-up.
func ValidateRegInfo(ri RegInfo) error {
	nc := ri.NumClasses()
	if nc <= 0 || nc > NumRegClassMax {
		return invalidf("register file describes %d classes", nc)
	}
	classSet := make([]RegSet, nc)
	var all RegSet
	for c := 0; c < nc; c++ {
		regs := ri.ClassRegs(RegClass(c))
		if len(regs) == 0 {
			return invalidf("%s has no allocatable registers", RegClass(c))
		}
		for _, p := range regs {
			if !p.Valid() {
				return invalidf("%s lists invalid register %d", RegClass(c), p)
			}
			if classSet[c].Has(p) {
				return invalidf("%s lists %s twice", RegClass(c), p)
			}
			classSet[c].Add(p)
			all.Add(p)
		}
		if size, align := ri.SlotInfo(RegClass(c)); size == 0 || align == 0 || align&(align-1) != 0 {
			return invalidf("%s has an invalid spill slot shape %dx%d", RegClass(c), size, align)
		}
	}

	var err error
	all.Range(func(p PReg) {
		if err != nil {
			return
		}
		for _, q := range ri.Aliases(p) {
			if q == p {
				err = invalidf("%s aliases itself", p)
				return
			}
			sym := false
			for _, r := range ri.Aliases(q) {
				if r == p {
					sym = true
					break
				}
			}
			if !sym {
				err = invalidf("aliasing of %s and %s is not symmetric", p, q)
				return
			}
		}
	})
	if err != nil {
		return err
	}

	for i, n := 0, ri.NumGroups(); i < n; i++ {
		g := ri.Group(i)
		if int(g.Class) >= nc {
			return invalidf("group template %d names unknown %s", i, g.Class)
		}
		if len(g.Members) == 0 {
			return invalidf("group template %d is empty", i)
		}
		for _, p := range g.Members {
			if !classSet[g.Class].Has(p) {
				return invalidf("group template %d member %s is not allocatable in %s", i, p, g.Class)
			}
		}
	}
	return nil
}

// ValidateFunction checks a function against a register file beyond what
// Allocate verifies on its own: CFG edge consistency, operand and constraint
// well-formedness, and group shapes for which a template exists.
func ValidateFunction(f Function, ri RegInfo) error {
	nb := f.NumBlocks()
	if nb == 0 {
		return invalidf("function has no blocks")
	}
	if e := f.EntryBlock(); e < 0 || e >= nb {
		return invalidf("entry block %d out of range", e)
	}
	nv := f.NumVRegs()
	nc := ri.NumClasses()

	classSet := make([]RegSet, nc)
	for c := 0; c < nc; c++ {
		for _, p := range ri.ClassRegs(RegClass(c)) {
			classSet[c].Add(p)
		}
	}

	groupOf := make([]int, nv)
	for i := range groupOf {
		groupOf[i] = -1
	}
	for gi, members := range f.VRegGroups() {
		if len(members) == 0 {
			return invalidf("group %d is empty", gi)
		}
		var cl RegClass
		for i, v := range members {
			if int(v) >= nv || !v.Valid() {
				return invalidf("group %d references unknown vreg %d", gi, v)
			}
			if groupOf[v] >= 0 {
				return invalidf("%s belongs to groups %d and %d", v, groupOf[v], gi)
			}
			groupOf[v] = gi
			if i == 0 {
				cl = f.VRegClass(v)
			} else if f.VRegClass(v) != cl {
				return invalidf("group %d mixes %s and %s", gi, cl, f.VRegClass(v))
			}
		}
		found := false
		for i, n := 0, ri.NumGroups(); i < n; i++ {
			if g := ri.Group(i); g.Class == cl && len(g.Members) == len(members) {
				found = true
				break
			}
		}
		if !found {
			return invalidf("no %s template of arity %d for group %d", cl, len(members), gi)
		}
	}

	for bi := 0; bi < nb; bi++ {
		blk := f.Block(bi)
		if blk.ID() != bi {
			return invalidf("block at index %d reports id %d", bi, blk.ID())
		}
		if fr := blk.Freq(); fr < 0 || math.IsNaN(fr) || math.IsInf(fr, 0) {
			return invalidf("block %d has frequency %v", bi, fr)
		}
		for _, s := range blk.Succs() {
			if s < 0 || s >= nb {
				return invalidf("block %d has dangling successor %d", bi, s)
			}
			if !containsBlock(f.Block(s).Preds(), bi) {
				return invalidf("edge %d->%d missing from %d's predecessors", bi, s, s)
			}
		}
		for _, p := range blk.Preds() {
			if p < 0 || p >= nb {
				return invalidf("block %d has dangling predecessor %d", bi, p)
			}
			if !containsBlock(f.Block(p).Succs(), bi) {
				return invalidf("edge %d->%d missing from %d's successors", p, bi, p)
			}
		}
		for i, n := 0, blk.NumInstrs(); i < n; i++ {
			ops := blk.Instr(i).Operands()
			for oi, op := range ops {
				if int(op.VReg) >= nv || !op.VReg.Valid() {
					return invalidf("block %d instr %d references unknown vreg %d", bi, i, op.VReg)
				}
				cl := f.VRegClass(op.VReg)
				if int(cl) >= nc {
					return invalidf("%s has unknown class %d", op.VReg, cl)
				}
				switch op.Constraint.Kind() {
				case ConstraintFixedReg:
					if !classSet[cl].Has(op.Constraint.Reg()) {
						return invalidf("block %d instr %d pins %s to %s outside its %s",
							bi, i, op.VReg, op.Constraint.Reg(), cl)
					}
				case ConstraintStack:
					// Tuple members live on register templates; a slot
					// cannot take part in one.
					if groupOf[op.VReg] >= 0 {
						return invalidf("block %d instr %d: stack constraint on grouped %s", bi, i, op.VReg)
					}
				case ConstraintTied:
					ti := op.Constraint.TiedTo()
					if op.Kind != OperandDef || ti >= len(ops) || ops[ti].Kind != OperandUse {
						return invalidf("block %d instr %d operand %d: malformed tied constraint", bi, i, oi)
					}
				}
			}
		}
	}

	return nil
}

func containsBlock(ids []int, id int) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
