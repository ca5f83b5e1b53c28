// Package gen produces random but structurally valid functions and register
// files for property-based allocator tests. Output is deterministic per
// seed: the same seed and config always yield the same function.
package gen

import (
	"math/rand"
	"strconv"

	"github.com/celer-lang/regalloc"
	"github.com/celer-lang/regalloc/ir"
)

// Config bounds the generated shapes.
type Config struct {
	// Blocks is the length of the main chain of blocks; shortcut and
	// backedge blocks come on top.
	Blocks int
	// VRegs is the number of virtual registers, all defined in the entry
	// block so every use is dominated.
	VRegs int
	// InstrsPerBlock is the maximum number of instructions appended to each
	// chain block.
	InstrsPerBlock int
	// Classes and RegsPerClass shape the register file.
	Classes      int
	RegsPerClass int
	// Shortcuts and Backedges are the number of extra CFG edges; each runs
	// through a dedicated pass-through block, so no edge is critical.
	Shortcuts int
	Backedges int
	// FixedProb pins a use operand to a register of its class.
	FixedProb float64
	// ClobberProb inserts a call-like instruction clobbering half of class
	// 0's registers.
	ClobberProb float64
	// CopyProb inserts a register copy between two virtual registers.
	CopyProb float64
	// StackVRegs values live in spill slots: their definitions are
	// stack-constrained, and most but not all of their uses read the slot.
	StackVRegs int
	// RematVRegs values carry a rematerialization descriptor for their
	// single definition.
	RematVRegs int
	// Groups pairs of virtual registers are allocated atomically against
	// the register file's pair templates.
	Groups int
}

// DefaultConfig returns a mid-sized shape exercising every feature.
func DefaultConfig() Config {
	return Config{
		Blocks:         6,
		VRegs:          24,
		InstrsPerBlock: 8,
		Classes:        2,
		RegsPerClass:   4,
		Shortcuts:      1,
		Backedges:      1,
		FixedProb:      0.05,
		ClobberProb:    0.1,
		CopyProb:       0.1,
		StackVRegs:     2,
		RematVRegs:     3,
		Groups:         2,
	}
}

// Generator is a seeded source of random functions.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator seeded with seed.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// RegInfo builds the register file matching cfg: dense classes with
// sequential registers, 8-byte slots and pair group templates per class.
func (g *Generator) RegInfo(cfg Config) *ir.RegInfo {
	ri := &ir.RegInfo{}
	next := regalloc.PReg(0)
	for c := 0; c < cfg.Classes; c++ {
		decl := ir.ClassDecl{
			Name:      "c" + strconv.Itoa(c),
			SlotSize:  8,
			SlotAlign: 8,
		}
		for i := 0; i < cfg.RegsPerClass; i++ {
			decl.Regs = append(decl.Regs, next)
			next++
		}
		ri.Classes = append(ri.Classes, decl)
		for i := 0; i+1 < len(decl.Regs); i += 2 {
			ri.GroupDecls = append(ri.GroupDecls, ir.GroupDecl{
				Class:   regalloc.RegClass(c),
				Members: []regalloc.PReg{decl.Regs[i], decl.Regs[i+1]},
			})
		}
	}
	return ri
}

// Function builds one random function against the register file of cfg.
func (g *Generator) Function(cfg Config) (*ir.Function, *ir.RegInfo) {
	ri := g.RegInfo(cfg)
	f := &ir.Function{Name: "gen"}

	for v := 0; v < cfg.VRegs; v++ {
		f.VRegs = append(f.VRegs, ir.VRegDecl{Class: regalloc.RegClass(g.rng.Intn(cfg.Classes))})
	}

	// Partition the vreg id space into special roles. Stack-only values
	// keep every operand in their slot; remat and grouped values must stay
	// single-definition, so redefinitions draw from the plain pool only.
	stackEnd := cfg.StackVRegs
	rematEnd := stackEnd + cfg.RematVRegs
	groupEnd := rematEnd + 2*cfg.Groups
	if groupEnd > cfg.VRegs {
		groupEnd = cfg.VRegs
		rematEnd = min(rematEnd, groupEnd)
		stackEnd = min(stackEnd, rematEnd)
	}
	for gi := rematEnd; gi+1 < groupEnd; gi += 2 {
		// Group members share one class so a template can home them.
		f.VRegs[gi+1].Class = f.VRegs[gi].Class
		f.AddGroup(regalloc.VReg(gi), regalloc.VReg(gi+1))
	}

	entry := f.NewBlock(1)
	for v := 0; v < cfg.VRegs; v++ {
		entry.Op("mk", g.operand(cfg, f, regalloc.VReg(v), "def", v < stackEnd))
		if v >= stackEnd && v < rematEnd {
			f.SetRemat(regalloc.VReg(v), 0, len(entry.Code)-1, 1+float64(g.rng.Intn(4)))
		}
	}

	for bi := 1; bi < cfg.Blocks; bi++ {
		b := f.NewBlock(float64(1 + g.rng.Intn(10)))
		f.Edge(bi-1, bi)
		g.fillBlock(cfg, f, b, stackEnd, rematEnd)
	}

	// Extra edges run through fresh pass-through blocks: the source may
	// have several successors and the destination several predecessors,
	// but the through block has exactly one of each.
	chain := cfg.Blocks
	addVia := func(from, to int) {
		via := f.NewBlock(f.Blocks[from].Frequency)
		f.Edge(from, via.Index)
		f.Edge(via.Index, to)
	}
	for i := 0; i < cfg.Shortcuts && chain > 2; i++ {
		from := g.rng.Intn(chain - 2)
		to := from + 2 + g.rng.Intn(chain-from-2)
		addVia(from, to)
	}
	for i := 0; i < cfg.Backedges && chain > 1; i++ {
		to := g.rng.Intn(chain - 1)
		from := to + 1 + g.rng.Intn(chain-to-1)
		addVia(from, to)
	}
	return f, ri
}

func (g *Generator) fillBlock(cfg Config, f *ir.Function, b *ir.Block, stackEnd, rematEnd int) {
	n := 1 + g.rng.Intn(cfg.InstrsPerBlock)
	for i := 0; i < n; i++ {
		switch r := g.rng.Float64(); {
		case r < cfg.ClobberProb:
			var clobbers []regalloc.PReg
			for j := 0; j < cfg.RegsPerClass/2; j++ {
				clobbers = append(clobbers, regalloc.PReg(j))
			}
			b.Call(clobbers...)
		case r < cfg.ClobberProb+cfg.CopyProb:
			dst := g.plainVReg(cfg, stackEnd, rematEnd)
			src := g.anyVReg(cfg)
			if f.VRegs[dst].Class == f.VRegs[src].Class && dst != src && int(src) >= stackEnd {
				b.Copy(dst, src)
			} else {
				b.Op("op", g.operand(cfg, f, src, "use", int(src) < stackEnd))
			}
		default:
			nuses := 1 + g.rng.Intn(2)
			var ops []ir.OperandDecl
			for u := 0; u < nuses; u++ {
				v := g.anyVReg(cfg)
				ops = append(ops, g.operand(cfg, f, v, "use", int(v) < stackEnd))
			}
			if g.rng.Float64() < 0.5 {
				d := g.plainVReg(cfg, stackEnd, rematEnd)
				ops = append(ops, g.operand(cfg, f, d, "def", false))
			}
			b.Op("op", ops...)
		}
	}
}

// operand builds one operand declaration, optionally pinning plain uses to
// a register of their class. Stack-role values write through their slot and
// read it most of the time, with the occasional plain use mixed in.
func (g *Generator) operand(cfg Config, f *ir.Function, v regalloc.VReg, kind string, stackRole bool) ir.OperandDecl {
	d := ir.OperandDecl{VReg: v, Kind: kind}
	if stackRole {
		if kind != "use" || g.rng.Float64() < 0.6 {
			d.Stack = true
		}
		return d
	}
	if kind == "use" && g.rng.Float64() < cfg.FixedProb {
		class := f.VRegs[v].Class
		base := int(class) * cfg.RegsPerClass
		p := regalloc.PReg(base + g.rng.Intn(cfg.RegsPerClass))
		d.Fixed = &p
	}
	return d
}

// anyVReg picks any virtual register.
func (g *Generator) anyVReg(cfg Config) regalloc.VReg {
	return regalloc.VReg(g.rng.Intn(cfg.VRegs))
}

// plainVReg picks a register that may be redefined: not stack-only, not
// rematerializable, not grouped.
func (g *Generator) plainVReg(cfg Config, stackEnd, rematEnd int) regalloc.VReg {
	lo := rematEnd + 2*min(cfg.Groups, (cfg.VRegs-rematEnd)/2)
	if lo >= cfg.VRegs {
		lo = cfg.VRegs - 1
	}
	return regalloc.VReg(lo + g.rng.Intn(cfg.VRegs-lo))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
